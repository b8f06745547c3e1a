// Package dispatcher converts hub events into transactional store
// applications and invokes the caller's merge hook.
package dispatcher

import (
	"context"
	"fmt"
	"log"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

// Dispatcher wires one subscription's events into the store.
type Dispatcher struct {
	hubID       string
	store       shuttle.Store
	txBeginner  shuttle.TxBeginner
	checkpoint  shuttle.Checkpoint
	codec       shuttle.Codec
	handler     shuttle.Handler
	onCommitted func(row *shuttle.Row, op shuttle.Operation, wasMissed bool)
}

func New(hubID string, store shuttle.Store, txBeginner shuttle.TxBeginner, checkpoint shuttle.Checkpoint, codec shuttle.Codec, handler shuttle.Handler) *Dispatcher {
	return &Dispatcher{hubID: hubID, store: store, txBeginner: txBeginner, checkpoint: checkpoint, codec: codec, handler: handler}
}

// OnEvent implements subscriber.Observer, routing each frame to the arm
// named by its HubEventType: merge, prune, and revoke events all dispatch
// through the store even though only merge-message carries new data most of
// the time, since prune and revoke are themselves lifecycle transitions.
// Permanent decode errors are already logged and absorbed by the Handle*
// methods themselves; anything returned here is fatal and halts the
// subscriber on this event rather than letting it advance past a frame
// whose checkpoint was never saved.
func (d *Dispatcher) OnEvent(ctx context.Context, ev *shuttle.HubEvent) error {
	switch ev.Type {
	case shuttle.HubEventTypeMergeMessage:
		return d.HandleMergeMessage(ctx, ev.ID, ev.MergeMessage)
	case shuttle.HubEventTypePruneMessage:
		return d.HandlePruneMessage(ctx, ev.ID, ev.PruneMessage)
	case shuttle.HubEventTypeRevokeMessage:
		return d.HandleRevokeMessage(ctx, ev.ID, ev.RevokeMessage)
	default:
		// merge-onchain-event and merge-username-proof are in the default
		// filter but carry no message row to dispatch against this store;
		// advance the checkpoint and move on.
		return d.checkpoint.Save(ctx, d.hubID, ev.ID)
	}
}

// OnCommitted registers a callback fired after a dispatched row's
// transaction commits successfully, for purely observational side effects
// such as broadcasting to control-plane websocket clients. It must never be
// used for anything the commit's correctness depends on.
func (d *Dispatcher) OnCommitted(fn func(row *shuttle.Row, op shuttle.Operation, wasMissed bool)) {
	d.onCommitted = fn
}

// OnError implements subscriber.Observer.
func (d *Dispatcher) OnError(err error, stopped bool) {
	log.Printf("dispatcher: subscriber stopped (stopped=%v): %v", stopped, err)
}

// HandleMergeMessage decodes and dispatches the merge-message arm.
// Permanent codec errors are logged and the event is advanced past
// (not retried); handler errors abort the transaction and leave the
// checkpoint behind so the event is redelivered on restart.
func (d *Dispatcher) HandleMergeMessage(ctx context.Context, eventID uint64, msg *shuttle.HubMessage) error {
	row, err := d.codec.Decode(msg)
	if err != nil {
		if shuttle.IsPermanent(err) {
			log.Printf("dispatcher: permanent decode error on event %d: %v", eventID, err)
			return d.checkpoint.Save(ctx, d.hubID, eventID)
		}
		return err
	}

	if err := d.dispatchOne(ctx, row, shuttle.OperationMerge, false); err != nil {
		return err
	}

	// A remove-type message also retires the row it targets, per the
	// upsert protocol's delete semantics.
	if targetRow, ok := removalTarget(row); ok {
		if err := d.dispatchOne(ctx, targetRow, shuttle.OperationDelete, false); err != nil {
			return err
		}
	}

	return d.checkpoint.Save(ctx, d.hubID, eventID)
}

// HandlePruneMessage implements the prune-message arm.
func (d *Dispatcher) HandlePruneMessage(ctx context.Context, eventID uint64, msg *shuttle.HubMessage) error {
	return d.handleTerminal(ctx, eventID, msg, shuttle.OperationPrune)
}

// HandleRevokeMessage implements the revoke-message arm.
func (d *Dispatcher) HandleRevokeMessage(ctx context.Context, eventID uint64, msg *shuttle.HubMessage) error {
	return d.handleTerminal(ctx, eventID, msg, shuttle.OperationRevoke)
}

// handleTerminal implements the prune-message/revoke-message arms: same
// transactional shape as merge, with the corresponding operation tag.
func (d *Dispatcher) handleTerminal(ctx context.Context, eventID uint64, msg *shuttle.HubMessage, op shuttle.Operation) error {
	row, err := d.codec.Decode(msg)
	if err != nil {
		if shuttle.IsPermanent(err) {
			log.Printf("dispatcher: permanent decode error on event %d: %v", eventID, err)
			return d.checkpoint.Save(ctx, d.hubID, eventID)
		}
		return err
	}

	if err := d.dispatchOne(ctx, row, op, false); err != nil {
		return err
	}

	return d.checkpoint.Save(ctx, d.hubID, eventID)
}

// HandleMissing re-enters the same transactional pipeline for a message the
// reconciler found absent from the store. It does not touch the checkpoint:
// reconciliation is driven out-of-band, not by subscription event ids.
func (d *Dispatcher) HandleMissing(ctx context.Context, msg *shuttle.HubMessage) error {
	row, err := d.codec.Decode(msg)
	if err != nil {
		if shuttle.IsPermanent(err) {
			log.Printf("dispatcher: permanent decode error reconciling missing message: %v", err)
			return nil
		}
		return err
	}

	return d.dispatchOne(ctx, row, shuttle.OperationMerge, true)
}

// HandleDeleteMessage applies an explicit out-of-band deletion command,
// using the same `delete` operation tag the store already understands.
func (d *Dispatcher) HandleDeleteMessage(ctx context.Context, row *shuttle.Row) error {
	return d.dispatchOne(ctx, row, shuttle.OperationDelete, false)
}

// dispatchOne is the transactional body shared by every arm: begin, apply,
// invoke the handler hook, commit. A handler error aborts the transaction.
func (d *Dispatcher) dispatchOne(ctx context.Context, row *shuttle.Row, op shuttle.Operation, wasMissed bool) error {
	tx, err := d.txBeginner.Begin(ctx)
	if err != nil {
		return err
	}

	outcome, err := d.store.Apply(ctx, tx, row, op)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if d.handler != nil {
		if err := d.handler.OnMessageMerge(ctx, row, tx, op, wasMissed); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("handler rejected %s of %x: %w", op, row.Hash, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if d.onCommitted != nil && outcome != shuttle.OutcomeNoop {
		d.onCommitted(row, op, wasMissed)
	}
	return nil
}

// removalTarget returns the row describing the original message a
// cast-remove or reaction-remove (with a cast target) message retires, and
// true if there is such a target. link-remove and verification-remove
// messages retire nothing by hash and return false, as does every
// non-remove message.
func removalTarget(row *shuttle.Row) (*shuttle.Row, bool) {
	base := &shuttle.Row{
		Fid:             row.Fid,
		SignatureScheme: row.SignatureScheme,
		HashScheme:      row.HashScheme,
		Signer:          row.Signer,
		Raw:             row.Raw,
		Timestamp:       row.Timestamp,
	}

	switch body := row.Body.(type) {
	case shuttle.CastRemoveBody:
		base.Type = shuttle.MessageTypeCastAdd
		base.Hash = body.TargetHash
		return base, true
	case shuttle.ReactionBody:
		if row.Type != shuttle.MessageTypeReactionRemove || body.Target.CastID == nil {
			return nil, false
		}
		base.Type = shuttle.MessageTypeReactionAdd
		base.Hash = body.Target.CastID.Hash
		return base, true
	case shuttle.LinkBody:
		if row.Type != shuttle.MessageTypeLinkRemove {
			return nil, false
		}
		// Link targets are identified by (fid, targetFid, kind), not a
		// hash; there is nothing meaningful to delete by hash here, so the
		// remove message is recorded but retires nothing.
		return nil, false
	case shuttle.VerificationRemoveBody:
		return nil, false
	default:
		return nil, false
	}
}
