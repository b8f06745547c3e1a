// Package reconciler implements the out-of-band inventory diff: for each
// (fid, message type), page through the hub's full inventory, classify
// every message against the store, and report it to the caller.
package reconciler

import (
	"context"
	"fmt"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

// maxPageSize bounds a single page request to batches of at most 3000
// messages.
const maxPageSize = 3000

// Reconciler drives the paginated diff for one hub.
type Reconciler struct {
	store    shuttle.StoreReader
	client   shuttle.HubClient
	observer shuttle.ReconcileObserver
	pageSize int
}

func New(store shuttle.StoreReader, client shuttle.HubClient, observer shuttle.ReconcileObserver) *Reconciler {
	return &Reconciler{store: store, client: client, observer: observer, pageSize: maxPageSize}
}

// DefaultTypes is the set of message types a full reconciliation pass walks
// when the caller does not restrict it to a subset.
func DefaultTypes() []shuttle.MessageType {
	return []shuttle.MessageType{
		shuttle.MessageTypeCastAdd,
		shuttle.MessageTypeReactionAdd,
		shuttle.MessageTypeLinkAdd,
		shuttle.MessageTypeVerificationAddAddress,
		shuttle.MessageTypeUserDataAdd,
	}
}

// ReconcileFid walks one fid's hub inventory for each of types, paginating in
// batches of at most maxPageSize messages, and reports one call per message
// via the observer. It calls the observer sequentially and in page order, so
// a slow or erroring observer back-pressures the walk exactly as the
// subscriber does for live events.
func (r *Reconciler) ReconcileFid(ctx context.Context, fid uint64, types []shuttle.MessageType) error {
	if len(types) == 0 {
		types = DefaultTypes()
	}

	for _, typ := range types {
		if err := r.reconcileType(ctx, fid, typ); err != nil {
			return fmt.Errorf("reconcile fid %d type %s: %w", fid, typ, err)
		}
	}
	return nil
}

func (r *Reconciler) reconcileType(ctx context.Context, fid uint64, typ shuttle.MessageType) error {
	var pageToken []byte

	for {
		page, err := r.client.GetAllMessagesByFid(ctx, shuttle.FidPageRequest{
			Fid:       fid,
			Type:      typ,
			PageSize:  r.pageSize,
			PageToken: pageToken,
		})
		if err != nil {
			return err
		}

		if len(page.Messages) == 0 {
			// An empty page is skipped; paging continues while the hub
			// still hands back a next-page token.
			if len(page.NextPageToken) == 0 {
				return nil
			}
			pageToken = page.NextPageToken
			continue
		}

		hashes := make([][]byte, len(page.Messages))
		for i, msg := range page.Messages {
			hashes[i] = msg.Hash
		}

		stored, err := r.store.FindByHashes(ctx, fid, typ, hashes)
		if err != nil {
			return err
		}

		for _, msg := range page.Messages {
			lifecycle, found := stored[string(msg.Hash)]
			missing := !found
			pruned := found && lifecycle.PrunedAt
			revoked := found && lifecycle.RevokedAt

			if err := r.observer.OnReconcileMessage(ctx, msg, missing, pruned, revoked); err != nil {
				return err
			}
		}

		if len(page.NextPageToken) == 0 {
			return nil
		}
		pageToken = page.NextPageToken
	}
}
