package shuttle

import (
	"context"
	"time"
)

// Tx is the transaction handle a Store operation runs inside. Its lifecycle
// is owned by whoever called TxBeginner.Begin — typically the Dispatcher.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxBeginner opens a new transaction against the persistent store.
type TxBeginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// Store persists a decoded row under an operation. It must run inside the
// Tx supplied by the caller and never open its own.
type Store interface {
	Apply(ctx context.Context, tx Tx, row *Row, op Operation) (Outcome, error)
}

// Reconciliation read path: look up the subset of hashes already present,
// projecting only what the reconciler needs to classify each hub message.
type StoreReader interface {
	FindByHashes(ctx context.Context, fid uint64, typ MessageType, hashes [][]byte) (map[string]RowLifecycle, error)
}

// RowLifecycle is the projection FindByHashes returns per stored hash.
type RowLifecycle struct {
	PrunedAt  bool
	RevokedAt bool
}

// Checkpoint records the last hub event id processed for a given hub.
type Checkpoint interface {
	Load(ctx context.Context, hubID string) (uint64, error)
	Save(ctx context.Context, hubID string, eventID uint64) error
	Clear(ctx context.Context) error
}

// Codec turns a hub message into a store-ready Row.
type Codec interface {
	Decode(msg *HubMessage) (*Row, error)
}

// Handler is implemented by the caller and invoked inside the dispatcher's
// transaction for every successfully merged/pruned/revoked/deleted message.
type Handler interface {
	OnMessageMerge(ctx context.Context, row *Row, tx Tx, op Operation, wasMissed bool) error
}

// ReconcileObserver receives one call per message in a fid's hub inventory
// during reconciliation.
type ReconcileObserver interface {
	OnReconcileMessage(ctx context.Context, msg *HubMessage, missingInDb, prunedInDb, revokedInDb bool) error
}

// EventStream is a resumable server-streamed sequence of hub events.
type EventStream interface {
	Recv(ctx context.Context) (*HubEvent, error)
	Close() error
}

// HubClient is the subset of the hub's RPC surface the shuttle core
// consumes. The concrete implementation (internal/hubrpc) owns the actual
// transport; this interface is what Subscriber, Reconciler and the control
// plane depend on, so they can be tested against fakes.
type HubClient interface {
	// Ready blocks until the transport is ready to issue calls or the timeout
	// elapses, returning false on timeout.
	Ready(ctx context.Context, timeout time.Duration) bool
	Subscribe(ctx context.Context, req SubscribeRequest) (EventStream, error)
	GetAllMessagesByFid(ctx context.Context, req FidPageRequest) (*MessagesPage, error)
}
