package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

// MessageDB implements shuttle.Store and shuttle.StoreReader against the
// single t_messages table.
type MessageDB struct {
	ctx  context.Context
	pool *pgxpool.Pool
}

func NewMessageDB(ctx context.Context, pool *pgxpool.Pool) *MessageDB {
	return &MessageDB{ctx: ctx, pool: pool}
}

func (db *MessageDB) CreateMessagesTable() error {
	_, err := db.pool.Exec(db.ctx, `
	CREATE TABLE IF NOT EXISTS t_messages(
		id bigserial PRIMARY KEY,
		fid bigint NOT NULL,
		type integer NOT NULL,
		ts timestamptz NOT NULL,
		hash_scheme integer NOT NULL,
		signature_scheme integer NOT NULL,
		hash bytea NOT NULL,
		signer bytea NOT NULL,
		raw bytea NOT NULL,
		body jsonb NOT NULL,
		deleted_at timestamptz,
		pruned_at timestamptz,
		revoked_at timestamptz,
		UNIQUE (hash, fid, type)
	);
	`)
	return err
}

func (db *MessageDB) CreateMessagesTableIndexes() error {
	if _, err := db.pool.Exec(db.ctx, `CREATE INDEX IF NOT EXISTS idx_messages_hash ON t_messages (hash);`); err != nil {
		return err
	}
	if _, err := db.pool.Exec(db.ctx, `CREATE INDEX IF NOT EXISTS idx_messages_fid_type ON t_messages (fid, type);`); err != nil {
		return err
	}
	return nil
}

const upsertSQL = `
INSERT INTO t_messages (fid, type, ts, hash_scheme, signature_scheme, hash, signer, raw, body, deleted_at, pruned_at, revoked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (hash, fid, type) DO UPDATE SET
	signature_scheme = EXCLUDED.signature_scheme,
	signer = EXCLUDED.signer,
	raw = EXCLUDED.raw,
	deleted_at = EXCLUDED.deleted_at,
	pruned_at = EXCLUDED.pruned_at,
	revoked_at = EXCLUDED.revoked_at
WHERE (t_messages.deleted_at IS NULL) <> (EXCLUDED.deleted_at IS NULL)
   OR (t_messages.pruned_at IS NULL) <> (EXCLUDED.pruned_at IS NULL)
   OR (t_messages.revoked_at IS NULL) <> (EXCLUDED.revoked_at IS NULL)
RETURNING (xmax = 0) AS inserted
`

// Apply implements shuttle.Store. It is a single round-trip upsert: the
// conflict predicate compares only the null-ness of each lifecycle column
// (mirroring shuttle.LifecycleChanged), not its value, so a second prune or
// revoke of the same row — which stamps a new `now` but leaves the column
// non-null either way — is a true no-op instead of a spurious rewrite.
func (db *MessageDB) Apply(ctx context.Context, stx shuttle.Tx, row *shuttle.Row, op shuttle.Operation) (shuttle.Outcome, error) {
	tx, ok := stx.(*Tx)
	if !ok {
		return shuttle.OutcomeNoop, fmt.Errorf("%w: apply called with a foreign transaction", shuttle.ErrStorageError)
	}

	now := time.Now().UTC()
	deletedAt, prunedAt, revokedAt := shuttle.ApplyOperation(op, now)

	body, err := json.Marshal(row.Body)
	if err != nil {
		return shuttle.OutcomeNoop, fmt.Errorf("%w: encoding body: %v", shuttle.ErrStorageError, err)
	}

	var inserted bool
	err = tx.tx.QueryRow(ctx, upsertSQL,
		row.Fid, int32(row.Type), row.Timestamp, int32(row.HashScheme), int32(row.SignatureScheme),
		row.Hash, row.Signer, row.Raw, body, deletedAt, prunedAt, revokedAt,
	).Scan(&inserted)

	if errors.Is(err, pgx.ErrNoRows) {
		// The conflict predicate suppressed the update: no lifecycle column
		// would have changed.
		return shuttle.OutcomeNoop, nil
	}
	if err != nil {
		return shuttle.OutcomeNoop, fmt.Errorf("%w: %v", shuttle.ErrStorageError, err)
	}

	if inserted {
		return shuttle.OutcomeInserted, nil
	}
	return shuttle.OutcomeUpdated, nil
}

// FindByHashes implements shuttle.StoreReader for the reconciler's batch
// diff: project just enough of each matching row to classify it as
// pruned/revoked.
func (db *MessageDB) FindByHashes(ctx context.Context, fid uint64, typ shuttle.MessageType, hashes [][]byte) (map[string]shuttle.RowLifecycle, error) {
	result := make(map[string]shuttle.RowLifecycle, len(hashes))
	if len(hashes) == 0 {
		return result, nil
	}

	rows, err := db.pool.Query(ctx, `
	SELECT hash, pruned_at IS NOT NULL, revoked_at IS NOT NULL
	FROM t_messages
	WHERE fid = $1 AND type = $2 AND hash = ANY($3)
	`, fid, int32(typ), hashes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shuttle.ErrStorageError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash []byte
		var pruned, revoked bool
		if err := rows.Scan(&hash, &pruned, &revoked); err != nil {
			return nil, fmt.Errorf("%w: %v", shuttle.ErrStorageError, err)
		}
		result[string(hash)] = shuttle.RowLifecycle{PrunedAt: pruned, RevokedAt: revoked}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", shuttle.ErrStorageError, err)
	}

	return result, nil
}
