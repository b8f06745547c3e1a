// Package db is the pgx-backed persistence layer: a connection pool, the
// single messages table, and the transactional Store implementation.
//
// This intentionally stays a thin hand-written SQL layer rather than
// reaching for a query-builder dependency — there is exactly one upsert
// statement and a handful of selects, so a query builder buys nothing.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

type DB struct {
	ctx  context.Context
	pool *pgxpool.Pool

	Messages *MessageDB
}

// NewDB connects to Postgres and ensures the messages table and its indexes
// exist, following comunifi-relay/internal/db/db.go's "check, then create"
// idiom.
func NewDB(ctx context.Context, user, password, dbname, host, port string) (*DB, error) {
	connStr := fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%s sslmode=disable", user, password, dbname, host, port)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	messages := NewMessageDB(ctx, pool)

	d := &DB{ctx: ctx, pool: pool, Messages: messages}

	exists, err := d.MessagesTableExists()
	if err != nil {
		return nil, err
	}

	if !exists {
		if err := messages.CreateMessagesTable(); err != nil {
			return nil, err
		}

		if err := messages.CreateMessagesTableIndexes(); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// MessagesTableExists checks if the messages table has already been created.
func (db *DB) MessagesTableExists() (bool, error) {
	var exists bool
	err := db.pool.QueryRow(db.ctx, "SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", "t_messages").Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Begin opens a new transaction, implementing shuttle.TxBeginner.
func (db *DB) Begin(ctx context.Context) (shuttle.Tx, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shuttle.ErrStorageError, err)
	}
	return &Tx{tx: tx}, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Tx adapts pgx.Tx to shuttle.Tx. MessageDB.Apply type-asserts back to this
// concrete type to reach the underlying pgx.Tx for the upsert statement.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", shuttle.ErrStorageError, err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("%w: %v", shuttle.ErrStorageError, err)
	}
	return nil
}
