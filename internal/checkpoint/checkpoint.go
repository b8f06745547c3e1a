// Package checkpoint is the durable record of the last hub event id
// processed for each named hub, backed by a Redis-style key/value store:
// keys follow `hub:<hubId>:last-hub-event-id`, values are decimal strings.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

const keyPrefix = "hub:"
const keySuffix = ":last-hub-event-id"

func key(hubID string) string {
	return keyPrefix + hubID + keySuffix
}

// Store implements shuttle.Checkpoint against a Redis-compatible client.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Load returns 0 when no checkpoint has ever been saved for hubID.
func (s *Store) Load(ctx context.Context, hubID string) (uint64, error) {
	v, err := s.rdb.Get(ctx, key(hubID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shuttle.ErrCheckpointUnavailable, err)
	}

	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt checkpoint value %q: %v", shuttle.ErrCheckpointUnavailable, v, err)
	}

	return id, nil
}

// Save persists the last-processed event id. The caller is expected to call
// this only after the transaction that persisted the event has committed;
// it is acceptable for Save to lag behind the stream.
func (s *Store) Save(ctx context.Context, hubID string, eventID uint64) error {
	if err := s.rdb.Set(ctx, key(hubID), strconv.FormatUint(eventID, 10), 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", shuttle.ErrCheckpointUnavailable, err)
	}
	return nil
}

// Clear wipes every key in the checkpoint database. For tests only.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.rdb.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", shuttle.ErrCheckpointUnavailable, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
