package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/drivewise/pkg/types"
)

var _ Store = (*RedisStore)(nil)

// maxTxRetries bounds optimistic-lock retries when concurrent appends race
// on the same key.
const maxTxRetries = 32

// RedisStore keeps each session as one JSON array under prefix+sessionID.
// Appends use WATCH/MULTI/EXEC so concurrent writers never lose a pair.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	maxPairs int
	ttl      time.Duration
}

// NewRedisStore wraps client. The TTL is refreshed on every read and write;
// zero disables expiry.
func NewRedisStore(client *redis.Client, prefix string, maxPairs int, ttl time.Duration) *RedisStore {
	if maxPairs <= 0 {
		maxPairs = DefaultMaxPairs
	}
	return &RedisStore{client: client, prefix: prefix, maxPairs: maxPairs, ttl: ttl}
}

// GetOrCreate implements [Store].
func (s *RedisStore) GetOrCreate(ctx context.Context, sessionID string) ([]types.ChatMessage, error) {
	key := s.key(sessionID)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []types.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: redis get: %w", err)
	}
	msgs, err := decodeMessages(val)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, key, s.ttl).Err()
	}
	return msgs, nil
}

// Append implements [Store].
func (s *RedisStore) Append(ctx context.Context, sessionID, user, assistant string) error {
	key := s.key(sessionID)
	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		var msgs []types.ChatMessage
		if len(val) > 0 {
			if msgs, err = decodeMessages(val); err != nil {
				return err
			}
		}
		next, err := json.Marshal(Trim(append(msgs, pair(user, assistant)...), s.maxPairs))
		if err != nil {
			return fmt.Errorf("history: encode: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("history: redis append: %w", err)
		}
		return nil
	}
	return fmt.Errorf("history: redis append: %w", redis.TxFailedErr)
}

// Clear implements [Store].
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("history: redis delete: %w", err)
	}
	return nil
}

// Ping implements [Store].
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("history: redis ping: %w", err)
	}
	return nil
}

// Close implements [Store].
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) key(id string) string { return s.prefix + id }

func decodeMessages(b []byte) ([]types.ChatMessage, error) {
	var msgs []types.ChatMessage
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, fmt.Errorf("history: decode: %w", err)
	}
	if msgs == nil {
		msgs = []types.ChatMessage{}
	}
	return msgs, nil
}
