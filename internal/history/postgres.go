package history

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/drivewise/pkg/types"
)

var _ Store = (*PostgresStore)(nil)

const ddlPostgres = `
CREATE TABLE IF NOT EXISTS chat_history (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    role        TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chat_history_session_id
    ON chat_history (session_id, id);
`

// PostgresStore keeps one row per message in the chat_history table.
// Appends for the same session are serialised with a transaction-scoped
// advisory lock.
type PostgresStore struct {
	pool     *pgxpool.Pool
	maxPairs int
	ttl      time.Duration
	closed   atomic.Bool
}

// NewPostgresStore connects to dsn, pings the server and creates the schema
// when missing.
func NewPostgresStore(ctx context.Context, dsn string, maxPairs int, ttl time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlPostgres); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: postgres: migrate: %w", err)
	}
	if maxPairs <= 0 {
		maxPairs = DefaultMaxPairs
	}
	return &PostgresStore{pool: pool, maxPairs: maxPairs, ttl: ttl}, nil
}

// GetOrCreate implements [Store]. Messages older than the TTL are ignored.
func (s *PostgresStore) GetOrCreate(ctx context.Context, sessionID string) ([]types.ChatMessage, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	const q = `
		SELECT role, content
		FROM   chat_history
		WHERE  session_id = $1
		  AND  ($2::bigint = 0 OR created_at >= now() - ($2::bigint * interval '1 microsecond'))
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, q, sessionID, s.ttl.Microseconds())
	if err != nil {
		return nil, fmt.Errorf("history: postgres: query: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.ChatMessage, error) {
		var m types.ChatMessage
		var role string
		err := row.Scan(&role, &m.Content)
		m.Role = types.Role(role)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("history: postgres: scan: %w", err)
	}
	return Trim(msgs, s.maxPairs), nil
}

// Append implements [Store].
func (s *PostgresStore) Append(ctx context.Context, sessionID, user, assistant string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sessionID); err != nil {
			return fmt.Errorf("lock: %w", err)
		}
		for _, m := range pair(user, assistant) {
			if _, err := tx.Exec(ctx,
				`INSERT INTO chat_history (session_id, role, content) VALUES ($1, $2, $3)`,
				sessionID, string(m.Role), m.Content,
			); err != nil {
				return fmt.Errorf("insert: %w", err)
			}
		}
		const trim = `
			DELETE FROM chat_history
			WHERE  session_id = $1
			  AND  id < (
			        SELECT min(id) FROM (
			            SELECT id FROM chat_history
			            WHERE  session_id = $1
			            ORDER  BY id DESC
			            LIMIT  $2
			        ) newest
			  )`
		if _, err := tx.Exec(ctx, trim, sessionID, s.maxPairs*2); err != nil {
			return fmt.Errorf("trim: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("history: postgres: append: %w", err)
	}
	return nil
}

// Clear implements [Store].
func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM chat_history WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("history: postgres: clear: %w", err)
	}
	return nil
}

// Ping implements [Store].
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.pool.Ping(ctx)
}

// Close implements [Store].
func (s *PostgresStore) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.Close()
	}
	return nil
}
