package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/drivewise/pkg/types"
)

var _ Store = (*SQLiteStore)(nil)

const ddlSQLite = `
CREATE TABLE IF NOT EXISTS chat_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT    NOT NULL,
	role        TEXT    NOT NULL,
	content     TEXT    NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_history_session_id ON chat_history(session_id, id);
`

// SQLiteStore keeps histories in a local SQLite database in WAL mode.
type SQLiteStore struct {
	db       *sql.DB
	maxPairs int
	ttl      time.Duration
	now      func() time.Time

	// writeMu serialises appends; SQLite allows one writer at a time and
	// the trim must see the rows just inserted.
	writeMu sync.Mutex
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, maxPairs int, ttl time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is empty", ErrInvalidConfig)
	}
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: sqlite: create directory: %w", err)
		}
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: sqlite: ping: %w", err)
	}
	if _, err := db.Exec(ddlSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: sqlite: init schema: %w", err)
	}
	if maxPairs <= 0 {
		maxPairs = DefaultMaxPairs
	}
	return &SQLiteStore{db: db, maxPairs: maxPairs, ttl: ttl, now: time.Now}, nil
}

// GetOrCreate implements [Store].
func (s *SQLiteStore) GetOrCreate(ctx context.Context, sessionID string) ([]types.ChatMessage, error) {
	var since int64
	if s.ttl > 0 {
		since = s.now().Add(-s.ttl).UnixNano()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM chat_history WHERE session_id = ? AND created_at >= ? ORDER BY id`,
		sessionID, since)
	if err != nil {
		return nil, s.wrap("query", err)
	}
	defer rows.Close()

	msgs := []types.ChatMessage{}
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, s.wrap("scan", err)
		}
		msgs = append(msgs, types.ChatMessage{Role: types.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("rows", err)
	}
	return Trim(msgs, s.maxPairs), nil
}

// Append implements [Store].
func (s *SQLiteStore) Append(ctx context.Context, sessionID, user, assistant string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin", err)
	}
	defer tx.Rollback()

	now := s.now().UnixNano()
	for _, m := range pair(user, assistant) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_history (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			sessionID, string(m.Role), m.Content, now,
		); err != nil {
			return s.wrap("insert", err)
		}
	}
	const trim = `
		DELETE FROM chat_history
		WHERE session_id = ?
		  AND id NOT IN (
		      SELECT id FROM chat_history WHERE session_id = ? ORDER BY id DESC LIMIT ?
		  )`
	if _, err := tx.ExecContext(ctx, trim, sessionID, sessionID, s.maxPairs*2); err != nil {
		return s.wrap("trim", err)
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("commit", err)
	}
	return nil
}

// Clear implements [Store].
func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE session_id = ?`, sessionID); err != nil {
		return s.wrap("clear", err)
	}
	return nil
}

// Ping implements [Store].
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.wrap("ping", err)
	}
	return nil
}

// Close implements [Store].
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) wrap(op string, err error) error {
	if strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("history: sqlite: %s: %w", op, ErrClosed)
	}
	return fmt.Errorf("history: sqlite: %s: %w", op, err)
}
