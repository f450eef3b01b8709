// Package history stores the bounded per-session chat history handed to the
// intent classifier.
//
// Every [Store] keeps complete user/assistant pairs only: [Store.Append]
// writes exactly two messages and trims the oldest pairs once a session holds
// more than its configured maximum, so a history always has an even message
// count and starts with a user message.
//
// Four drivers are available through [Open]: an in-process map, Redis,
// PostgreSQL and SQLite.
package history

import (
	"context"
	"errors"

	"github.com/MrWong99/drivewise/pkg/types"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history: store closed")

// ErrInvalidConfig is returned by [Open] for unusable driver settings.
var ErrInvalidConfig = errors.New("history: invalid configuration")

// DefaultMaxPairs is used when no positive pair limit is configured.
const DefaultMaxPairs = 10

// Store is a session history backend. Implementations must be safe for
// concurrent use.
type Store interface {
	// GetOrCreate returns the session's messages, oldest first. A session
	// that does not exist yet yields an empty, non-nil history.
	GetOrCreate(ctx context.Context, sessionID string) ([]types.ChatMessage, error)

	// Append records one completed turn and trims the history to the
	// configured number of pairs.
	Append(ctx context.Context, sessionID, user, assistant string) error

	// Clear deletes the session's history.
	Clear(ctx context.Context, sessionID string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// pair builds the two messages of one turn.
func pair(user, assistant string) []types.ChatMessage {
	return []types.ChatMessage{
		{Role: types.RoleUser, Content: user},
		{Role: types.RoleAssistant, Content: assistant},
	}
}

// Trim returns the newest maxPairs pairs of msgs. A dangling leading
// assistant message or trailing user message is dropped so the result
// always consists of whole pairs.
func Trim(msgs []types.ChatMessage, maxPairs int) []types.ChatMessage {
	if maxPairs <= 0 {
		maxPairs = DefaultMaxPairs
	}
	for len(msgs) > 0 && msgs[0].Role != types.RoleUser {
		msgs = msgs[1:]
	}
	if len(msgs)%2 != 0 {
		msgs = msgs[:len(msgs)-1]
	}
	if limit := maxPairs * 2; len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]types.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}
