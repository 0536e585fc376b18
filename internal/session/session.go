// Package session persists chat sessions and their message logs in Redis.
// Each session owns an append-only message log with a sliding TTL: any write
// refreshes the expiry of both the session metadata and the log, so active
// conversations survive and abandoned ones age out on their own.
package session

import (
	"context"
	"fmt"
	"time"
)

// ErrUnavailable is wrapped by every store error caused by the backing store
// being unreachable, so callers can match it with errors.Is.
var ErrUnavailable = fmt.Errorf("session store unavailable")

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser is a message sent by the human.
	RoleUser Role = "user"
	// RoleBot is a message produced by the pipeline.
	RoleBot Role = "bot"
)

// Message is a single turn in a session. Messages are immutable once written.
type Message struct {
	// ID is the unique message identifier.
	ID string `json:"id"`
	// Role is the author of the message.
	Role Role `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// Timestamp is when the message was persisted.
	Timestamp time.Time `json:"timestamp"`
}

// Summary describes a session for dashboard listings.
type Summary struct {
	// ID is the session identifier.
	ID string `json:"sessionId"`
	// Title is a preview derived from the most recent message, empty for a
	// session with no messages yet.
	Title string `json:"title"`
	// MessageCount is the number of messages written since creation or the
	// last reset.
	MessageCount int `json:"messageCount"`
	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"createdAt"`
	// LastActivity is the timestamp of the most recent write.
	LastActivity time.Time `json:"lastActivity"`
}

// Store is the session store contract consumed by the chat orchestrator and
// the HTTP layer. Implementations must be safe for concurrent use.
//
// AddMessage against a nonexistent session is undefined — callers must check
// Exists first at the orchestration layer.
type Store interface {
	// Create allocates a fresh session and returns its opaque identifier.
	Create(ctx context.Context) (string, error)

	// AddMessage appends a message to the session's log, increments the
	// message counter, and refreshes the sliding TTL.
	AddMessage(ctx context.Context, sessionID string, role Role, content string) (Message, error)

	// History returns up to limit most recent messages in chronological
	// (oldest-first) order. A fresh session yields an empty slice.
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// Reset clears the session's message log and zeroes its counter while
	// preserving the session identity and its expiry. Returns false when the
	// session does not exist.
	Reset(ctx context.Context, sessionID string) (bool, error)

	// Exists reports whether the session is present and unexpired.
	Exists(ctx context.Context, sessionID string) (bool, error)

	// List returns summaries of all live sessions sorted by most recent
	// activity, newest first.
	List(ctx context.Context) ([]Summary, error)
}
