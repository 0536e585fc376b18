package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by the one-shot CLI path and by
// tests. It implements the same contract as RedisStore minus durability and
// TTL expiry — sessions live as long as the process.
type MemoryStore struct {
	// mu protects sessions.
	mu sync.Mutex

	// sessions maps session id to its state.
	sessions map[string]*memorySession
}

// memorySession holds one session's state.
type memorySession struct {
	createdAt    time.Time
	lastActivity time.Time
	messageCount int
	// messages is stored newest-first, mirroring the Redis list layout.
	messages []Message
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

// Create allocates a fresh session.
func (s *MemoryStore) Create(_ context.Context) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &memorySession{createdAt: now, lastActivity: now}
	return id, nil
}

// AddMessage appends a message and increments the counter.
func (s *MemoryStore) AddMessage(_ context.Context, sessionID string, role Role, content string) (Message, error) {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		// Mirrors Redis behaviour: a write against an unknown session
		// silently creates the keys. Callers are expected to check Exists.
		sess = &memorySession{createdAt: msg.Timestamp}
		s.sessions[sessionID] = sess
	}

	sess.messages = append([]Message{msg}, sess.messages...)
	sess.messageCount++
	sess.lastActivity = msg.Timestamp
	return msg, nil
}

// History returns up to limit most recent messages, oldest first.
func (s *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []Message{}, nil
	}

	n := min(limit, len(sess.messages))
	out := make([]Message, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, sess.messages[i])
	}
	return out, nil
}

// Reset clears the message log and zeroes the counter.
func (s *MemoryStore) Reset(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	sess.messages = nil
	sess.messageCount = 0
	return true, nil
}

// Exists reports whether the session is present.
func (s *MemoryStore) Exists(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	return ok, nil
}

// List returns summaries sorted by most recent activity, newest first.
func (s *MemoryStore) List(_ context.Context) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]Summary, 0, len(s.sessions))
	for id, sess := range s.sessions {
		summary := Summary{
			ID:           id,
			MessageCount: sess.messageCount,
			CreatedAt:    sess.createdAt,
			LastActivity: sess.lastActivity,
		}
		if len(sess.messages) > 0 {
			summary.Title = previewTitle(sess.messages[0].Content)
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})
	return summaries, nil
}
