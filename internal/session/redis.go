package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Meta hash field names.
const (
	metaCreatedAt    = "created_at"
	metaMessageCount = "message_count"
	metaLastActivity = "last_activity"
)

// defaultTTL is the sliding session lifetime absent any write.
const defaultTTL = 24 * time.Hour

// maxListScan bounds how many meta keys a single List call will walk.
// Dashboards paging beyond this should filter server-side instead.
const maxListScan = 1000

// RedisConfig holds connection parameters for the Redis session store.
type RedisConfig struct {
	// Addr is the Redis host:port (default: localhost:6379).
	Addr string

	// Password is the optional Redis AUTH password.
	Password string

	// DB is the Redis logical database number.
	DB int

	// TTL is the sliding session lifetime. Defaults to 24h if zero.
	TTL time.Duration
}

// RedisStore implements Store backed by a Redis instance.
type RedisStore struct {
	// client is the underlying Redis client.
	client *redis.Client

	// ttl is the sliding session lifetime.
	ttl time.Duration
}

// NewRedisStore connects to Redis, verifies the connection with a PING, and
// returns a ready-to-use Store.
func NewRedisStore(ctx context.Context, cfg *RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("session: ping redis at %s: %w (%w)", cfg.Addr, err, ErrUnavailable)
	}

	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

// metaKey returns the Redis key of the session metadata hash.
func metaKey(sessionID string) string {
	return "session:" + sessionID + ":meta"
}

// messagesKey returns the Redis key of the session message list.
// Messages are LPUSHed, so storage order is reverse-chronological.
func messagesKey(sessionID string) string {
	return "session:" + sessionID + ":messages"
}

// Create allocates a fresh session with a zeroed counter and the full TTL.
func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, metaKey(id), map[string]interface{}{
			metaCreatedAt:    now.Format(time.RFC3339Nano),
			metaMessageCount: 0,
			metaLastActivity: now.Format(time.RFC3339Nano),
		})
		pipe.Expire(ctx, metaKey(id), s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("session: create: %w (%w)", err, ErrUnavailable)
	}

	return id, nil
}

// AddMessage appends a message, increments the counter, and refreshes the
// sliding TTL on both the metadata hash and the message log. The three
// operations are submitted as one MULTI/EXEC transaction so a partially
// written exchange is never observable.
func (s *RedisStore) AddMessage(ctx context.Context, sessionID string, role Role, content string) (Message, error) {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("session: marshal message: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, messagesKey(sessionID), payload)
		pipe.HIncrBy(ctx, metaKey(sessionID), metaMessageCount, 1)
		pipe.HSet(ctx, metaKey(sessionID), metaLastActivity, msg.Timestamp.Format(time.RFC3339Nano))
		pipe.Expire(ctx, metaKey(sessionID), s.ttl)
		pipe.Expire(ctx, messagesKey(sessionID), s.ttl)
		return nil
	})
	if err != nil {
		return Message{}, fmt.Errorf("session: add message: %w (%w)", err, ErrUnavailable)
	}

	return msg, nil
}

// History returns up to limit most recent messages, oldest first. The list
// is stored newest-first, so the first limit elements are read and reversed.
func (s *RedisStore) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}

	raw, err := s.client.LRange(ctx, messagesKey(sessionID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("session: history: %w (%w)", err, ErrUnavailable)
	}

	msgs := make([]Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m Message
		if err := json.Unmarshal([]byte(raw[i]), &m); err != nil {
			return nil, fmt.Errorf("session: corrupt message in %s: %w", sessionID, err)
		}
		msgs = append(msgs, m)
	}

	return msgs, nil
}

// Reset clears the message log and zeroes the counter. The metadata hash and
// its expiry are left as they are, so the session identity survives.
func (s *RedisStore) Reset(ctx context.Context, sessionID string) (bool, error) {
	exists, err := s.Exists(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, messagesKey(sessionID))
		pipe.HSet(ctx, metaKey(sessionID), metaMessageCount, 0)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("session: reset: %w (%w)", err, ErrUnavailable)
	}

	return true, nil
}

// Exists reports whether the session metadata key is present and unexpired.
func (s *RedisStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, metaKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("session: exists: %w (%w)", err, ErrUnavailable)
	}
	return n == 1, nil
}

// List walks session metadata keys and returns dashboard summaries sorted by
// most recent activity, newest first.
func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	var summaries []Summary

	iter := s.client.Scan(ctx, 0, metaKey("*"), maxListScan).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id := sessionIDFromMetaKey(key)
		if id == "" {
			continue
		}

		meta, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("session: list meta %s: %w (%w)", key, err, ErrUnavailable)
		}
		if len(meta) == 0 {
			// Expired between SCAN and HGETALL.
			continue
		}

		summary := summaryFromMeta(id, meta)

		// Preview comes from the newest message, which is at the head of
		// the list.
		newest, err := s.client.LIndex(ctx, messagesKey(id), 0).Result()
		if err == nil {
			var m Message
			if json.Unmarshal([]byte(newest), &m) == nil {
				summary.Title = previewTitle(m.Content)
			}
		} else if err != redis.Nil {
			return nil, fmt.Errorf("session: list preview %s: %w (%w)", id, err, ErrUnavailable)
		}

		summaries = append(summaries, summary)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("session: list scan: %w (%w)", err, ErrUnavailable)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})

	return summaries, nil
}

// Ping checks Redis reachability. Used by readiness and health probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("session: ping failed: %w", err)
	}
	return nil
}

// Close releases the Redis client's connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// sessionIDFromMetaKey extracts the session id from a "session:<id>:meta"
// key, returning "" for keys that do not match the pattern.
func sessionIDFromMetaKey(key string) string {
	const prefix, suffix = "session:", ":meta"
	if len(key) <= len(prefix)+len(suffix) {
		return ""
	}
	if key[:len(prefix)] != prefix || key[len(key)-len(suffix):] != suffix {
		return ""
	}
	return key[len(prefix) : len(key)-len(suffix)]
}

// summaryFromMeta builds a Summary from the raw metadata hash. Unparseable
// fields degrade to zero values rather than failing the listing.
func summaryFromMeta(id string, meta map[string]string) Summary {
	summary := Summary{ID: id}
	if n, err := strconv.Atoi(meta[metaMessageCount]); err == nil {
		summary.MessageCount = n
	}
	if t, err := time.Parse(time.RFC3339Nano, meta[metaCreatedAt]); err == nil {
		summary.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, meta[metaLastActivity]); err == nil {
		summary.LastActivity = t
	}
	return summary
}

// previewTitle trims a message down to a short dashboard title.
func previewTitle(content string) string {
	const maxLen = 60
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen-1] + "…"
}
