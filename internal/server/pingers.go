package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// LLMPinger probes an LLM backend by sending a minimal single-message
// generate request. It satisfies the Pinger interface.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.ToolCallingChatModel
	// name identifies the backend in health responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.ToolCallingChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in health responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a one-word generate request to the backend. This consumes a few
// tokens per probe, so health checks should not run at high frequency.
func (p *LLMPinger) Ping(ctx context.Context) error {
	msgs := []*schema.Message{
		schema.UserMessage("ping"),
	}
	resp, err := p.model.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// qdrantPingable is satisfied by *rag.QdrantStore without importing it here.
type qdrantPingable interface {
	Ping(ctx context.Context) error
}

// QdrantPinger probes the Qdrant vector store via its HealthCheck RPC.
// It satisfies the Pinger interface.
type QdrantPinger struct {
	// store is the Qdrant-backed store to probe.
	store qdrantPingable
}

// NewQdrantPinger constructs a QdrantPinger for the given store.
func NewQdrantPinger(store qdrantPingable) *QdrantPinger {
	return &QdrantPinger{store: store}
}

// Name returns the dependency label used in health responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping issues a Qdrant health check through the store's client.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// redisPingable is satisfied by *session.RedisStore without importing it here.
type redisPingable interface {
	Ping(ctx context.Context) error
}

// RedisPinger probes the Redis session store via its PING command.
// It satisfies the Pinger interface.
type RedisPinger struct {
	// store is the Redis-backed store to probe.
	store redisPingable
}

// NewRedisPinger constructs a RedisPinger for the given store.
func NewRedisPinger(store redisPingable) *RedisPinger {
	return &RedisPinger{store: store}
}

// Name returns the dependency label used in health responses.
func (p *RedisPinger) Name() string { return "redis" }

// Ping issues a Redis PING through the store's client.
func (p *RedisPinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
