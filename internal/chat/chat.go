// Package chat implements the query orchestrator: the state machine that
// turns one user message into one answer. A query moves through validation,
// concurrent retrieval + history fetch, prompt assembly, a bounded generation
// call, and best-effort persistence of the exchange.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/newschat-go/internal/budget"
	"github.com/54b3r/newschat-go/internal/logging"
	"github.com/54b3r/newschat-go/internal/prompt"
	"github.com/54b3r/newschat-go/internal/rag"
	"github.com/54b3r/newschat-go/internal/session"
)

// systemPrompt establishes the assistant's persona for every generation call.
const systemPrompt = `You are a news assistant. You answer questions using only the
news articles provided in the prompt and the conversation so far. Be concise,
attribute claims to their articles, and never invent coverage that is not in
the provided material.`

// Generator is the narrow slice of the LLM backend the orchestrator needs.
// The eino ChatModel implementations produced by the provider factory satisfy
// it; tests inject a fake.
type Generator interface {
	// Generate produces a completion for the given messages.
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Config holds the dependencies and tuning knobs for an Orchestrator.
type Config struct {
	// Retriever produces ranked passages for a query.
	Retriever rag.Retriever

	// Sessions is the session and message store.
	Sessions session.Store

	// Model is the generation backend.
	Model Generator

	// RetrieveLimit is the number of passages requested per query.
	// Defaults to 5.
	RetrieveLimit int

	// HistoryLimit is the number of recent messages fetched per query.
	// Defaults to 20; prompt limits and the token budget trim further.
	HistoryLimit int

	// PromptLimits bounds the assembled prompt.
	PromptLimits prompt.Limits

	// MaxContextTokens is the estimated token budget for the whole prompt.
	// History is trimmed oldest-first to fit. Defaults to
	// budget.DefaultMaxContextTokens.
	MaxContextTokens int

	// GenerateTimeout is the hard per-attempt ceiling on the generation
	// call. Defaults to 10s.
	GenerateTimeout time.Duration

	// GenerateAttempts is the total number of generation attempts before
	// surfacing ErrGenerationFailed. Defaults to 3.
	GenerateAttempts int

	// RetryBackoff is the base delay between generation attempts; it doubles
	// after each failure. Defaults to 500ms.
	RetryBackoff time.Duration
}

// Response is the structured answer returned for one query.
type Response struct {
	// Role is always "bot".
	Role string `json:"role"`
	// Content is the generated answer text.
	Content string `json:"content"`
	// Sources attributes the passages the answer drew on.
	Sources []prompt.Source `json:"sources"`
	// ProcessingTimeMs is the wall-clock duration of the whole pipeline.
	ProcessingTimeMs int64 `json:"processingTimeMs"`
}

// Orchestrator runs the query pipeline. Queries are independent: any number
// may run concurrently, each doing its own retrieval, generation, and writes.
type Orchestrator struct {
	// retriever produces ranked passages for a query.
	retriever rag.Retriever
	// sessions is the session and message store.
	sessions session.Store
	// model is the generation backend.
	model Generator
	// cfg holds the resolved tuning knobs.
	cfg Config
}

// New constructs an Orchestrator from the given config.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("chat: Retriever must not be nil")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("chat: Sessions must not be nil")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("chat: Model must not be nil")
	}
	if cfg.RetrieveLimit <= 0 {
		cfg.RetrieveLimit = 5
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 10 * time.Second
	}
	if cfg.GenerateAttempts <= 0 {
		cfg.GenerateAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	return &Orchestrator{
		retriever: cfg.Retriever,
		sessions:  cfg.Sessions,
		model:     cfg.Model,
		cfg:       cfg,
	}, nil
}

// Query answers one user message in the context of a session.
//
// Retrieval and history fetch run concurrently; generation runs strictly
// after both complete since it consumes both outputs. Persistence happens
// last and is best-effort: once generation has succeeded the user gets their
// answer even if the writes fail. When generation fails, nothing is persisted
// for the exchange.
func (o *Orchestrator) Query(ctx context.Context, sessionID, message string) (*Response, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	// Validating.
	if sessionID == "" {
		return nil, fmt.Errorf("chat: sessionId is required: %w", ErrInvalidRequest)
	}
	if message == "" {
		return nil, fmt.Errorf("chat: message is required: %w", ErrInvalidRequest)
	}
	exists, err := o.sessions.Exists(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat: session lookup: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("chat: session %q: %w", sessionID, ErrSessionNotFound)
	}

	// Retrieving: passage search and history fetch are independent, so they
	// run in parallel. Both must complete before generation.
	type retrievalOut struct {
		passages []rag.Result
		err      error
	}
	type historyOut struct {
		messages []session.Message
		err      error
	}
	retrievalCh := make(chan retrievalOut, 1)
	historyCh := make(chan historyOut, 1)

	go func() {
		passages, err := o.retriever.Search(ctx, message, o.cfg.RetrieveLimit)
		retrievalCh <- retrievalOut{passages: passages, err: err}
	}()
	go func() {
		messages, err := o.sessions.History(ctx, sessionID, o.cfg.HistoryLimit)
		historyCh <- historyOut{messages: messages, err: err}
	}()

	retrieval := <-retrievalCh
	history := <-historyCh

	if retrieval.err != nil {
		return nil, fmt.Errorf("chat: retrieval: %w", retrieval.err)
	}
	if history.err != nil {
		return nil, fmt.Errorf("chat: history: %w", history.err)
	}

	// Generating.
	fixedTokens := budget.Estimate(systemPrompt) + budget.Estimate(message) +
		passagesTokenEstimate(retrieval.passages, o.cfg.PromptLimits)
	trimmedHistory := budget.TrimHistory(history.messages, fixedTokens, o.cfg.MaxContextTokens)

	promptText, sources := prompt.Build(retrieval.passages, trimmedHistory, message, o.cfg.PromptLimits)

	var content string
	if len(retrieval.passages) == 0 {
		// Nothing retrieved: the fixed fallback IS the answer. Skipping the
		// model call keeps this state deterministic and cheap.
		content = prompt.NoMatchFallback
	} else {
		content, err = o.generate(ctx, promptText)
		if err != nil {
			return nil, err
		}
	}

	// Persisting: two best-effort writes, user message first. A failure here
	// is logged and swallowed — the answer has already been produced.
	if _, err := o.sessions.AddMessage(ctx, sessionID, session.RoleUser, message); err != nil {
		log.Warn("chat: failed to persist user message",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
	} else if _, err := o.sessions.AddMessage(ctx, sessionID, session.RoleBot, content); err != nil {
		log.Warn("chat: failed to persist bot message",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
	}

	return &Response{
		Role:             "bot",
		Content:          content,
		Sources:          sources,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// generate calls the model with a per-attempt timeout and bounded retries
// with exponential backoff. All attempts exhausted surfaces
// ErrGenerationFailed wrapping the last attempt's error.
func (o *Orchestrator) generate(ctx context.Context, promptText string) (string, error) {
	log := logging.FromContext(ctx)
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(promptText),
	}

	var lastErr error
	backoff := o.cfg.RetryBackoff

	for attempt := 1; attempt <= o.cfg.GenerateAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerateTimeout)
		resp, err := o.model.Generate(attemptCtx, messages)
		cancel()

		if err == nil && resp != nil && resp.Content != "" {
			return resp.Content, nil
		}
		if err == nil {
			err = fmt.Errorf("model returned empty response")
		}
		lastErr = err

		log.Warn("chat: generation attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", o.cfg.GenerateAttempts),
			slog.Any("error", err),
		)

		if attempt == o.cfg.GenerateAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("chat: %w: %w", ErrGenerationFailed, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return "", fmt.Errorf("chat: %w: %w", ErrGenerationFailed, lastErr)
}

// passagesTokenEstimate approximates the token cost of the rendered passage
// block for budget purposes, using the post-truncation excerpt lengths.
func passagesTokenEstimate(passages []rag.Result, limits prompt.Limits) int {
	total := 0
	for _, p := range passages {
		body := len(p.Body)
		if limits.MaxExcerptLen > 0 && body > limits.MaxExcerptLen {
			body = limits.MaxExcerptLen
		}
		total += budget.Estimate(p.Title) + body/4 + 16
	}
	return total
}
