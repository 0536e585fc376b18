package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/newschat-go/internal/chat"
	"github.com/54b3r/newschat-go/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed the orchestrator's full retry budget.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes consulted by
	// GET /api/health and GET /api/ready. If empty, both report healthy.
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus metrics. If nil,
	// prometheus.DefaultRegisterer is used.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. If nil, prometheus.DefaultGatherer
	// is used.
	MetricsGatherer prometheus.Gatherer
}

// querier is the interface handleChat calls to run one query.
// *chat.Orchestrator satisfies it; tests inject a fake.
type querier interface {
	// Query runs the full pipeline for one user message.
	Query(ctx context.Context, sessionID, message string) (*chat.Response, error)
}

// Server is the HTTP server that exposes the chat pipeline and the session
// store as a REST API.
type Server struct {
	// chat runs the query pipeline for POST /api/chat.
	chat querier
	// sessions backs the session management endpoints.
	sessions session.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// SessionID identifies the conversation to append to.
	SessionID string `json:"sessionId"`
	// Message is the user's question.
	Message string `json:"message"`
}

// sessionResponse is the JSON response for POST /api/session.
type sessionResponse struct {
	// SessionID is the identifier of the newly created session.
	SessionID string `json:"sessionId"`
}

// historyResponse is the JSON response for GET /api/history.
type historyResponse struct {
	// SessionID echoes the queried session.
	SessionID string `json:"sessionId"`
	// Messages is the conversation in chronological order.
	Messages []session.Message `json:"messages"`
}

// resetRequest is the JSON body for POST /api/session/reset.
type resetRequest struct {
	// SessionID identifies the session whose messages are cleared.
	SessionID string `json:"sessionId"`
}

// resetResponse is the JSON response for POST /api/session/reset.
type resetResponse struct {
	// Success is true when the session existed and was cleared.
	Success bool `json:"success"`
}

// sessionsResponse is the JSON response for GET /api/sessions.
type sessionsResponse struct {
	// Sessions lists every live session, most recently active first.
	Sessions []session.Summary `json:"sessions"`
}
