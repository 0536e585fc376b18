package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/newschat-go/internal/chat"
	"github.com/54b3r/newschat-go/internal/logging"
	"github.com/54b3r/newschat-go/internal/provider"
	"github.com/54b3r/newschat-go/internal/server"
	"github.com/54b3r/newschat-go/internal/session"
	"github.com/54b3r/newschat-go/internal/tracing"
)

// NewServeCmd constructs the `newschat serve` command, which starts the HTTP
// chat API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the newschat HTTP API server",
		Long: `Start the newschat HTTP server on localhost.

The server exposes the chat REST API: session management, chat queries with
retrieval-augmented answers, history, health, and Prometheus metrics.

Examples:
  newschat serve
  newschat serve --port 9090
  MODEL_PROVIDER=openai newschat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")))

			retriever, vectorStore, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer vectorStore.Close()

			// Session store: Redis when reachable, else an in-process store so
			// a local dev server still works. Memory sessions do not survive a
			// restart and are invisible to other replicas.
			var sessions session.Store
			var redisStore *session.RedisStore
			redisAddr := getEnvOrDefault("REDIS_ADDR", "localhost:6379")
			redisStore, err = session.NewRedisStore(ctx, &session.RedisConfig{
				Addr:     redisAddr,
				Password: os.Getenv("REDIS_PASSWORD"),
				DB:       getEnvInt("REDIS_DB", 0),
				TTL:      time.Duration(getEnvInt("SESSION_TTL_HOURS", 0)) * time.Hour,
			})
			if err != nil {
				log.Warn("sessions: redis unreachable, falling back to in-memory store",
					slog.String("addr", redisAddr), slog.Any("error", err))
				redisStore = nil
				sessions = session.NewMemoryStore()
			} else {
				sessions = redisStore
				log.Info("sessions: redis store connected", slog.String("addr", redisAddr))
			}

			orchestrator, err := chat.New(chat.Config{
				Retriever:     retriever,
				Sessions:      sessions,
				Model:         chatModel,
				RetrieveLimit: getEnvInt("RETRIEVAL_LIMIT", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to initialise orchestrator: %w", err)
			}

			pingers := []server.Pinger{
				server.NewQdrantPinger(vectorStore),
				server.NewLLMPinger(chatModel, getEnvOrDefault("MODEL_PROVIDER", "ollama")),
			}
			if redisStore != nil {
				pingers = append(pingers, server.NewRedisPinger(redisStore))
			}

			srv, err := server.New(orchestrator, sessions, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("NEWSCHAT_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
