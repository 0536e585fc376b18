package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/newschat-go/internal/chat"
	"github.com/54b3r/newschat-go/internal/logging"
	"github.com/54b3r/newschat-go/internal/provider"
	"github.com/54b3r/newschat-go/internal/session"
)

// NewAskCmd constructs the `newschat ask` command, which runs a single
// question through the full retrieval pipeline against a throwaway session
// and prints the answer with its sources.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the news chatbot a one-off question",
		Long: `Ask a single natural language question about recent news.

The question runs through the same retrieval and generation pipeline as the
HTTP API, using a throwaway in-memory session. Sources are printed after the
answer.

Examples:
  newschat ask "what happened in the markets today?"
  newschat ask "latest on the world cup"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			retriever, store, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer store.Close()

			sessions := session.NewMemoryStore()
			sessionID, err := sessions.Create(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to create session: %w", err)
			}

			orchestrator, err := chat.New(chat.Config{
				Retriever: retriever,
				Sessions:  sessions,
				Model:     chatModel,
			})
			if err != nil {
				return fmt.Errorf("ask: failed to initialise orchestrator: %w", err)
			}

			resp, err := orchestrator.Query(ctx, sessionID, args[0])
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(resp.Content)
			if len(resp.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range resp.Sources {
					fmt.Printf("  - %s (%s) %s\n", src.Title, src.Source, src.URL)
				}
			}
			return nil
		},
	}

	return cmd
}
