package commands

import (
	"fmt"
	"os"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/coursechat/coursechat-go/internal/agent"
	"github.com/coursechat/coursechat-go/internal/embedder"
	"github.com/coursechat/coursechat-go/internal/logging"
	"github.com/coursechat/coursechat-go/internal/metrics"
	"github.com/coursechat/coursechat-go/internal/provider"
	"github.com/coursechat/coursechat-go/internal/resolver"
	"github.com/coursechat/coursechat-go/internal/session"
	"github.com/coursechat/coursechat-go/internal/tools"
	"github.com/coursechat/coursechat-go/internal/tracing"
)

// NewAskCmd constructs the `coursechat ask` command, which answers a single
// natural language question about the ingested course materials.
func NewAskCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your course materials",
		Long: `Ask the coursechat agent a natural language question.

The agent searches ingested course content when the question calls for it
and cites the courses and lessons it drew from. Pass --session to continue
an earlier conversation; without it a new session is created and its ID is
printed so follow-up questions can reference it.

Examples:
  coursechat ask "what does lesson 3 of the MCP course cover?"
  coursechat ask --session 8f2f9c1a "and the lesson after that?"
  coursechat ask "what is retrieval augmented generation?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Tracing is optional — enabled only when Langfuse keys are set.
			if handler, flush, ok := tracing.Setup(); ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			store, err := buildStore(ctx)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer store.Close()

			threshold := getEnvFloat32("SIMILARITY_THRESHOLD", resolver.DefaultThreshold)
			res, err := resolver.New(store, threshold)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			searchTool, err := tools.NewSearchTool(store, res, getEnvInt("MAX_RESULTS", 0))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			outlineTool, err := tools.NewOutlineTool(store, res)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			registry, err := tools.NewRegistry(searchTool, outlineTool)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			sessions, err := openSessions()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			if sessions != nil {
				defer sessions.Close()
			}

			orchestrator, err := agent.New(ctx, &agent.Config{
				ChatModel:     chatModel,
				Registry:      registry,
				Sessions:      sessions,
				MaxToolRounds: getEnvInt("MAX_TOOL_ROUNDS", agent.DefaultMaxToolRounds),
				ModelRPS:      getEnvFloat64("MODEL_RPS", 0),
				ModelTimeout:  getEnvDuration("MODEL_TIMEOUT", 0),
				Metrics:       metrics.New(prometheus.NewRegistry()),
			})
			if err != nil {
				return fmt.Errorf("ask: failed to initialise agent: %w", err)
			}

			// Resolve the session: continue the given one, or start fresh.
			if sessions != nil && sessionID == "" {
				sessionID, err = sessions.CreateSession(ctx)
				if err != nil {
					return fmt.Errorf("ask: failed to create session: %w", err)
				}
				fmt.Fprintf(os.Stderr, "session: %s\n", sessionID)
			}

			answer, err := orchestrator.Query(ctx, sessionID, args[0])
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(answer.Text)
			if len(answer.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range answer.Sources {
					if src.Link != "" {
						fmt.Printf("  - %s (%s)\n", src.Text, src.Link)
					} else {
						fmt.Printf("  - %s\n", src.Text)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session ID to continue an earlier conversation")

	return cmd
}

// openSessions opens the SQLite session store, honouring the
// COURSECHAT_SESSION_DB override. Returns nil when sessions are disabled.
func openSessions() (*session.Manager, error) {
	path := os.Getenv("COURSECHAT_SESSION_DB")
	if path == "disabled" {
		return nil, nil
	}
	if path == "" {
		var err error
		path, err = session.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve session db path: %w", err)
		}
	}
	mgr, err := session.Open(path, getEnvInt("MAX_HISTORY_TURNS", session.DefaultMaxTurns))
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}
	return mgr, nil
}
