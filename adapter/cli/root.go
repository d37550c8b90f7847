package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/internal/app"
	"github.com/felixgeelhaar/cadence/pkg/config"
	"github.com/felixgeelhaar/cadence/pkg/observability"
)

var (
	cfgFile string
	verbose bool
	logger  *slog.Logger
)

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandContextKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Cadence - recurring events and reminders",
	Long: `Cadence expands recurring events into occurrences, applies
per-occurrence overrides, and dispatches reminders before they start.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger == nil {
			logger = slog.Default()
		}
		info := commandContext{
			correlationID: uuid.New(),
			startedAt:     time.Now(),
		}
		ctx := context.WithValue(cmd.Context(), commandContextKey{}, info)
		ctx = observability.WithCorrelationID(ctx, info.correlationID.String())
		cmd.SetContext(ctx)
		logger.DebugContext(ctx, "command start", "command", cmd.CommandPath())

		if cmd.Annotations[skipContainer] == "true" || GetApp() != nil {
			return nil
		}
		return initApp(ctx)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if !ok {
			return
		}
		logger.DebugContext(cmd.Context(), "command end",
			"command", cmd.CommandPath(),
			"duration_ms", time.Since(info.startedAt).Milliseconds(),
		)
	},
}

// skipContainer marks commands that run without a database.
const skipContainer = "cadence/skip-container"

func initApp(ctx context.Context) error {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		logger = observability.NewLogger(observability.LogConfig{
			Level:       observability.LogLevelDebug,
			Format:      observability.LogFormatText,
			Output:      os.Stderr,
			ServiceName: "cadence",
		})
	}
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	SetApp(container)
	return nil
}

// Execute runs the root command and releases the container afterwards.
func Execute(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if c := GetApp(); c != nil {
		c.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file overlaid on the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// Root returns the root command, for tests.
func Root() *cobra.Command {
	return rootCmd
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}
