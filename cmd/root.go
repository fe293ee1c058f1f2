// Package cmd defines and implements the CLI commands for the notesaver executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/notesaver/internal/app"
	"github.com/JakeFAU/notesaver/internal/config"
	"github.com/JakeFAU/notesaver/internal/logging"
)

// sessionKeyType is the key for storing the session in the context.
type sessionKeyType string

const sessionKey sessionKeyType = "session"

// session carries what PersistentPreRunE resolved for the subcommands.
type session struct {
	cfg    config.Config
	logger *zap.Logger
}

// newApp is the application factory. It's a variable so tests can inject a
// transport that trusts their TLS servers.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.Build(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "notesaver",
		Short: "Save captions, covers and videos from shared note links.",
		Long: `notesaver reads pasted share messages, finds every share link in them and
downloads each post's caption text, first video and, optionally, one cover
image into a target directory. Links are processed concurrently by a fixed
pool of workers.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			ctx := context.WithValue(cmd.Context(), sessionKey, &session{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, err := resolveSession(cmd.Context()); err == nil {
				_ = rt.logger.Sync() //nolint:errcheck // best-effort flush
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.AddCommand(newSaveCmd())
	return cmd
}

func resolveSession(ctx context.Context) (*session, error) {
	rt, ok := ctx.Value(sessionKey).(*session)
	if !ok || rt == nil {
		return nil, errors.New("session not initialized")
	}
	return rt, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
