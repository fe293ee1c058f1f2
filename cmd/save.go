package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/notesaver/internal/extract"
	"github.com/JakeFAU/notesaver/internal/saver"
)

type saveFlags struct {
	input          string
	out            string
	workers        int
	skipText       bool
	firstImageOnly bool
	metricsAddr    string
}

// newSaveCmd creates and configures the 'save' subcommand.
func newSaveCmd() *cobra.Command {
	flags := &saveFlags{}
	cmd := &cobra.Command{
		Use:   "save [text...]",
		Short: "Download every shared note found in the input text",
		Long: `Extracts share links from the input text and saves, per post, the caption
text, the first video and (with --first-image-only) a single cover image for
the whole batch. Text comes from --input FILE, --input - for stdin, or the
positional arguments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(cmd, args, flags)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.input, "input", "i", "", "file with share text, or - for stdin")
	f.StringVarP(&flags.out, "out", "o", "", "target directory (overrides saver.output_dir)")
	f.IntVarP(&flags.workers, "workers", "w", 0, "worker count (overrides saver.workers)")
	f.BoolVar(&flags.skipText, "skip-text", false, "do not write caption text files")
	f.BoolVar(&flags.firstImageOnly, "first-image-only", false, "save one cover image for the whole batch")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve /healthz, /metrics and /v1/progress on this address")
	return cmd
}

func runSave(cmd *cobra.Command, args []string, flags *saveFlags) error {
	rt, err := resolveSession(cmd.Context())
	if err != nil {
		return err
	}
	cfg := rt.cfg
	if flags.out != "" {
		cfg.Saver.OutputDir = flags.out
	}
	if flags.workers != 0 {
		cfg.Saver.Workers = flags.workers
	}
	if cmd.Flags().Changed("skip-text") {
		cfg.Saver.SkipTextContent = flags.skipText
	}
	if cmd.Flags().Changed("first-image-only") {
		cfg.Saver.KeepOnlyFirstImage = flags.firstImageOnly
	}
	if flags.metricsAddr != "" {
		cfg.Metrics.Addr = flags.metricsAddr
	}

	input, err := readInput(cmd, args, flags.input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appInstance, err := newApp(ctx, cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := appInstance.Close(shutdownCtx); cerr != nil {
			rt.logger.Warn("failed to close application", zap.Error(cerr))
		}
	}()

	if _, err := appInstance.StartMetrics(); err != nil {
		return err
	}

	orch, err := appInstance.Orchestrator(saver.Options{
		Workers:            cfg.Saver.Workers,
		SkipTextContent:    cfg.Saver.SkipTextContent,
		KeepOnlyFirstImage: cfg.Saver.KeepOnlyFirstImage,
		TargetDirectory:    cfg.Saver.OutputDir,
	}, func(success, total int) {
		rt.logger.Info("progress", zap.Int("success", success), zap.Int("total", total))
	}, nil)
	if err != nil {
		return err
	}

	appInstance.Progress().Start(len(extract.SourceURLs(input)))
	summary, err := orch.Run(ctx, input)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "done: success=%d fail=%d total=%d\n",
		summary.Success, summary.Fail, summary.Total); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("save interrupted: %w", ctx.Err())
	}
	return nil
}

func readInput(cmd *cobra.Command, args []string, input string) (string, error) {
	switch input {
	case "":
		return strings.Join(args, " "), nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(input) // #nosec G304 -- path supplied by the operator.
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(data), nil
	}
}
