package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	DataDir string
	Log     logOptions
}

type ctxKey struct{}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	options := &globalOptions{Log: logOptions{Level: LogLevelInfo, Format: "text"}}
	var closer io.Closer = nopCloser{}

	cmd := &cobra.Command{
		Use:          "microclaw",
		Short:        "MicroClaw: a tool-using agent for small hardware.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if options.Log.Format != "text" && options.Log.Format != "json" {
				return fmt.Errorf("--log-format must be text or json, got %q", options.Log.Format)
			}
			var logger *slog.Logger
			logger, closer = newLogger(options.Log, cmd.ErrOrStderr())
			slog.SetDefault(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, options))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closer.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&options.DataDir, "data-dir", defaultDataDir(), "directory holding MEMORY.md and config.json")
	cmd.PersistentFlags().Var(&options.Log.Level, "log-level", "set the log level")
	cmd.PersistentFlags().StringVar(&options.Log.Format, "log-format", options.Log.Format, "console log format: text or json")
	cmd.PersistentFlags().StringVar(&options.Log.File, "log-file", "", "also write JSON logs to this rotated file")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewChatCmd())
	cmd.AddCommand(NewConfigCmd())
	return cmd
}

func getGlobalOptions(ctx context.Context) *globalOptions {
	if o, ok := ctx.Value(ctxKey{}).(*globalOptions); ok {
		return o
	}
	return &globalOptions{DataDir: defaultDataDir()}
}

func defaultDataDir() string {
	if dir := os.Getenv("MICROCLAW_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".microclaw"
	}
	return filepath.Join(home, ".microclaw")
}
