package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oraraka-deko/microclaw/device"
	"github.com/oraraka-deko/microclaw/transport"
)

func NewServeCmd() *cobra.Command {
	var addr string
	var noTelegram bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web chat endpoint and the Telegram poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := slog.Default()

			a, err := newApp(getGlobalOptions(ctx), logger, device.HostLink{})
			if err != nil {
				return err
			}
			defer a.runner.Wait()

			turns := transport.NewSerial(a.agent)
			router := transport.NewRouter(turns, logger.With("component", "web"), a.registry)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return transport.Serve(ctx, addr, router, logger)
			})

			if token := a.settings.Get().TelegramToken; token != "" && !noTelegram {
				tg := transport.NewTelegram(token, turns).
					WithLogger(logger.With("component", "telegram")).
					WithLink(device.HostLink{})
				g.Go(func() error { return tg.Run(ctx) })
			} else {
				logger.Info("telegram disabled (no token)")
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().BoolVar(&noTelegram, "no-telegram", false, "do not poll Telegram even if a token is configured")
	return cmd
}
