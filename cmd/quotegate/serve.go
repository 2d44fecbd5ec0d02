package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/quotegate/internal/server"
	"github.com/Sternrassler/quotegate/pkg/logging"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.NewLogger("serve")

			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := a.store.Ping(pingCtx); err != nil {
				log.Warn().Err(err).Str("addr", a.cfg.Redis.Addr).Msg("Redis unreachable, starting degraded")
			} else {
				log.Info().Str("addr", a.cfg.Redis.Addr).Msg("Connected to Redis")
			}
			cancel()

			srv := server.New(server.Config{
				Log:           a.logger,
				Fetcher:       a.fetcher,
				Limiter:       a.limiter,
				Cache:         a.cache,
				Store:         a.store,
				Enricher:      a.enricher,
				PortfolioPath: a.cfg.Portfolio.Path,
				CORSOrigins:   a.cfg.Server.CORSOrigins,
				Port:          a.cfg.Server.Port,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
