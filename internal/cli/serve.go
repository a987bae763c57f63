package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/diagnosis/reservations/internal/http/handlers"
	"github.com/diagnosis/reservations/pkg/logger"
)

func NewServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reservation form and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(os.Stdout)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctrl, pub, err := newController(cfg)
			if err != nil {
				return err
			}
			defer pub.Close()

			store, closeStore, err := newStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			hashKey, blockKey, err := cfg.SessionKeys()
			if err != nil {
				return err
			}
			if hashKey == nil {
				logger.Warn("SESSION_HASH_KEY not set, using a per-process key")
			}
			flash, err := handlers.NewFlash(hashKey, blockKey)
			if err != nil {
				return err
			}

			router, err := handlers.NewRouter(ctrl, flash, handlers.RouterConfig{
				ServiceName:    "reservations",
				AllowedOrigins: cfg.Server.AllowedOrigins,
				MaxBodyBytes:   int64(cfg.Server.MaxBodyBytes),
				Store:          store,
			})
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:         ":" + cfg.Server.Port,
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting reservations service",
					"port", cfg.Server.Port,
					"provider", cfg.Email.Provider,
					"window", cfg.Form.OpenTime+"-"+cfg.Form.CloseTime,
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					logger.Error("Reservations server error", "error", err)
				}
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutting down reservations service...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Reservations shutdown error", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}
