package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/termdock/termdock"
	"github.com/termdock/termdock/internal/logging"
	"github.com/termdock/termdock/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the terminal daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.FromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("development") {
				cfg.Development = development
			}

			logger, err := logging.New(logging.Config{
				Level:       cfg.LogLevel,
				Development: cfg.Development,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			backend := termdock.NewPTYBackend(termdock.PTYBackendOptions{
				Logger: logger,
				Cols:   cfg.Cols,
				Rows:   cfg.Rows,
			})

			srv, err := server.New(server.Options{
				Config:  cfg,
				Process: backend,
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			defer srv.Close()

			httpSrv := &http.Server{
				Addr:    cfg.Addr,
				Handler: srv.Handler(),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("termdockd listening", "addr", cfg.Addr)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down", "grace", cfg.ShutdownGrace.String())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("HTTP shutdown incomplete", "error", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "HTTP listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	cmd.Flags().BoolVar(&development, "development", false, "human-readable console logs")

	return cmd
}
