package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chatd/internal/config"
	"chatd/internal/httpapi"
	"chatd/internal/registry"
	"chatd/pkg/types"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  chatd serve --config ~/.chatd/config.yaml\n  CHATD_ADDR=:9090 chatd serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080 (overrides config and CHATD_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report := a.ctrl.SanityCheck()
	ev := logger.Info()
	if report.Error != "" {
		ev = logger.Warn().Str("error", report.Error)
	}
	ev.Str("backend", report.Backend).Bool("llama_built", report.LlamaBuilt).Bool("model_loaded", report.ModelLoaded).Msg("sanity check")

	httpapi.SetLogger(logger.With().Str("component", "http").Logger())
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetBaseContext(ctx)
	mux := httpapi.NewMux(httpapi.Service{
		Controller: a.ctrl,
		Chats:      a.store,
		Settings:   a.store,
		Models:     func() ([]types.Model, error) { return registry.LoadDir(cfg.ModelsDir) },
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Str("backend", cfg.Backend.Kind).Msg("chatd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.ctrl.Abort(sctx); err != nil {
		logger.Warn().Err(err).Msg("abort on shutdown")
	}
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	// let an aborted generation persist its text before the store closes
	for a.ctrl.Generating() && sctx.Err() == nil {
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}
