package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"chatd/internal/common/fsutil"
	"chatd/internal/config"
	"chatd/internal/manager"
	"chatd/internal/prompt"
	"chatd/internal/store"
)

// app is the wired controller plus the store it owns.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	store  *store.Store
	ctrl   *manager.Controller
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	dbPath, err := fsutil.PrepareFile(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("prepare db path: %w", err)
	}
	kvPath, err := fsutil.PrepareFile(cfg.KVPath)
	if err != nil {
		return nil, fmt.Errorf("prepare kv path: %w", err)
	}
	kind, err := manager.ParseKind(cfg.Backend.Kind)
	if err != nil {
		return nil, err
	}
	backend, err := manager.NewBackend(manager.BackendConfig{
		Kind:           kind,
		BaseURL:        cfg.Backend.BaseURL,
		APIKey:         cfg.Backend.APIKey,
		Model:          cfg.Backend.Model,
		RequestTimeout: cfg.Backend.RequestTimeout.Duration,
		ConnectTimeout: cfg.Backend.ConnectTimeout.Duration,
		KVPath:         kvPath,
	})
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	ctrl := manager.New(manager.Config{
		Backend:   backend,
		Chats:     st,
		Settings:  st,
		Prompts:   prompt.NewBuilder(st, prompt.ByteCounter{BytesPerToken: cfg.BytesPerToken}),
		Notifier:  manager.NewNotifier(logger.With().Str("component", "notifier").Logger(), cfg.MaxNotices),
		Publisher: logPublisher{logger: logger.With().Str("component", "events").Logger()},
		Logger:    logger.With().Str("component", "controller").Logger(),
	})
	return &app{cfg: cfg, logger: logger, store: st, ctrl: ctrl}, nil
}

func (a *app) Close() error { return a.store.Close() }

// logPublisher writes lifecycle events to the debug log.
type logPublisher struct {
	logger zerolog.Logger
}

func (p logPublisher) Publish(e manager.Event) {
	ev := p.logger.Debug().Str("event", e.Name).Int64("chat_id", e.ChatID).Int64("entry_id", e.EntryID)
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("generation event")
}
