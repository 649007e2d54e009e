package main

import (
	"context"
	"fmt"
	"os"

	"github.com/user/ragchat/internal/chat"
	"github.com/user/ragchat/internal/config"
	"github.com/user/ragchat/internal/conversation"
	"github.com/user/ragchat/internal/gateway"
	"github.com/user/ragchat/internal/health"
	"github.com/user/ragchat/internal/session"
	"github.com/user/ragchat/internal/state"
	"github.com/user/ragchat/internal/types"
	"github.com/user/ragchat/pkg/rag"
	logx "github.com/user/ragchat/pkg/logger"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	store    types.Store
	settings *state.Settings
	session  *session.Session
	client   *rag.Client
	signal   *health.Signal
	chat     *chat.Service
	monitor  *health.Monitor
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := state.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}
	settings := state.NewSettings(store)

	sess, err := session.Open(ctx, settings)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}

	client := rag.New(cfg.RAG())
	signal := health.NewSignal()
	gw := gateway.New(sess, client, signal)

	log, err := conversation.Open(ctx, settings, sess)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open conversation log: %w", err)
	}

	monitor := health.NewMonitor(client, sess, signal,
		health.WithTimeout(cfg.ProbeTimeout()),
		health.WithInterval(cfg.ProbeInterval()),
	)

	logx.Debug().
		Str("backend", cfg.Store.Backend).
		Str("base_url", client.BaseURL()).
		Str("conversation_id", string(sess.CurrentID())).
		Msg("session opened")

	return &app{
		cfg:      cfg,
		store:    store,
		settings: settings,
		session:  sess,
		client:   client,
		signal:   signal,
		chat:     chat.NewService(gw, log),
		monitor:  monitor,
	}, nil
}

func (a *app) log() *conversation.Log {
	return a.chat.Log()
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logx.Warn().Err(err).Msg("close settings store")
	}
}

// withApp loads config, sets up logging and runs fn with a wired app.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
