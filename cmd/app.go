package main

import (
	"context"
	"fmt"

	"kitsune-client/internal/chat"
	"kitsune-client/internal/config"
	"kitsune-client/internal/metrics"
	"kitsune-client/internal/model"
	"kitsune-client/internal/notebook"
	"kitsune-client/internal/session"
	"kitsune-client/internal/storage"
	"kitsune-client/internal/utils"
	"kitsune-client/pkg/logger"

	"golang.org/x/time/rate"
)

// app is one session: built once and handed to whatever command runs.
type app struct {
	kv       storage.KV
	identity *session.Identity
	store    *notebook.Store
	sync     *notebook.Sync
	chat     *chat.Controller
	metrics  *metrics.Recorder
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	kv, ok := openStore(cfg)
	identity := session.NewIdentity(kv, cfg.Session.Key)
	if !ok {
		identity = session.NewVolatileIdentity(kv, cfg.Session.Key)
	}
	token := identity.Get()

	// one limiter for everything sent to the backend
	limiter := utils.NewLimiter(cfg.Backend.RequestsPerSecond)

	transport, err := newTransport(ctx, cfg, token, limiter)
	if err != nil {
		kv.Close()
		return nil, err
	}

	store := notebook.NewStore(cfg.Viewer.Welcome)
	feed := notebook.NewFeedClient(cfg.Backend.BaseURL, cfg.Backend.WatchPath,
		utils.Limited(utils.NewStreamingClient(cfg.Backend.Timeout), limiter))
	viewer := notebook.NewViewerClient(cfg.Backend.BaseURL, cfg.Backend.ViewerPath, notebook.ViewerOptions{
		Timeout:       cfg.Backend.Timeout,
		RetryCount:    cfg.Backend.RetryCount,
		RetryWaitMin:  cfg.Backend.RetryWaitMin,
		RetryWaitMax:  cfg.Backend.RetryWaitMax,
		SessionHeader: cfg.Backend.SessionHeader,
		Limiter:       limiter,
	})
	rec := metrics.New()
	syncer := notebook.NewSync(store, token, feed, viewer, cfg.Reconnect.MinWait, cfg.Reconnect.MaxWait).WithMetrics(rec)

	logger.WithField("session", token).Infof("session ready (provider %s)", cfg.Provider.Type)

	return &app{
		kv:       kv,
		identity: identity,
		store:    store,
		sync:     syncer,
		chat:     chat.NewController(transport, token).WithMetrics(rec),
		metrics:  rec,
	}, nil
}

// openStore falls back to memory when the configured store cannot start,
// so a broken profile file is never overwritten. ok is false on fallback.
func openStore(cfg *config.Config) (storage.KV, bool) {
	kv, err := storage.New(cfg.Session.Store, cfg.Session.DataDir)
	if err == nil {
		return kv, true
	}
	logger.Warnf("session store %s unavailable, token will not survive restarts: %v", cfg.Session.Store, err)
	mem := storage.NewMemoryStorage()
	_ = mem.Init()
	return mem, false
}

func newTransport(ctx context.Context, cfg *config.Config, token model.SessionToken, limiter *rate.Limiter) (chat.Transport, error) {
	if cfg.Provider.Type == config.ProviderKitsune {
		return chat.NewHTTPTransport(cfg.Backend.BaseURL, cfg.Backend.ChatPath, cfg.Backend.SessionHeader,
			utils.Limited(utils.NewStreamingClient(cfg.Backend.Timeout), limiter)), nil
	}

	tag := model.SessionTag{Header: cfg.Backend.SessionHeader, Token: token}
	chatModel, err := model.NewChatModel(ctx, cfg.Provider, tag)
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", cfg.Provider.Type, err)
	}
	logger.WithField("session", token).Debugf("chat goes directly to %s", cfg.Provider.Type)
	return chat.NewModelTransport(chatModel, cfg.Provider.SystemPrompt), nil
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		logger.Warnf("close session store: %v", err)
	}
}
