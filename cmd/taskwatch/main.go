// Command taskwatch runs the live task view against a remote taskboard
// server: it fetches the view, follows push notifications, and keeps a local
// snapshot cache warm.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/taskboard/taskboard/cache"
	"github.com/taskboard/taskboard/client"
	"github.com/taskboard/taskboard/config"
	"github.com/taskboard/taskboard/internal/version"
	"github.com/taskboard/taskboard/session"
	"github.com/taskboard/taskboard/stream"
	"github.com/taskboard/taskboard/task"
	"github.com/taskboard/taskboard/users"
	"github.com/taskboard/taskboard/view"
)

var configPath = flag.String("config", "taskboard.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	logger.Info("starting taskwatch",
		"version", version.Version,
		"commit", version.Commit,
	)

	sess, err := session.FromToken(cfg.API.Token)
	if err != nil {
		log.Fatalf("Failed to parse access token: %v", err)
	}
	if sess.Expired(time.Now()) {
		log.Fatalf("Access token expired at %s; log in again", sess.ExpiresAt())
	}
	viewAll := sess.HasCapability(task.CapViewAll)
	logger.Info("session ready", "user", sess.UserID(), "view_all", viewAll)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := client.New(cfg.API.BaseURL, sess, logger)

	dir := users.New(api, logger)
	if viewAll {
		if err := dir.Prime(ctx); err != nil {
			logger.Warn("user directory unavailable, search falls back to raw ids", "error", err)
		}
	}

	store := view.NewStore(cfg.View.Filter(), viewAll)
	rec := view.NewReconciler(store, view.FetchFunc(api.ListTasks), dir, logger)

	unwatch := store.Watch(func() {
		logger.Debug("view changed", "tasks", store.Len())
	})
	defer unwatch()

	var snap *cache.Snapshot
	if cfg.Cache.Path != "" {
		snap, err = cache.Open(cfg.Cache.Path)
		if err != nil {
			logger.Warn("snapshot cache unavailable", "error", err)
		} else {
			defer snap.Close()
			if cached, err := snap.Load(); err == nil && len(cached) > 0 {
				rec.Seed(cached)
				logger.Info("seeded view from cache", "tasks", store.Len())
			}
		}
	}

	// The stream resyncs on connect, so a failed first fetch here only
	// delays convergence.
	if err := rec.Refresh(ctx); err != nil {
		logger.Error("initial fetch failed", "error", err)
	} else {
		logger.Info("view loaded", "tasks", store.Len())
	}

	conn := stream.New(cfg.Stream.URL, sess, logger)
	go func() {
		if err := conn.Run(ctx, rec); err != nil && ctx.Err() == nil {
			logger.Error("stream stopped", "error", err)
		}
	}()

	persist := func() {
		if snap == nil {
			return
		}
		if err := snap.Save(store.Snapshot()); err != nil {
			logger.Error("snapshot save failed", "error", err)
		}
	}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			persist()
			logger.Debug("view state", "tasks", store.Len())
		case <-sigCh:
			logger.Info("shutting down")
			cancel()
			persist()
			return
		}
	}
}
