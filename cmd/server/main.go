package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"looptv/internal/admin"
	"looptv/internal/broadcast"
	"looptv/internal/platform/cache"
	"looptv/internal/platform/config"
	"looptv/internal/platform/logger"
	"looptv/internal/platform/metrics"
	"looptv/internal/store"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

// channelStore is what main needs from a store backend: the stream read
// side, the admin write side, and the metrics hook.
type channelStore interface {
	broadcast.Repository
	admin.Store
	ActiveChannelCount() int
	Close() error
}

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	dbPath := config.GetEnv("DATABASE_PATH", "looptv.db")
	redisURL := config.GetEnv("REDIS_URL", "")

	cfg := broadcast.Config{
		DefaultDuration: int64(config.GetEnvInt("DEFAULT_VIDEO_DURATION", int(broadcast.DefaultEntryDuration))),
		UpstreamTimeout: config.GetEnvSeconds("UPSTREAM_TIMEOUT", 10*time.Second),
		CacheTTL:        config.GetEnvSeconds("MANIFEST_CACHE_TTL", 0),
	}

	log := logger.New(os.Stdout, logLevel, logFormat)

	var st channelStore
	if dbPath == "" {
		st = store.NewMemory()
	} else {
		sq, err := store.NewSQLite(dbPath)
		if err != nil {
			log.Error("open database", "path", dbPath, "error", err)
			os.Exit(1)
		}
		st = sq
	}
	defer st.Close()

	var manifestCache broadcast.ManifestCache
	if redisURL != "" {
		rc, err := cache.NewRedis(redisURL)
		if err != nil {
			log.Error("redis setup", "error", err)
			os.Exit(1)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rc.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Error("redis ping", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		manifestCache = rc
	}

	synth := broadcast.NewSynthesizer(cfg.UpstreamTimeout, manifestCache, cfg.CacheTTL)
	svc := broadcast.NewService(st, synth, cfg)
	met := metrics.New()
	h := broadcast.NewHandler(svc, log, met)
	ah := admin.NewHandler(st, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveChannels(st.ActiveChannelCount()) }).ServeHTTP(w, r)
	})
	r.Route("/stream", func(r chi.Router) {
		r.Get("/", h.MissingSlug)
		r.Get("/{slug}", h.GetStream)
		r.Options("/{slug}", h.Preflight)
		r.Get("/{slug}/now", h.NowPlaying)
		r.Options("/{slug}/now", h.Preflight)
	})
	r.Mount("/admin", ah.Routes())

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"database_path", dbPath,
		"default_video_duration", cfg.DefaultDuration,
		"manifest_cache", redisURL != "",
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
