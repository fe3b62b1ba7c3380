package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/cario/internal/auth"
	"github.com/example/cario/internal/config"
	"github.com/example/cario/internal/dispatch"
	"github.com/example/cario/internal/events"
	httpapi "github.com/example/cario/internal/http"
	"github.com/example/cario/internal/logging"
	"github.com/example/cario/internal/mapview"
	"github.com/example/cario/internal/observability"
	"github.com/example/cario/internal/presence"
	"github.com/example/cario/internal/session"
	"github.com/example/cario/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger("cario-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var bookings storage.BookingStore = storage.NewMemoryStore()
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if cfg.RunMigrations {
			if err := pg.Migrate(ctx, cfg.MigrationPath); err != nil {
				logger.Error("migration failed", "path", cfg.MigrationPath, "error", err)
				os.Exit(1)
			}
			logger.Info("migration applied", "path", cfg.MigrationPath)
		}
		bookings = pg
	}

	var (
		pres  presence.Presence = presence.NewIndex()
		ready func(context.Context) error
	)
	if cfg.RedisAddr != "" {
		rp := presence.NewRedisPresence(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPresenceKey)
		defer rp.Close()
		pres = rp
		ready = rp.Ping
	}

	hub := dispatch.NewHub(logger)
	sinks := []events.Sink{
		hub,
		&storage.Recorder{Store: bookings},
		&presence.Recorder{Presence: pres, Origin: mapview.DefaultCenter},
		observability.Recorder{},
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		sinks = append(sinks, kp)
	}

	if cfg.SessionSecret == config.DevSessionSecret {
		logger.Warn("SESSION_SECRET not set, using the development secret")
	}
	sessions := session.NewManager(auth.NewTokens(cfg.SessionSecret, cfg.SessionTTL), session.Options{
		Sink:   events.NewFanout(logger, sinks...),
		Delays: session.Delays{Login: cfg.LoginDelay, Search: cfg.SearchDelay, Incoming: cfg.IncomingDelay},
		Logger: logger,
	})
	defer sessions.Close()

	mapCfg := mapview.Config{APIKey: cfg.MapAPIKey, Center: mapview.DefaultCenter, Zoom: cfg.MapZoom}
	if !mapCfg.HasCredentials() {
		logger.Warn("MAP_API_KEY not configured, map stays in loading state")
	}

	api := httpapi.NewServer(httpapi.Deps{
		Sessions: sessions,
		Bookings: bookings,
		Presence: pres,
		Hub:      hub,
		Map:      mapCfg,
		Logger:   logger,
		Ready:    ready,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cario listening", "addr", cfg.HTTPAddr, "kafka", len(cfg.KafkaBrokers) > 0, "redis", cfg.RedisAddr != "", "postgres", cfg.PGDSN != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("cario stopped")
}
