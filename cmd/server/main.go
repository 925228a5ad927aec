// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/mindwars/realtime/internal/auth"
	"github.com/mindwars/realtime/internal/config"
	"github.com/mindwars/realtime/internal/coordinator"
	"github.com/mindwars/realtime/internal/database"
	"github.com/mindwars/realtime/internal/fabric"
	"github.com/mindwars/realtime/internal/handlers"
	"github.com/mindwars/realtime/internal/lobby"
	"github.com/mindwars/realtime/internal/middleware"
	"github.com/mindwars/realtime/internal/session"
	"github.com/mindwars/realtime/internal/skip"
	"github.com/mindwars/realtime/internal/voting"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	// Session tokens. Without key files a fresh pair is generated and tokens
	// do not survive a restart.
	var signer *auth.Signer
	if cfg.JWTPrivateKeyPath != "" && cfg.JWTPublicKeyPath != "" {
		signer, err = auth.NewSignerFromFiles(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenExpire)
	} else {
		signer, err = auth.NewSigner(cfg.TokenExpire)
	}
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	// Store: Postgres when configured, in-memory for local development.
	var store session.Store
	if cfg.DatabaseURL != "" {
		pg, err := database.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer pg.Close()
		store = pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		store = database.NewMemory()
	}

	// Event journal is optional; the fabric runs without it.
	var journal *fabric.Journal
	if cfg.RedisAddr != "" {
		journal, err = fabric.NewJournal(cfg.RedisAddr, "")
		if err != nil {
			log.Fatalf("journal: %v", err)
		}
	} else {
		logger.Warn("REDIS_ADDR not set, room event journal disabled")
	}

	fab := fabric.New(logger, journal)
	co := coordinator.New(
		lobby.NewManager(store, logger),
		voting.NewEngine(store, logger),
		skip.NewProtocol(store, logger),
		store, fab, logger,
	)

	// Expired time_based skip sessions execute on a schedule, not on a vote.
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.SkipSweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		co.SweepTimeBasedSkips(ctx)
	}); err != nil {
		log.Fatalf("cron: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HealthHandler)
	mux.Handle("/auth/guest", middleware.LogMiddleware(logger)(
		handlers.GuestTokenHandler(logger, signer, store),
	))
	mux.Handle("/session/ws", middleware.LogMiddleware(logger)(
		handlers.SessionWSHandler(logger, signer, co),
	))

	server := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.ListenAddr)
		errc <- server.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
}
