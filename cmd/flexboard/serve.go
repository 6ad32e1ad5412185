package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"flexboard/internal/auth"
	"flexboard/internal/config"
	"flexboard/internal/handler"
	"flexboard/internal/listener"
	"flexboard/internal/live"
	"flexboard/internal/metrics"
	"flexboard/internal/notify"
	"flexboard/internal/pkg/db"
	"flexboard/internal/pkg/lock"
	"flexboard/internal/repository"
	"flexboard/internal/scheduler"
	"flexboard/internal/service"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live socket, scheduler and completion listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("auth.jwt_secret is empty, every token will be rejected")
	}

	m := metrics.New()
	m.TrackPool(func() metrics.PoolStats {
		st := pool.Stats()
		return metrics.PoolStats{Acquired: st.AcquiredConns(), Idle: st.IdleConns(), Total: st.TotalConns()}
	})

	// Repositories
	ledgerRepo := repository.NewLedgerRepository(pool.Pool)
	userRepo := repository.NewUserRepository(pool.Pool)
	historyRepo := repository.NewHistoryRepository(pool.Pool)
	archiveRepo := repository.NewArchiveRepository(pool.Pool)

	// Services
	rankings := service.NewRankingService(ledgerRepo, userRepo, cfg.Leaderboard.DefaultPageSize, cfg.Leaderboard.MaxPageSize)
	tracker := service.NewHistoryTracker(rankings, historyRepo, lock.NewKeyedLock(), cfg.Leaderboard.HistoryLimit)
	snapshots := service.NewSnapshotService(rankings, ledgerRepo, archiveRepo, cfg.Leaderboard.SnapshotTopN)

	if cfg.TelegramEnabled() {
		announcer, err := notify.NewAnnouncer(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram announcer disabled")
		} else {
			snapshots.SetNotifier(announcer)
			log.Info().Int64("chat_id", cfg.Telegram.ChatID).Msg("Telegram announcer enabled")
		}
	}

	hub := live.NewHub(m)
	updater := service.NewLiveUpdater(userRepo, tracker, hub)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	router := handler.NewRouter(handler.Dependencies{
		Config:   cfg,
		Rankings: rankings,
		History:  tracker,
		Archiver: snapshots,
		Health:   pool,
		Verifier: verifier,
		Socket:   live.NewHandler(hub, verifier, cfg.Server.CORSOrigin),
		Metrics:  m,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var wg sync.WaitGroup

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(snapshots, cfg.Leaderboard.Regions, cfg.Scheduler.Interval, m)
		sched.Start(ctx)
	}

	if cfg.Leaderboard.NotifyOnCompletion {
		l := listener.New(pool.Pool, db.CompletedChannel, updater, m)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Completion listener exited")
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server is starting...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}
	if sched != nil {
		sched.Stop()
	}
	wg.Wait()

	log.Info().Msg("Server stopped gracefully")
	return nil
}
