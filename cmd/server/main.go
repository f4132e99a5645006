package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Rendezvous/internal/adapters/http"
	"github.com/dkeye/Rendezvous/internal/adapters/tcp"
	"github.com/dkeye/Rendezvous/internal/adapters/ws"
	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/app/media"
	"github.com/dkeye/Rendezvous/internal/app/orch"
	"github.com/dkeye/Rendezvous/internal/config"
	"github.com/dkeye/Rendezvous/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := config.Flags()
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	path, _ := fs.GetString("config")
	cfg, err := config.LoadFlags(path, fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := store.Open(store.Config{Path: cfg.DBPath, PoolSize: cfg.DBPoolSize})
	if err != nil {
		return err
	}
	defer db.Close()

	reg := app.NewRegistry(db, app.SimplePolicy{})
	limiter := orch.NewLoginLimiter(cfg.LoginAttempts, cfg.LoginWindow)
	o := &orch.Orchestrator{
		Registry:     reg,
		Accounts:     db,
		Friends:      db,
		Groups:       db,
		History:      db,
		Limiter:      limiter,
		HistoryLimit: cfg.HistoryLimit,
	}

	relay, err := media.Listen(cfg.MediaAddr, reg, media.Options{
		BufferBytes: cfg.Media.BufferBytes,
		RouteOptions: app.RouteOptions{
			LearnPorts:   cfg.Media.LearnPorts,
			StrictSource: cfg.Media.StrictSource,
		},
	})
	if err != nil {
		return err
	}

	control := &tcp.Server{
		Handler:      o,
		SendQueue:    cfg.SendQueue,
		MaxFrame:     cfg.MaxFrameBytes,
		WriteTimeout: cfg.WriteTimeout,
	}
	wsHandler := &ws.Handler{
		Frames:       o,
		SendQueue:    cfg.SendQueue,
		MaxFrame:     cfg.MaxFrameBytes,
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		WriteTimeout: cfg.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return control.ListenAndServe(ctx, cfg.ControlAddr) })
	g.Go(func() error { return relay.Run(ctx) })
	g.Go(func() error {
		limiter.Run(ctx)
		return nil
	})

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router.SetupRouter(ctx, cfg, reg, relay, wsHandler),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("http server started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Server forced to shutdown")
			}
			return nil
		})
	}

	log.Info().
		Str("control", cfg.ControlAddr).
		Str("media", relay.LocalAddr().String()).
		Msg("Rendezvous server started")

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	return g.Wait()
}
