package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-match/internal/config"
	"github.com/robalobadob/memory-match/internal/events"
	"github.com/robalobadob/memory-match/internal/feedback"
	"github.com/robalobadob/memory-match/internal/httpserver"
	"github.com/robalobadob/memory-match/internal/images"
	"github.com/robalobadob/memory-match/internal/kv"
	"github.com/robalobadob/memory-match/internal/scores"
	"github.com/robalobadob/memory-match/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// run wires the server and blocks until SIGINT/SIGTERM. Returning, rather
// than exiting in place, lets deferred closes run.
func run() error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	pool, err := images.Load(cfg.ImagesFile)
	if err != nil {
		return fmt.Errorf("load image list: %w", err)
	}
	log.Info().Int("images", len(pool)).Msg("image pool loaded")

	var backing kv.Store = kv.NewMemory()
	if cfg.DBPath != "" {
		db, err := kv.OpenSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open score db %s: %w", cfg.DBPath, err)
		}
		defer db.Close()
		backing = db
	}

	var pub events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			// Events are best effort; play continues without them.
			log.Warn().Err(err).Str("url", cfg.NATSURL).Msg("nats unavailable, events disabled")
		} else {
			defer nc.Close()
			pub = nc
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.New(httpserver.Deps{
		Sessions:        store.NewMemoryStore(),
		Scores:          scores.New(backing),
		Images:          pool,
		Feedback:        feedback.Static{},
		Events:          pub,
		MatchDelay:      cfg.MatchDelay,
		MismatchDelay:   cfg.MismatchDelay,
		FeedbackTimeout: cfg.FeedbackTimeout,
		Secret:          cfg.SessionSecret,
		SessionTTL:      cfg.SessionTTL,
		DailySalt:       cfg.DailySalt,
		ClientOrigin:    cfg.ClientOrigin,
	})
	go srv.SweepLoop(ctx, cfg.SessionSweep)

	log.Info().Str("port", cfg.Port).Msg("starting memory-match server")
	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		return err
	}
	log.Info().Msg("shut down cleanly")
	return nil
}
