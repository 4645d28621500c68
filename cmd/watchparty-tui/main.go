package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/WatchParty/internal/adapters/tui"
	"github.com/dkeye/WatchParty/internal/adapters/upstream"
	"github.com/dkeye/WatchParty/internal/app"
	"github.com/dkeye/WatchParty/internal/app/session"
	"github.com/dkeye/WatchParty/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The terminal belongs to the UI, so logs go to a file.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open log file:", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	sess := session.New(upstream.Dialer(upstream.Config{
		URL:              cfg.UpstreamURL,
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		PingPeriod:       cfg.PingPeriod,
		ReadLimit:        cfg.ReadLimit,
		SendQueue:        cfg.SendQueue,
	}), session.Kinds{
		Chat:     cfg.ChatKind,
		Typing:   cfg.TypingKind,
		Identity: cfg.IdentityKind,
	})

	orch := &app.Orchestrator{
		Session:    sess,
		Registry:   app.NewRegistry(),
		TypingIdle: cfg.TypingIdle,
		RetryDelay: cfg.ReconnectDelay,
	}
	orch.Run(ctx)

	if err := tui.Run(ctx, orch); err != nil {
		log.Error().Err(err).Str("module", "tui").Msg("terminal ui failed")
	}
	orch.Shutdown()
	sess.Disconnect()
}
