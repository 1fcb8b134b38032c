package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/features"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/prediction"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/server"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/storage"
)

func main() {
	// a .env file is optional, flags and the real environment still win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	// init packages
	s := storage.Configured()
	b := features.Configured()
	p := prediction.Configured()

	// init server
	srv := server.Configured(s, b, p)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	log.SetDefaultLogLevel(level)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := p.Validate(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid prediction config", slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"prediction endpoint configured",
		slog.String("url", p.URL()),
		slog.String("timezone", b.Location().String()),
	)

	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
