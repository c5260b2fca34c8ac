package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-read-marker/internal/application/readmarker"
	"github.com/go-read-marker/internal/config"
	"github.com/go-read-marker/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-read-marker/internal/infrastructure/jwt"
	"github.com/go-read-marker/internal/infrastructure/mattermost"
	"github.com/go-read-marker/internal/infrastructure/memory"
	"github.com/go-read-marker/internal/infrastructure/metrics"
	pebbleinfra "github.com/go-read-marker/internal/infrastructure/pebble"
	redisinfra "github.com/go-read-marker/internal/infrastructure/redis"
	"github.com/go-read-marker/internal/pkg/logger"
	transporthttp "github.com/go-read-marker/internal/transport/http"
	"github.com/go-read-marker/internal/transport/ws"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	zl, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("read-marker stopped", zap.Error(err))
	}
	zl.Info("read-marker stopped")
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	mm := mattermost.NewClient(cfg, nil)
	me, err := mm.FetchCurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("fetch current user: %w", err)
	}
	zl.Info("authenticated", zap.String("user_id", me.UserID), zap.String("username", me.Username))

	mirror, closeMirror, err := newMirror(ctx, cfg, zl)
	if err != nil {
		return fmt.Errorf("mirror %q: %w", cfg.MirrorBackend, err)
	}
	defer closeMirror()

	m := metrics.New()
	index := mattermost.NewIndex(mm, zl.Named("index"))
	svc := readmarker.NewService(readmarker.ServiceDeps{
		Backend: m.InstrumentBackend(mm),
		Index:   index,
		Mirror:  mirror,
		Me:      *me,
		Emoji:   cfg.MarkerEmoji,
		Logger:  zl.Named("reconciler"),
	})

	events := ws.NewRouter(zl.Named("events"))
	events.Observe(m.ObserveEvent)
	ws.Register(events, svc, index, zl.Named("events"))
	stream := ws.NewClient(cfg, events, zl.Named("stream"))

	// JWT provider (optional: without keys the control API is unauthenticated).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		zl.Warn("JWT provider not available, control API is open", zap.Error(err))
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.AppPort),
		Handler: transporthttp.NewRouter(cfg, &transporthttp.Deps{
			Service:     svc,
			JWTProvider: jwtProvider,
			Ready:       stream.Connected,
			Metrics:     m.Handler(),
			Logger:      zl.Named("http"),
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := stream.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		zl.Info("control API listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newMirror builds the persistent mirror selected by MIRROR_BACKEND.
func newMirror(ctx context.Context, cfg *config.Config, zl *zap.Logger) (readmarker.Mirror, func(), error) {
	switch cfg.MirrorBackend {
	case config.MirrorDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables, zl.Named("dynamo"))
		return dynamo.NewMarkerRepo(client, cfg.DynamoTables.Markers), func() {}, nil
	case config.MirrorRedis:
		client, err := redisinfra.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return redisinfra.NewMirror(client, cfg.RedisKeyPrefix), func() { _ = client.Close() }, nil
	case config.MirrorPebble:
		mirror, err := pebbleinfra.Open(cfg.PebblePath, zl.Named("pebble"))
		if err != nil {
			return nil, nil, err
		}
		return mirror, func() { _ = mirror.Close() }, nil
	case config.MirrorMemory:
		zl.Warn("memory mirror selected, markers will not survive a restart")
		return memory.NewMirror(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend, want one of %s",
			strings.Join([]string{config.MirrorDynamo, config.MirrorRedis, config.MirrorPebble, config.MirrorMemory}, ", "))
	}
}
