package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/randalmurphal/appforge/internal/artifact"
	"github.com/randalmurphal/appforge/internal/config"
	"github.com/randalmurphal/appforge/internal/generate"
	"github.com/randalmurphal/appforge/internal/llm"
	"github.com/randalmurphal/appforge/internal/logging"
	"github.com/randalmurphal/appforge/internal/notify"
	"github.com/randalmurphal/appforge/internal/orchestrator"
	"github.com/randalmurphal/appforge/internal/runner"
	"github.com/randalmurphal/appforge/internal/server"
	"github.com/randalmurphal/appforge/internal/steps"
	"github.com/randalmurphal/appforge/internal/store"
	"github.com/randalmurphal/appforge/pkg/sequence/checkpoint"
)

type app struct {
	cfg    *config.Settings
	logger *slog.Logger

	store       *store.SQLiteStore
	checkpoints *checkpoint.SQLiteStore
	hub         *notify.Hub
	redis       *redis.Client
	relay       *notify.Subscription
	exporter    *artifact.BlobExporter
	runner      *runner.Runner
	orch        *orchestrator.Orchestrator
	apiServer   *server.Server
	httpServer  *http.Server
	quit        chan os.Signal
}

var (
	ErrOpenStore       = errors.New("failed to open store")
	ErrOpenCheckpoints = errors.New("failed to open checkpoint store")
	ErrConnectRedis    = errors.New("failed to connect to redis")
	ErrOpenBucket      = errors.New("failed to open artifact bucket")
	ErrCreateLLM       = errors.New("failed to create llm client")
	ErrNoBucket        = errors.New("artifacts.bucket_url is not set")
)

const redisPingTimeout = 5 * time.Second

func newApp(cfg *config.Settings) *app {
	return &app{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
}

func (a *app) run(ctx context.Context) error {
	a.setupLogging()
	defer a.close()

	if err := a.initializeStores(); err != nil {
		return err
	}
	if err := a.initializeNotifications(ctx); err != nil {
		return err
	}
	if err := a.initializeOrchestrator(ctx); err != nil {
		return err
	}
	a.startServer()

	signal.Notify(a.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.quit)
	select {
	case <-a.quit:
	case <-ctx.Done():
	}

	a.shutdown()
	return nil
}

func (a *app) setupLogging() {
	level, err := a.cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}

	a.logger = logging.NewWithLevel(name, os.Getenv("ENV"), version, level)
	slog.SetDefault(a.logger)

	a.logger.Info("appforge starting",
		slog.String("log_level", a.cfg.LogLevel),
		slog.String("database_path", a.cfg.DatabasePath),
		slog.String("llm_provider", a.cfg.LLM.Provider),
		slog.String("llm_model", a.cfg.LLM.Model),
		slog.Bool("checkpoints", a.cfg.Checkpoints),
		slog.String("redis_addr", a.cfg.Redis.Addr),
		slog.String("artifacts", a.cfg.Artifacts.BucketURL),
		slog.String("addr", a.cfg.Address()))
}

func (a *app) initializeStores() error {
	path := a.cfg.DatabasePath
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrOpenStore, err)
		}
	}

	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenStore, err)
	}
	a.store = st

	if !a.cfg.Checkpoints {
		return nil
	}
	cps, err := checkpoint.NewSQLiteStore(checkpointPath(path))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenCheckpoints, err)
	}
	a.checkpoints = cps
	return nil
}

// checkpointPath keeps checkpoints in a sibling file of the project
// database: db/database.db becomes db/database.checkpoints.db
func checkpointPath(dbPath string) string {
	if dbPath == ":memory:" {
		return dbPath
	}
	ext := filepath.Ext(dbPath)
	return strings.TrimSuffix(dbPath, ext) + ".checkpoints" + ext
}

func (a *app) initializeNotifications(ctx context.Context) error {
	logger := a.logger
	a.hub = notify.NewHub(notify.HubConfig{
		BufferSize: a.cfg.NotifyBufferSize,
		OnDrop: func(flowID string, msg notify.Message, subID string) {
			logger.Warn("notification dropped",
				logging.FlowID(flowID),
				slog.String("subscriber", subID),
				slog.String("type", string(msg.Type)))
		},
		OnError: func(
			flowID string, msg notify.Message, subID string, err error,
		) {
			logger.Warn("notification delivery failed",
				logging.FlowID(flowID),
				slog.String("subscriber", subID),
				slog.String("type", string(msg.Type)),
				logging.Error(err))
		},
	})

	if a.cfg.Redis.Addr == "" {
		return nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectRedis, err)
	}

	relay := notify.NewRedisRelay(a.redis, a.cfg.Redis.Prefix)
	a.relay = a.hub.SubscribeAll(relay)
	a.logger.Info("redis relay enabled",
		slog.String("addr", a.cfg.Redis.Addr),
		slog.String("prefix", a.cfg.Redis.Prefix))
	return nil
}

func (a *app) initializeOrchestrator(ctx context.Context) error {
	client, err := llm.New(llm.Options{
		Provider: a.cfg.LLM.Provider,
		Model:    a.cfg.LLM.Model,
		APIKey:   a.cfg.LLM.APIKey,
		BaseURL:  a.cfg.LLM.BaseURL,
		Timeout:  a.cfg.LLM.Timeout,
		Retry:    a.retryConfig(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateLLM, err)
	}

	notifier := notify.NewNotifier(a.hub, notify.URLTemplates{
		App:     a.cfg.AppURLTemplate,
		Preview: a.cfg.PreviewURLTemplate,
	})

	deps := &steps.Deps{
		Store:    a.store,
		Notifier: notifier,
		Generator: generate.NewLLMGenerator(client,
			generate.WithModel(a.cfg.LLM.Model),
			generate.WithLogger(a.logger)),
		Logger: a.logger,
	}
	if a.cfg.Artifacts.BucketURL != "" {
		exp, err := artifact.NewBlobExporter(
			ctx, a.cfg.Artifacts.BucketURL, a.cfg.Artifacts.Prefix,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOpenBucket, err)
		}
		a.exporter = exp
		deps.Exporter = exp
	}

	flows, err := steps.Build(deps)
	if err != nil {
		return err
	}

	a.runner = runner.New(runner.Config{
		RunTimeout:    a.cfg.RunTimeout,
		MaxConcurrent: a.cfg.MaxConcurrentRuns,
	}, notifier, a.logger)

	opts := []orchestrator.Option{orchestrator.WithLogger(a.logger)}
	if a.checkpoints != nil {
		opts = append(opts, orchestrator.WithCheckpoints(a.checkpoints))
	}
	a.orch = orchestrator.New(orchestrator.Config{
		DefaultEditFlowID: a.cfg.DefaultEditFlowID,
		Metrics:           a.cfg.Metrics,
		Tracing:           a.cfg.Tracing,
	}, a.store, flows, a.runner, opts...)
	return nil
}

func (a *app) retryConfig() llm.RetryConfig {
	if a.cfg.LLM.MaxAttempts <= 1 {
		return llm.NoRetry
	}
	retry := llm.DefaultRetry
	retry.MaxAttempts = a.cfg.LLM.MaxAttempts
	return retry
}

func (a *app) startServer() {
	a.apiServer = server.NewServer(a.orch, a.hub, a.logger)
	a.httpServer = &http.Server{
		Addr:    a.cfg.Address(),
		Handler: a.apiServer.SetupRoutes(),
	}

	go func() {
		a.logger.Info("HTTP server starting",
			slog.String("addr", a.httpServer.Addr))
		err := a.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", logging.Error(err))
			select {
			case a.quit <- syscall.SIGTERM:
			default:
			}
		}
	}()
}

func (a *app) shutdown() {
	a.logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), a.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP shutdown failed", logging.Error(err))
	}
	a.apiServer.CloseWebSockets()

	if err := a.runner.Shutdown(ctx); err != nil {
		a.logger.Error("Runner shutdown failed", logging.Error(err))
	}

	a.logger.Info("Server exited")
}

// close releases whatever was opened, in reverse order
func (a *app) close() {
	if a.relay != nil {
		a.relay.Unsubscribe()
	}
	if a.hub != nil {
		_ = a.hub.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.exporter != nil {
		_ = a.exporter.Close()
	}
	if a.checkpoints != nil {
		_ = a.checkpoints.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
