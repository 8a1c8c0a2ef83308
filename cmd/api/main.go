package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/tgwork/backend/internal/ai"
	"github.com/tgwork/backend/internal/config"
	"github.com/tgwork/backend/internal/database"
	"github.com/tgwork/backend/internal/execution"
	"github.com/tgwork/backend/internal/feedback"
	"github.com/tgwork/backend/internal/ozon"
	"github.com/tgwork/backend/internal/settings"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running and DATABASE_URL is correct", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database")

	if err := database.Migrate(ctx, pool, logger); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Runtime settings and the outbound clients they steer
	store := settings.NewStore(cfg, logger)
	current := store.Get()

	templates, err := ai.LoadTemplates()
	if err != nil {
		slog.Error("Failed to load response templates", "error", err)
		os.Exit(1)
	}
	aiClient := ai.NewClient(cfg.OpenAIBaseURL, current.OpenAIKey, current.OpenAIModel, cfg.AITimeout)
	breaker := ai.NewQuotaBreaker(cfg.AIQuotaCooldown)
	generator := ai.NewGenerator(aiClient, breaker, templates, store.AI, logger)
	ozonClient := ozon.NewClient(cfg.OzonBaseURL, current.OzonClientID, current.OzonAPIKey, logger)

	// Review desk pipeline: the draft-job insert func is set after the River client exists
	var insertMu sync.Mutex
	var insertFn feedback.InsertDraftJobTxFunc
	insertDraftJob := func(ctx context.Context, tx pgx.Tx, reviewID uuid.UUID) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			return errors.New("river insert not wired")
		}
		return fn(ctx, tx, reviewID)
	}

	feedbackRepo := feedback.NewRepository(pool)
	ingestor := feedback.NewIngestor(feedbackRepo, ozonClient, insertDraftJob, logger)
	drafts := feedback.NewDraftService(feedbackRepo, generator, store.AutoResponse, logger)
	submitter := feedback.NewSubmitter(feedbackRepo, ozonClient, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewPollReviewsWorker(ingestor, ozonClient.Configured, logger))
	river.AddWorker(workers, execution.NewGenerateDraftsWorker(drafts, 0, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, reviewID uuid.UUID) error {
		_, err := riverClient.InsertTx(ctx, tx, execution.GenerateDraftsArgs{ReviewID: reviewID}, nil)
		return err
	}
	insertMu.Unlock()

	poller := execution.NewPoller(riverClient.PeriodicJobs(), logger)
	poller.Reschedule(current.PollingMinutes)

	api, err := newAPI(apiDeps{
		cfg:       cfg,
		pool:      pool,
		logger:    logger,
		store:     store,
		aiClient:  aiClient,
		breaker:   breaker,
		generator: generator,
		ozon:      ozonClient,
		feedback:  feedbackRepo,
		ingestor:  ingestor,
		drafts:    drafts,
		submitter: submitter,
		poller:    poller,
	})
	if err != nil {
		slog.Error("Failed to build HTTP API", "error", err)
		os.Exit(1)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(api)

	// Start River client (polls the marketplace and generates drafts)
	if err := riverClient.Start(ctx); err != nil {
		slog.Error("Failed to start River client", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP shutdown failed", "error", err)
		}
		if err := riverClient.Stop(shutdownCtx); err != nil {
			slog.Error("River stop failed", "error", err)
		}
	}()

	slog.Info("Starting HTTP server", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
