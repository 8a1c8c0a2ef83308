package main

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tgwork/backend/internal/ai"
	"github.com/tgwork/backend/internal/auth"
	"github.com/tgwork/backend/internal/catalog"
	"github.com/tgwork/backend/internal/config"
	"github.com/tgwork/backend/internal/dashboard"
	"github.com/tgwork/backend/internal/execution"
	"github.com/tgwork/backend/internal/feedback"
	"github.com/tgwork/backend/internal/handlers"
	"github.com/tgwork/backend/internal/ledger"
	"github.com/tgwork/backend/internal/ozon"
	"github.com/tgwork/backend/internal/repository"
	"github.com/tgwork/backend/internal/router"
	"github.com/tgwork/backend/internal/services"
	"github.com/tgwork/backend/internal/settings"
)

// apiDeps carries what main builds before the HTTP layer: the pool and the review desk pipeline.
type apiDeps struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	logger    *slog.Logger
	store     *settings.Store
	aiClient  *ai.Client
	breaker   *ai.QuotaBreaker
	generator *ai.Generator
	ozon      *ozon.Client
	feedback  *feedback.Repository
	ingestor  *feedback.Ingestor
	drafts    *feedback.DraftService
	submitter *feedback.Submitter
	poller    *execution.Poller
}

// newAPI wires the marketplace services and every handler into the router.
func newAPI(d apiDeps) (http.Handler, error) {
	validator, err := services.NewValidator()
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepo(d.pool)
	serviceRepo := repository.NewServiceRepo(d.pool)
	orderRepo := repository.NewOrderRepo(d.pool)
	reviewRepo := repository.NewReviewRepo(d.pool)
	messageRepo := repository.NewMessageRepo(d.pool)

	ledgerSvc := ledger.NewService(ledger.NewRepository(d.pool))
	escrow := services.NewEscrowService(userRepo, ledgerSvc)

	authSvc := auth.NewService(userRepo, d.cfg.JWTSecret, auth.Options{
		AdminTelegramIDs: d.cfg.AdminTelegramIDs,
		BootstrapSecret:  d.cfg.AdminBootstrapSecret,
		BotSecret:        d.cfg.BotAuthSecret,
	})

	orders := &services.OrderService{
		Pool:       d.pool,
		Orders:     orderRepo,
		Catalog:    serviceRepo,
		Users:      userRepo,
		Ledger:     ledgerSvc,
		Escrow:     escrow,
		FeePercent: d.cfg.PlatformFeePercent,
		Logger:     d.logger,
	}
	reviews := &services.ReviewService{
		Pool:    d.pool,
		Orders:  orderRepo,
		Reviews: reviewRepo,
		Users:   userRepo,
		Catalog: serviceRepo,
		Logger:  d.logger,
	}
	messages := &services.MessageService{Messages: messageRepo, Orders: orderRepo}

	return router.New(router.Deps{
		Tokens:    authSvc,
		Validator: validator,
		Auth:      auth.NewHandler(authSvc, d.logger),
		Users:     dashboard.NewHandler(d.pool, userRepo, escrow, ledgerSvc, d.logger),
		Catalog:   catalog.NewHandler(catalog.NewService(serviceRepo, userRepo, d.logger), d.logger),
		Orders:    &handlers.OrderHandler{Orders: orders, Logger: d.logger},
		Reviews:   &handlers.ReviewHandler{Reviews: reviews, Sellers: userRepo, Logger: d.logger},
		Messages:  &handlers.MessageHandler{Messages: messages, Logger: d.logger},
		Desk: &handlers.DeskHandler{
			Store:     d.feedback,
			Syncer:    d.ingestor,
			Drafts:    d.drafts,
			Submitter: d.submitter,
			Logger:    d.logger,
		},
		Settings: &settings.Handler{
			Store:     d.store,
			KV:        repository.NewSettingsRepo(d.pool),
			AI:        d.aiClient,
			Breaker:   d.breaker,
			Generator: d.generator,
			Ozon:      d.ozon,
			Poller:    d.poller,
			Logger:    d.logger,
		},
	}), nil
}
