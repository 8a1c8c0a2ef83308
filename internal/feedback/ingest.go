package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/ozon"
)

// PageSize is how many reviews one poll asks for.
const PageSize = 100

// ReviewFetcher is the marketplace side of ingestion; *ozon.Client implements it.
type ReviewFetcher interface {
	ListReviews(ctx context.Context, limit, offset int) (*ozon.Page, error)
}

// IngestStore is the persistence used by the Ingestor.
type IngestStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetByExternalIDTx(ctx context.Context, tx pgx.Tx, externalID string) (*models.FeedbackReview, error)
	InsertTx(ctx context.Context, tx pgx.Tx, rv *models.FeedbackReview) (bool, error)
}

// InsertDraftJobTxFunc enqueues draft generation for a review inside tx. Provided by main
// as a closure over river.Client.InsertTx.
type InsertDraftJobTxFunc func(ctx context.Context, tx pgx.Tx, reviewID uuid.UUID) error

// SyncResult is returned by POST /api/reviews/sync and logged by the poller.
type SyncResult struct {
	Fetched int `json:"fetched"`
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}

// Ingestor stores fetched reviews exactly once and schedules drafts for unanswered ones.
type Ingestor struct {
	store          IngestStore
	fetcher        ReviewFetcher
	insertDraftJob InsertDraftJobTxFunc
	log            *slog.Logger
}

func NewIngestor(store IngestStore, fetcher ReviewFetcher, insertDraftJob InsertDraftJobTxFunc, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{store: store, fetcher: fetcher, insertDraftJob: insertDraftJob, log: log}
}

// Sync fetches one page and ingests every review in it. A failing review is logged and skipped.
func (in *Ingestor) Sync(ctx context.Context) (*SyncResult, error) {
	page, err := in.fetcher.ListReviews(ctx, PageSize, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch reviews: %w", err)
	}
	res := &SyncResult{Fetched: len(page.Reviews) + page.Skipped, Skipped: page.Skipped}
	for _, rv := range page.Reviews {
		_, created, err := in.IngestOne(ctx, rv)
		if err != nil {
			in.log.Error("ingest review failed", "external_id", rv.ExternalID, "error", err)
			res.Skipped++
			continue
		}
		if created {
			res.Saved++
		}
	}
	in.log.Info("reviews synced", "fetched", res.Fetched, "saved", res.Saved, "skipped", res.Skipped)
	return res, nil
}

// IngestOne stores rv unless its external id is already known, in which case the stored row is
// returned and created is false. Draft generation is enqueued in the same transaction unless the
// review was already answered on the marketplace.
func (in *Ingestor) IngestOne(ctx context.Context, rv ozon.Review) (*models.FeedbackReview, bool, error) {
	tx, err := in.store.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	existing, err := in.store.GetByExternalIDTx(ctx, tx, rv.ExternalID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	row := &models.FeedbackReview{
		ID:           uuid.New(),
		ExternalID:   rv.ExternalID,
		ProductID:    rv.ProductID,
		ProductName:  rv.ProductName,
		CustomerName: rv.CustomerName,
		Rating:       rv.Rating,
		Text:         rv.Text,
		Answered:     rv.Answered,
	}
	inserted, err := in.store.InsertTx(ctx, tx, row)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// Lost a race with a concurrent poll.
		existing, err := in.store.GetByExternalIDTx(ctx, tx, rv.ExternalID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if !row.Answered && in.insertDraftJob != nil {
		if err := in.insertDraftJob(ctx, tx, row.ID); err != nil {
			return nil, false, fmt.Errorf("enqueue drafts: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return row, true, nil
}
