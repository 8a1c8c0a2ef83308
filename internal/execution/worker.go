// Package execution holds the River job kinds of the review desk and the poller schedule.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/tgwork/backend/internal/feedback"
	"github.com/tgwork/backend/internal/models"
)

// PollReviewsArgs is the periodic marketplace poll. It carries no state: every run fetches
// the newest page and ingestion dedups by external id.
type PollReviewsArgs struct{}

func (PollReviewsArgs) Kind() string { return "poll_reviews" }

// A missed poll is not retried; the next period covers it.
func (PollReviewsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

type GenerateDraftsArgs struct {
	ReviewID uuid.UUID `json:"review_id"`
}

func (GenerateDraftsArgs) Kind() string { return "generate_drafts" }

func (GenerateDraftsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 3}
}

type ReviewSyncer interface {
	Sync(ctx context.Context) (*feedback.SyncResult, error)
}

type DraftGenerator interface {
	Generate(ctx context.Context, reviewID uuid.UUID, regenerate bool) ([]*models.ResponseDraft, error)
}

type PollReviewsWorker struct {
	river.WorkerDefaults[PollReviewsArgs]
	syncer     ReviewSyncer
	configured func() bool
	log        *slog.Logger
}

// NewPollReviewsWorker returns a worker that skips runs while configured reports false
// (no marketplace credentials yet).
func NewPollReviewsWorker(syncer ReviewSyncer, configured func() bool, log *slog.Logger) *PollReviewsWorker {
	if log == nil {
		log = slog.Default()
	}
	if configured == nil {
		configured = func() bool { return true }
	}
	return &PollReviewsWorker{syncer: syncer, configured: configured, log: log}
}

func (w *PollReviewsWorker) Work(ctx context.Context, job *river.Job[PollReviewsArgs]) error {
	if !w.configured() {
		w.log.Debug("review poll skipped: marketplace credentials not set")
		return nil
	}
	res, err := w.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("poll reviews: %w", err)
	}
	w.log.Info("review poll finished", "job_id", job.ID, "fetched", res.Fetched, "saved", res.Saved)
	return nil
}

func (w *PollReviewsWorker) Timeout(*river.Job[PollReviewsArgs]) time.Duration { return 5 * time.Minute }

type GenerateDraftsWorker struct {
	river.WorkerDefaults[GenerateDraftsArgs]
	drafts  DraftGenerator
	timeout time.Duration
	log     *slog.Logger
}

// NewGenerateDraftsWorker bounds each job by timeout; a zero timeout means two minutes.
func NewGenerateDraftsWorker(drafts DraftGenerator, timeout time.Duration, log *slog.Logger) *GenerateDraftsWorker {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GenerateDraftsWorker{drafts: drafts, timeout: timeout, log: log}
}

func (w *GenerateDraftsWorker) Work(ctx context.Context, job *river.Job[GenerateDraftsArgs]) error {
	drafts, err := w.drafts.Generate(ctx, job.Args.ReviewID, false)
	if err != nil {
		if errors.Is(err, feedback.ErrNotFound) {
			// The review is gone; retrying cannot help.
			return river.JobCancel(err)
		}
		return fmt.Errorf("generate drafts for %s: %w", job.Args.ReviewID, err)
	}
	w.log.Info("drafts generated", "review_id", job.Args.ReviewID, "count", len(drafts), "attempt", job.Attempt)
	return nil
}

func (w *GenerateDraftsWorker) Timeout(*river.Job[GenerateDraftsArgs]) time.Duration { return w.timeout }
