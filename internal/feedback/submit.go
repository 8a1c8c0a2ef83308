package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tgwork/backend/internal/models"
)

// ClaimWindow is how long a send claim blocks a second submit of the same review.
const ClaimWindow = 2 * time.Minute

// CommentSender posts an answer to the marketplace; *ozon.Client implements it.
type CommentSender interface {
	CreateComment(ctx context.Context, reviewID, text string) (string, error)
}

type SubmitStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetReview(ctx context.Context, id uuid.UUID) (*models.FeedbackReview, error)
	GetDraft(ctx context.Context, id uuid.UUID) (*models.ResponseDraft, error)
	ClaimSend(ctx context.Context, id uuid.UUID, window time.Duration) (bool, error)
	InsertResponseTx(ctx context.Context, tx pgx.Tx, resp *models.Response) error
	FinishSendTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, answered bool) error
}

type SubmitInput struct {
	ReviewID uuid.UUID
	Text     string
	DraftID  *uuid.UUID
}

// Submitter sends a chosen answer to the marketplace at most once per review.
type Submitter struct {
	store  SubmitStore
	sender CommentSender
	now    func() time.Time
	log    *slog.Logger
}

func NewSubmitter(store SubmitStore, sender CommentSender, log *slog.Logger) *Submitter {
	if log == nil {
		log = slog.Default()
	}
	return &Submitter{store: store, sender: sender, now: time.Now, log: log}
}

// Submit claims the review, sends the text and records the outcome. A failed send is stored with
// status failed, leaves the review unanswered and is returned together with ErrSendFailed.
func (s *Submitter) Submit(ctx context.Context, in SubmitInput) (*models.Response, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: response text is empty", ErrValidation)
	}
	rv, err := s.store.GetReview(ctx, in.ReviewID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: review %s", ErrNotFound, in.ReviewID)
		}
		return nil, err
	}
	if rv.Answered {
		return nil, ErrAlreadyAnswered
	}
	if rv.ExternalID == "" {
		return nil, ErrNoExternalID
	}
	if in.DraftID != nil {
		d, err := s.store.GetDraft(ctx, *in.DraftID)
		if err != nil || d.ReviewID != rv.ID {
			return nil, fmt.Errorf("%w: draft does not belong to review", ErrValidation)
		}
	}

	claimed, err := s.store.ClaimSend(ctx, rv.ID, ClaimWindow)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrSendInProgress
	}

	commentID, sendErr := s.sender.CreateComment(ctx, rv.ExternalID, text)

	resp := &models.Response{
		ID:       uuid.New(),
		ReviewID: rv.ID,
		DraftID:  in.DraftID,
		Text:     text,
	}
	if sendErr != nil {
		resp.Status = models.ResponseStatusFailed
		resp.ErrorMessage = sendErr.Error()
	} else {
		sentAt := s.now()
		resp.Status = models.ResponseStatusSent
		resp.ExternalCommentID = commentID
		resp.SentAt = &sentAt
	}

	// The comment is already out; record it even if the caller went away.
	if err := s.record(context.WithoutCancel(ctx), resp, sendErr == nil); err != nil {
		return nil, err
	}
	if sendErr != nil {
		s.log.Warn("response send failed", "review_id", rv.ID, "error", sendErr)
		return resp, fmt.Errorf("%w: %v", ErrSendFailed, sendErr)
	}
	s.log.Info("response sent", "review_id", rv.ID, "external_comment_id", commentID)
	return resp, nil
}

func (s *Submitter) record(ctx context.Context, resp *models.Response, answered bool) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.store.InsertResponseTx(ctx, tx, resp); err != nil {
		return err
	}
	if err := s.store.FinishSendTx(ctx, tx, resp.ReviewID, answered); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
