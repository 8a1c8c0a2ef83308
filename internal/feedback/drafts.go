package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tgwork/backend/internal/ai"
	"github.com/tgwork/backend/internal/models"
)

// Generator is the subset of *ai.Generator used for drafts.
type Generator interface {
	Classify(ctx context.Context, reviewText string) (sentiment, category *string)
	Variants(ctx context.Context, reviewText string, n int) []string
	Respond(ctx context.Context, reviewText string) ai.Result
}

type DraftStore interface {
	GetReview(ctx context.Context, id uuid.UUID) (*models.FeedbackReview, error)
	SetClassification(ctx context.Context, id uuid.UUID, sentiment, category *string) error
	InsertDrafts(ctx context.Context, drafts []*models.ResponseDraft) error
	ReplaceDrafts(ctx context.Context, reviewID uuid.UUID, drafts []*models.ResponseDraft) error
	ListDrafts(ctx context.Context, reviewID uuid.UUID) ([]*models.ResponseDraft, error)
	SelectDraft(ctx context.Context, id uuid.UUID) (*models.ResponseDraft, error)
}

// DraftService classifies reviews and stores answer drafts for them.
type DraftService struct {
	store        DraftStore
	gen          Generator
	autoResponse func() bool
	log          *slog.Logger
}

func NewDraftService(store DraftStore, gen Generator, autoResponse func() bool, log *slog.Logger) *DraftService {
	if log == nil {
		log = slog.Default()
	}
	if autoResponse == nil {
		autoResponse = func() bool { return false }
	}
	return &DraftService{store: store, gen: gen, autoResponse: autoResponse, log: log}
}

// Generate builds drafts for a review. With regenerate false an existing draft set is kept as is,
// so a retried job does not duplicate drafts. Answered reviews get no drafts.
//
// With auto-response on, variant 1 is the single Respond result (ai or fallback) and AI variants
// continue from 2; otherwise AI variants start at 1. On regeneration numbering continues after a
// kept selected draft, and a run that yields nothing leaves the stored drafts untouched.
func (s *DraftService) Generate(ctx context.Context, reviewID uuid.UUID, regenerate bool) ([]*models.ResponseDraft, error) {
	rv, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: review %s", ErrNotFound, reviewID)
		}
		return nil, err
	}
	if rv.Answered {
		return nil, nil
	}

	existing, err := s.store.ListDrafts(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if !regenerate && len(existing) > 0 {
		return existing, nil
	}

	if rv.Sentiment == nil && rv.Category == nil {
		sentiment, category := s.gen.Classify(ctx, rv.Text)
		if sentiment != nil || category != nil {
			if err := s.store.SetClassification(ctx, rv.ID, sentiment, category); err != nil {
				s.log.Warn("store classification failed", "review_id", rv.ID, "error", err)
			}
		}
	}

	var drafts []*models.ResponseDraft
	next := 1
	for _, d := range existing {
		if d.IsSelected && d.VariantNumber >= next {
			next = d.VariantNumber + 1
		}
	}
	if s.autoResponse() {
		res := s.gen.Respond(ctx, rv.Text)
		if res.Text != "" {
			drafts = append(drafts, newDraft(rv.ID, res.Text, next, res.Mode))
			next++
		}
	}
	for _, text := range s.gen.Variants(ctx, rv.Text, ai.MaxVariants) {
		drafts = append(drafts, newDraft(rv.ID, text, next, models.DraftModeAI))
		next++
	}

	switch {
	case len(drafts) == 0 && len(existing) > 0:
		s.log.Warn("regeneration produced no drafts, keeping current set", "review_id", rv.ID)
		return existing, nil
	case regenerate:
		err = s.store.ReplaceDrafts(ctx, rv.ID, drafts)
	default:
		err = s.store.InsertDrafts(ctx, drafts)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("drafts generated", "review_id", rv.ID, "count", len(drafts))
	return drafts, nil
}

func newDraft(reviewID uuid.UUID, text string, variant int, mode string) *models.ResponseDraft {
	return &models.ResponseDraft{
		ID:            uuid.New(),
		ReviewID:      reviewID,
		Text:          text,
		VariantNumber: variant,
		Mode:          mode,
	}
}

// Drafts returns the drafts of a review; ErrNotFound when there are none.
func (s *DraftService) Drafts(ctx context.Context, reviewID uuid.UUID) ([]*models.ResponseDraft, error) {
	drafts, err := s.store.ListDrafts(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no drafts for review %s", ErrNotFound, reviewID)
	}
	return drafts, nil
}

func (s *DraftService) Select(ctx context.Context, draftID uuid.UUID) (*models.ResponseDraft, error) {
	d, err := s.store.SelectDraft(ctx, draftID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: draft %s", ErrNotFound, draftID)
	}
	return d, err
}
