package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/tgwork/backend/internal/feedback"
	"github.com/tgwork/backend/internal/models"
)

type stubSyncer struct {
	calls int
	err   error
}

func (s *stubSyncer) Sync(context.Context) (*feedback.SyncResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &feedback.SyncResult{Fetched: 3, Saved: 1}, nil
}

type stubDrafts struct {
	gotID      uuid.UUID
	regenerate bool
	err        error
}

func (s *stubDrafts) Generate(_ context.Context, id uuid.UUID, regenerate bool) ([]*models.ResponseDraft, error) {
	s.gotID, s.regenerate = id, regenerate
	if s.err != nil {
		return nil, s.err
	}
	return []*models.ResponseDraft{{ReviewID: id, VariantNumber: 1}}, nil
}

func TestJobKinds(t *testing.T) {
	if got := (PollReviewsArgs{}).Kind(); got != "poll_reviews" {
		t.Errorf("poll kind = %q", got)
	}
	if got := (GenerateDraftsArgs{}).Kind(); got != "generate_drafts" {
		t.Errorf("drafts kind = %q", got)
	}
	if got := (GenerateDraftsArgs{}).InsertOpts().MaxAttempts; got != 3 {
		t.Errorf("drafts MaxAttempts = %d, want 3", got)
	}
	if got := (PollReviewsArgs{}).InsertOpts().MaxAttempts; got != 1 {
		t.Errorf("poll MaxAttempts = %d, want 1", got)
	}
}

func TestPollReviewsWorker(t *testing.T) {
	job := &river.Job[PollReviewsArgs]{JobRow: &rivertype.JobRow{ID: 7}}

	t.Run("skips without credentials", func(t *testing.T) {
		s := &stubSyncer{}
		w := NewPollReviewsWorker(s, func() bool { return false }, nil)
		if err := w.Work(context.Background(), job); err != nil {
			t.Fatal(err)
		}
		if s.calls != 0 {
			t.Errorf("sync called %d times", s.calls)
		}
	})

	t.Run("syncs", func(t *testing.T) {
		s := &stubSyncer{}
		w := NewPollReviewsWorker(s, nil, nil)
		if err := w.Work(context.Background(), job); err != nil {
			t.Fatal(err)
		}
		if s.calls != 1 {
			t.Errorf("sync called %d times", s.calls)
		}
	})

	t.Run("surfaces fetch errors", func(t *testing.T) {
		upstream := errors.New("ozon down")
		w := NewPollReviewsWorker(&stubSyncer{err: upstream}, nil, nil)
		if err := w.Work(context.Background(), job); !errors.Is(err, upstream) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestGenerateDraftsWorker(t *testing.T) {
	id := uuid.New()
	job := &river.Job[GenerateDraftsArgs]{JobRow: &rivertype.JobRow{ID: 1, Attempt: 1}, Args: GenerateDraftsArgs{ReviewID: id}}

	d := &stubDrafts{}
	w := NewGenerateDraftsWorker(d, 0, nil)
	if err := w.Work(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if d.gotID != id || d.regenerate {
		t.Errorf("Generate(%s, %v), want (%s, false)", d.gotID, d.regenerate, id)
	}
	if got := w.Timeout(job); got != 2*time.Minute {
		t.Errorf("default timeout = %s", got)
	}

	d.err = fmt.Errorf("%w: review %s", feedback.ErrNotFound, id)
	err := w.Work(context.Background(), job)
	if err == nil || !errors.Is(err, feedback.ErrNotFound) {
		t.Errorf("missing review: err = %v", err)
	}

	transient := errors.New("db timeout")
	d.err = transient
	if err := w.Work(context.Background(), job); !errors.Is(err, transient) {
		t.Errorf("transient: err = %v", err)
	}
}
