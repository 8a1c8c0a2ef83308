package feedback

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tgwork/backend/internal/ai"
	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/ozon"
)

// ---------------------------------------------------------------------------
// noopTx satisfies pgx.Tx; the in-memory store ignores it.
// ---------------------------------------------------------------------------

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// ---------------------------------------------------------------------------
// memStore implements IngestStore, DraftStore and SubmitStore.
// ---------------------------------------------------------------------------

type memStore struct {
	mu        sync.Mutex
	reviews   map[uuid.UUID]*models.FeedbackReview
	drafts    []*models.ResponseDraft
	responses []*models.Response
	now       time.Time

	// replaceErr fails ReplaceDrafts before anything is dropped, like a rolled back tx.
	replaceErr error

	// lostRace makes the next InsertTx behave as if another writer inserted first.
	lostRace *models.FeedbackReview
}

func newMemStore() *memStore {
	return &memStore{reviews: make(map[uuid.UUID]*models.FeedbackReview), now: time.Now()}
}

func (m *memStore) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *memStore) add(rv *models.FeedbackReview) *models.FeedbackReview {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rv.ID == uuid.Nil {
		rv.ID = uuid.New()
	}
	cp := *rv
	m.reviews[rv.ID] = &cp
	return rv
}

func (m *memStore) review(id uuid.UUID) models.FeedbackReview {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.reviews[id]
}

func (m *memStore) GetByExternalIDTx(_ context.Context, _ pgx.Tx, externalID string) (*models.FeedbackReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rv := range m.reviews {
		if rv.ExternalID == externalID {
			cp := *rv
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) InsertTx(_ context.Context, _ pgx.Tx, rv *models.FeedbackReview) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lostRace != nil {
		winner := *m.lostRace
		m.lostRace = nil
		m.reviews[winner.ID] = &winner
		return false, nil
	}
	for _, existing := range m.reviews {
		if existing.ExternalID == rv.ExternalID {
			return false, nil
		}
	}
	rv.CreatedAt, rv.FetchedAt = m.now, m.now
	cp := *rv
	m.reviews[rv.ID] = &cp
	return true, nil
}

func (m *memStore) GetReview(_ context.Context, id uuid.UUID) (*models.FeedbackReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv, ok := m.reviews[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *rv
	return &cp, nil
}

func (m *memStore) SetClassification(_ context.Context, id uuid.UUID, sentiment, category *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv := m.reviews[id]
	if sentiment != nil {
		rv.Sentiment = sentiment
	}
	if category != nil {
		rv.Category = category
	}
	return nil
}

func (m *memStore) InsertDrafts(_ context.Context, drafts []*models.ResponseDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range drafts {
		cp := *d
		m.drafts = append(m.drafts, &cp)
	}
	return nil
}

func (m *memStore) ReplaceDrafts(_ context.Context, reviewID uuid.UUID, drafts []*models.ResponseDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	kept := m.drafts[:0]
	for _, d := range m.drafts {
		if d.ReviewID != reviewID || d.IsSelected {
			kept = append(kept, d)
		}
	}
	m.drafts = kept
	for _, d := range drafts {
		cp := *d
		m.drafts = append(m.drafts, &cp)
	}
	return nil
}

func (m *memStore) ListDrafts(_ context.Context, reviewID uuid.UUID) ([]*models.ResponseDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ResponseDraft
	for _, d := range m.drafts {
		if d.ReviewID == reviewID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantNumber < out[j].VariantNumber })
	return out, nil
}

func (m *memStore) GetDraft(_ context.Context, id uuid.UUID) (*models.ResponseDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drafts {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) SelectDraft(_ context.Context, id uuid.UUID) (*models.ResponseDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var picked *models.ResponseDraft
	for _, d := range m.drafts {
		if d.ID == id {
			picked = d
		}
	}
	if picked == nil {
		return nil, pgx.ErrNoRows
	}
	for _, d := range m.drafts {
		if d.ReviewID == picked.ReviewID {
			d.IsSelected = d.ID == id
		}
	}
	cp := *picked
	return &cp, nil
}

func (m *memStore) ClaimSend(_ context.Context, id uuid.UUID, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv := m.reviews[id]
	if rv.Answered {
		return false, nil
	}
	if rv.SendClaimedAt != nil && rv.SendClaimedAt.After(m.now.Add(-window)) {
		return false, nil
	}
	at := m.now
	rv.SendClaimedAt = &at
	return true, nil
}

func (m *memStore) InsertResponseTx(_ context.Context, _ pgx.Tx, resp *models.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp.CreatedAt = m.now
	cp := *resp
	m.responses = append(m.responses, &cp)
	return nil
}

func (m *memStore) FinishSendTx(_ context.Context, _ pgx.Tx, id uuid.UUID, answered bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv := m.reviews[id]
	rv.SendClaimedAt = nil
	rv.Answered = rv.Answered || answered
	return nil
}

// ---------------------------------------------------------------------------
// Fetcher, sender, generator and job-insert fakes
// ---------------------------------------------------------------------------

type fakeFetcher struct {
	page *ozon.Page
	err  error
}

func (f *fakeFetcher) ListReviews(context.Context, int, int) (*ozon.Page, error) {
	return f.page, f.err
}

type fakeSender struct {
	mu    sync.Mutex
	calls int
	id    string
	err   error
}

func (f *fakeSender) CreateComment(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.id, f.err
}

type fakeGenerator struct {
	variants   []string
	respond    ai.Result
	sentiment  *string
	classified int
}

func (g *fakeGenerator) Classify(context.Context, string) (*string, *string) {
	g.classified++
	return g.sentiment, nil
}

func (g *fakeGenerator) Variants(_ context.Context, _ string, n int) []string {
	if len(g.variants) > n {
		return g.variants[:n]
	}
	return g.variants
}

func (g *fakeGenerator) Respond(context.Context, string) ai.Result { return g.respond }

type jobRecorder struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (j *jobRecorder) insert(_ context.Context, _ pgx.Tx, reviewID uuid.UUID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.ids = append(j.ids, reviewID)
	return nil
}

var errBoom = errors.New("boom")
