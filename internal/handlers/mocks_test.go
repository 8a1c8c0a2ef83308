package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tgwork/backend/internal/feedback"
	"github.com/tgwork/backend/internal/middleware"
	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// stubOrders answers every call with order/err and records the last call.
type stubOrders struct {
	mu      sync.Mutex
	order   *models.Order
	orders  []*models.Order
	err     error
	lastIn  services.UpdateOrderInput
	lastNew services.CreateOrderInput
	lastArg string
	admin   bool
}

func (s *stubOrders) result() (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrders) Create(_ context.Context, _ uuid.UUID, in services.CreateOrderInput) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastNew = in
	return s.result()
}

func (s *stubOrders) Pay(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return s.result()
}

func (s *stubOrders) Update(_ context.Context, _, _ uuid.UUID, in services.UpdateOrderInput) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIn = in
	return s.result()
}

func (s *stubOrders) Cancel(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return s.result()
}

func (s *stubOrders) ResolveDispute(_ context.Context, _ uuid.UUID, outcome string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastArg = outcome
	return s.result()
}

func (s *stubOrders) Get(_ context.Context, _, _ uuid.UUID, admin bool) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admin = admin
	return s.result()
}

func (s *stubOrders) List(_ context.Context, _ uuid.UUID, role, _ string, _, _ int) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastArg = role
	return s.orders, s.err
}

// memDesk is an in-memory DeskStore.
type memDesk struct {
	mu        sync.Mutex
	reviews   map[uuid.UUID]*models.FeedbackReview
	drafts    map[uuid.UUID][]*models.ResponseDraft
	responses map[uuid.UUID]*models.Response
	lastList  feedback.ListFilter
}

func newMemDesk() *memDesk {
	return &memDesk{
		reviews:   make(map[uuid.UUID]*models.FeedbackReview),
		drafts:    make(map[uuid.UUID][]*models.ResponseDraft),
		responses: make(map[uuid.UUID]*models.Response),
	}
}

func (m *memDesk) ListReviews(_ context.Context, f feedback.ListFilter) ([]*models.FeedbackReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = f
	out := []*models.FeedbackReview{}
	for _, rv := range m.reviews {
		if f.Answered == nil || rv.Answered == *f.Answered {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (m *memDesk) GetReview(_ context.Context, id uuid.UUID) (*models.FeedbackReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv, ok := m.reviews[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return rv, nil
}

func (m *memDesk) Stats(context.Context) (*models.ReviewStats, error) {
	return &models.ReviewStats{Total: len(m.reviews)}, nil
}

func (m *memDesk) Products(context.Context) ([]*models.ProductSummary, error) {
	return []*models.ProductSummary{}, nil
}

func (m *memDesk) ListDrafts(_ context.Context, reviewID uuid.UUID) ([]*models.ResponseDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.ResponseDraft{}, m.drafts[reviewID]...), nil
}

func (m *memDesk) GetResponse(_ context.Context, id uuid.UUID) (*models.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.responses[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return resp, nil
}

func (m *memDesk) RecentResponses(context.Context, int) ([]*models.Response, error) {
	return []*models.Response{}, nil
}

func (m *memDesk) ResponsesByStatus(context.Context, string, int) ([]*models.Response, error) {
	return []*models.Response{}, nil
}

type stubSyncer struct {
	res *feedback.SyncResult
	err error
}

func (s stubSyncer) Sync(context.Context) (*feedback.SyncResult, error) { return s.res, s.err }

type stubSubmitter struct {
	resp *models.Response
	err  error
	got  feedback.SubmitInput
}

func (s *stubSubmitter) Submit(_ context.Context, in feedback.SubmitInput) (*models.Response, error) {
	s.got = in
	return s.resp, s.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// asUser sets the caller identity JWTAuth would have set upstream.
func asUser(r *http.Request, id uuid.UUID, role string) *http.Request {
	return r.WithContext(middleware.WithUser(r.Context(), id, role))
}
