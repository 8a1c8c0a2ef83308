package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tgwork/backend/internal/feedback"
	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/respond"
)

// DeskStore is the read side of the review desk; *feedback.Repository implements it.
type DeskStore interface {
	ListReviews(ctx context.Context, f feedback.ListFilter) ([]*models.FeedbackReview, error)
	GetReview(ctx context.Context, id uuid.UUID) (*models.FeedbackReview, error)
	Stats(ctx context.Context) (*models.ReviewStats, error)
	Products(ctx context.Context) ([]*models.ProductSummary, error)
	ListDrafts(ctx context.Context, reviewID uuid.UUID) ([]*models.ResponseDraft, error)
	GetResponse(ctx context.Context, id uuid.UUID) (*models.Response, error)
	RecentResponses(ctx context.Context, limit int) ([]*models.Response, error)
	ResponsesByStatus(ctx context.Context, status string, limit int) ([]*models.Response, error)
}

type ReviewSyncer interface {
	Sync(ctx context.Context) (*feedback.SyncResult, error)
}

type DraftAPI interface {
	Generate(ctx context.Context, reviewID uuid.UUID, regenerate bool) ([]*models.ResponseDraft, error)
	Drafts(ctx context.Context, reviewID uuid.UUID) ([]*models.ResponseDraft, error)
	Select(ctx context.Context, draftID uuid.UUID) (*models.ResponseDraft, error)
}

type ResponseSubmitter interface {
	Submit(ctx context.Context, in feedback.SubmitInput) (*models.Response, error)
}

// DeskHandler serves the marketplace review desk under /api/reviews and /api/responses.
type DeskHandler struct {
	Store     DeskStore
	Syncer    ReviewSyncer
	Drafts    DraftAPI
	Submitter ResponseSubmitter
	Logger    *slog.Logger
}

type reviewWithDrafts struct {
	*models.FeedbackReview
	Drafts []*models.ResponseDraft `json:"drafts"`
}

type submitRequest struct {
	ReviewID string `json:"review_id"`
	DraftID  string `json:"draft_id"`
	Text     string `json:"text"`
}

// submitFailure is returned with 502 so the client still sees the stored attempt.
type submitFailure struct {
	Status   string           `json:"status"`
	Error    string           `json:"error"`
	Response *models.Response `json:"response"`
}

func notFoundAs(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", feedback.ErrNotFound, what)
	}
	return err
}

// ListReviews handles GET /api/reviews?answered=&sort=new|old&limit=&offset=.
func (h *DeskHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := feedback.ListFilter{
		Oldest: q.Get("sort") == "old",
		Limit:  respond.IntQuery(r, "limit", 50, 1, 200),
		Offset: respond.IntQuery(r, "offset", 0, 0, 1<<20),
	}
	if raw := q.Get("answered"); raw != "" {
		answered, err := strconv.ParseBool(raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "answered must be true or false")
			return
		}
		f.Answered = &answered
	}
	h.writeReviews(w, r, f)
}

// Unanswered handles GET /api/reviews/unanswered.
func (h *DeskHandler) Unanswered(w http.ResponseWriter, r *http.Request) {
	answered := false
	h.writeReviews(w, r, feedback.ListFilter{
		Answered: &answered,
		Limit:    respond.IntQuery(r, "limit", 50, 1, 200),
		Offset:   respond.IntQuery(r, "offset", 0, 0, 1<<20),
	})
}

func (h *DeskHandler) writeReviews(w http.ResponseWriter, r *http.Request, f feedback.ListFilter) {
	list, err := h.Store.ListReviews(r.Context(), f)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// GetReview handles GET /api/reviews/{id}.
func (h *DeskHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	rv, err := h.Store.GetReview(r.Context(), id)
	if err != nil {
		respond.Fail(w, h.Logger, notFoundAs(err, "review not found"))
		return
	}
	drafts, err := h.Store.ListDrafts(r.Context(), id)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, reviewWithDrafts{FeedbackReview: rv, Drafts: drafts})
}

// Stats handles GET /api/reviews/stats.
func (h *DeskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Stats(r.Context())
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

// Products handles GET /api/reviews/products.
func (h *DeskHandler) Products(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Products(r.Context())
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

// Sync handles POST /api/reviews/sync. A failed marketplace fetch is a 502.
func (h *DeskHandler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.Syncer.Sync(r.Context())
	if err != nil {
		respond.Error(w, http.StatusBadGateway, err.Error())
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// Regenerate handles POST /api/reviews/{id}/drafts.
func (h *DeskHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	drafts, err := h.Drafts.Generate(r.Context(), id, true)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	if drafts == nil {
		drafts = []*models.ResponseDraft{}
	}
	respond.JSON(w, http.StatusOK, drafts)
}

// Submit handles POST /api/responses.
func (h *DeskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	in := feedback.SubmitInput{Text: req.Text}
	var err error
	if in.ReviewID, err = uuid.Parse(req.ReviewID); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid review_id")
		return
	}
	if req.DraftID != "" {
		draftID, err := uuid.Parse(req.DraftID)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid draft_id")
			return
		}
		in.DraftID = &draftID
	}

	resp, err := h.Submitter.Submit(r.Context(), in)
	if err != nil {
		if errors.Is(err, feedback.ErrSendFailed) && resp != nil {
			respond.JSON(w, http.StatusBadGateway, submitFailure{Status: "error", Error: err.Error(), Response: resp})
			return
		}
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, resp)
}

// ListDrafts handles GET /api/responses/drafts/{review_id}.
func (h *DeskHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "review_id")
	if !ok {
		return
	}
	drafts, err := h.Drafts.Drafts(r.Context(), id)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, drafts)
}

// SelectDraft handles POST /api/responses/drafts/{id}/select.
func (h *DeskHandler) SelectDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	d, err := h.Drafts.Select(r.Context(), id)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

// GetResponse handles GET /api/responses/{id}.
func (h *DeskHandler) GetResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	resp, err := h.Store.GetResponse(r.Context(), id)
	if err != nil {
		respond.Fail(w, h.Logger, notFoundAs(err, "response not found"))
		return
	}
	respond.JSON(w, http.StatusOK, resp)
}

// Recent handles GET /api/responses/history/recent.
func (h *DeskHandler) Recent(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.RecentResponses(r.Context(), respond.IntQuery(r, "limit", 50, 1, 500))
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// ByStatus handles GET /api/responses/status/{status}.
func (h *DeskHandler) ByStatus(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ResponsesByStatus(r.Context(), r.PathValue("status"), respond.IntQuery(r, "limit", 50, 1, 500))
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}
