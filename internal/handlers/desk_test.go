package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tgwork/backend/internal/feedback"
	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/ozon"
)

func TestListReviews_AnsweredFilter(t *testing.T) {
	store := newMemDesk()
	store.reviews[uuid.New()] = &models.FeedbackReview{ExternalID: "a", Answered: true}
	store.reviews[uuid.New()] = &models.FeedbackReview{ExternalID: "b"}
	h := &DeskHandler{Store: store}

	rec := httptest.NewRecorder()
	h.ListReviews(rec, httptest.NewRequest(http.MethodGet, "/api/reviews?answered=false&sort=old&limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []models.FeedbackReview
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ExternalID != "b" {
		t.Errorf("list: %+v", list)
	}
	if !store.lastList.Oldest || store.lastList.Limit != 5 {
		t.Errorf("filter: %+v", store.lastList)
	}

	rec = httptest.NewRecorder()
	h.ListReviews(rec, httptest.NewRequest(http.MethodGet, "/api/reviews?answered=maybe", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad answered: expected 400, got %d", rec.Code)
	}
}

func TestGetReview_WithDraftsAndMissing(t *testing.T) {
	store := newMemDesk()
	id := uuid.New()
	store.reviews[id] = &models.FeedbackReview{ID: id, ExternalID: "x"}
	store.drafts[id] = []*models.ResponseDraft{{ID: uuid.New(), ReviewID: id, VariantNumber: 1}}
	h := &DeskHandler{Store: store}

	req := httptest.NewRequest(http.MethodGet, "/api/reviews/x", nil)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()
	h.GetReview(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		ExternalID string                  `json:"external_id"`
		Drafts     []*models.ResponseDraft `json:"drafts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.ExternalID != "x" || len(body.Drafts) != 1 {
		t.Fatalf("body: %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/reviews/x", nil)
	req.SetPathValue("id", uuid.NewString())
	rec = httptest.NewRecorder()
	h.GetReview(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing: expected 404, got %d", rec.Code)
	}
}

func TestSync_UpstreamFailureIs502(t *testing.T) {
	h := &DeskHandler{Syncer: stubSyncer{err: fmt.Errorf("fetch reviews: %w", &ozon.UpstreamError{StatusCode: 503})}}
	rec := httptest.NewRecorder()
	h.Sync(rec, httptest.NewRequest(http.MethodPost, "/api/reviews/sync", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	h = &DeskHandler{Syncer: stubSyncer{res: &feedback.SyncResult{Fetched: 3, Saved: 2}}}
	rec = httptest.NewRecorder()
	h.Sync(rec, httptest.NewRequest(http.MethodPost, "/api/reviews/sync", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"saved":2`) {
		t.Fatalf("ok sync: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSubmit_StatusCodes(t *testing.T) {
	failed := &models.Response{ID: uuid.New(), Status: models.ResponseStatusFailed, ErrorMessage: "ozon returned 500"}
	tests := []struct {
		name string
		sub  *stubSubmitter
		want int
	}{
		{"sent", &stubSubmitter{resp: &models.Response{Status: models.ResponseStatusSent}}, http.StatusCreated},
		{"already answered", &stubSubmitter{err: feedback.ErrAlreadyAnswered}, http.StatusBadRequest},
		{"no external id", &stubSubmitter{err: feedback.ErrNoExternalID}, http.StatusBadRequest},
		{"missing review", &stubSubmitter{err: fmt.Errorf("%w: review", feedback.ErrNotFound)}, http.StatusNotFound},
		{"claimed", &stubSubmitter{err: feedback.ErrSendInProgress}, http.StatusConflict},
		{"send failed", &stubSubmitter{resp: failed, err: fmt.Errorf("%w: boom", feedback.ErrSendFailed)}, http.StatusBadGateway},
		{"db down", &stubSubmitter{err: errors.New("conn reset")}, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &DeskHandler{Submitter: tc.sub}
			body := fmt.Sprintf(`{"review_id":%q,"text":"Спасибо!"}`, uuid.New())
			rec := httptest.NewRecorder()
			h.Submit(rec, httptest.NewRequest(http.MethodPost, "/api/responses", strings.NewReader(body)))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSubmit_FailedSendCarriesResponse(t *testing.T) {
	failed := &models.Response{ID: uuid.New(), Status: models.ResponseStatusFailed, ErrorMessage: "ozon returned 500"}
	h := &DeskHandler{Submitter: &stubSubmitter{resp: failed, err: feedback.ErrSendFailed}}
	body := fmt.Sprintf(`{"review_id":%q,"text":"hi"}`, uuid.New())
	rec := httptest.NewRecorder()
	h.Submit(rec, httptest.NewRequest(http.MethodPost, "/api/responses", strings.NewReader(body)))

	var got submitFailure
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Response == nil || got.Response.Status != models.ResponseStatusFailed {
		t.Errorf("response: %+v", got)
	}
}

func TestSubmit_ParsesDraftID(t *testing.T) {
	sub := &stubSubmitter{resp: &models.Response{}}
	h := &DeskHandler{Submitter: sub}
	reviewID, draftID := uuid.New(), uuid.New()
	body := fmt.Sprintf(`{"review_id":%q,"draft_id":%q,"text":"hi"}`, reviewID, draftID)
	h.Submit(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/responses", strings.NewReader(body)))

	if sub.got.ReviewID != reviewID || sub.got.DraftID == nil || *sub.got.DraftID != draftID {
		t.Errorf("input: %+v", sub.got)
	}
}

func TestGetResponse_NotFound(t *testing.T) {
	h := &DeskHandler{Store: newMemDesk()}
	req := httptest.NewRequest(http.MethodGet, "/api/responses/x", nil)
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()
	h.GetResponse(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
