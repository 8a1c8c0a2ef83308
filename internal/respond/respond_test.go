package respond

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tgwork/backend/internal/feedback"
	"github.com/tgwork/backend/internal/ozon"
	"github.com/tgwork/backend/internal/services"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: order not found", services.ErrNotFound), http.StatusNotFound},
		{feedback.ErrNotFound, http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrBanned, http.StatusForbidden},
		{services.ErrConflict, http.StatusConflict},
		{feedback.ErrSendInProgress, http.StatusConflict},
		{fmt.Errorf("%w: balance 5.00", services.ErrInsufficientFunds), http.StatusBadRequest},
		{services.ErrAlreadyPaid, http.StatusBadRequest},
		{services.ErrReviewExists, http.StatusBadRequest},
		{feedback.ErrAlreadyAnswered, http.StatusBadRequest},
		{fmt.Errorf("%w: boom", feedback.ErrSendFailed), http.StatusBadGateway},
		{&ozon.UpstreamError{StatusCode: 500}, http.StatusBadGateway},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := StatusFor(tc.err); got != tc.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestFail_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, nil, errors.New("password=secret"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"status\":\"error\",\"error\":\"internal error\"}\n" {
		t.Errorf("body: %q", got)
	}
}

func TestIntQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=-3&bad=x", nil)
	if got := IntQuery(r, "limit", 20, 1, 100); got != 100 {
		t.Errorf("limit: %d", got)
	}
	if got := IntQuery(r, "offset", 0, 0, 1<<30); got != 0 {
		t.Errorf("offset: %d", got)
	}
	if got := IntQuery(r, "bad", 7, 1, 10); got != 7 {
		t.Errorf("bad: %d", got)
	}
}
