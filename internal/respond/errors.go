package respond

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tgwork/backend/internal/feedback"
	"github.com/tgwork/backend/internal/ozon"
	"github.com/tgwork/backend/internal/services"
)

// StatusFor maps domain errors to HTTP status codes. Unknown errors are 500.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, feedback.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrBanned):
		return http.StatusForbidden
	case errors.Is(err, services.ErrConflict), errors.Is(err, feedback.ErrSendInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrAlreadyPaid),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrServiceUnavailable),
		errors.Is(err, services.ErrSelfOrder),
		errors.Is(err, services.ErrNotCompleted),
		errors.Is(err, services.ErrReviewExists),
		errors.Is(err, services.ErrEditWindowClosed),
		errors.Is(err, feedback.ErrValidation),
		errors.Is(err, feedback.ErrAlreadyAnswered),
		errors.Is(err, feedback.ErrNoExternalID):
		return http.StatusBadRequest
	case errors.Is(err, feedback.ErrSendFailed),
		errors.Is(err, ozon.ErrUpstream),
		errors.Is(err, ozon.ErrNoCredentials):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Fail writes err with the status from StatusFor. Internal errors are logged and hidden from the client.
func Fail(w http.ResponseWriter, log *slog.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		if log == nil {
			log = slog.Default()
		}
		log.Error("request failed", "error", err)
		Error(w, status, "internal error")
		return
	}
	Error(w, status, err.Error())
}

// PathID parses the {name} path segment as a UUID, answering 400 when it is not one.
func PathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
