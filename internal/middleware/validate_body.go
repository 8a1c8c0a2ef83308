package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/tgwork/backend/internal/respond"
	"github.com/tgwork/backend/internal/services"
)

// maxBodyBytes bounds request bodies read by ValidateBody.
const maxBodyBytes = 1 << 20

// BodyValidator is implemented by *services.Validator.
type BodyValidator interface {
	Validate(name string, body []byte) error
}

// ValidateBody checks the JSON body against the named schema before the handler runs.
// The body is read once and replaced so the handler can decode it again.
// Schema violations are answered with 422.
func ValidateBody(v BodyValidator, schema string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			r.Body.Close()
			if err != nil {
				respond.Error(w, http.StatusBadRequest, "failed to read body")
				return
			}
			if len(bodyBytes) > maxBodyBytes {
				respond.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			if err := v.Validate(schema, bodyBytes); err != nil {
				if errors.Is(err, services.ErrValidation) {
					respond.Error(w, http.StatusUnprocessableEntity, err.Error())
					return
				}
				respond.Error(w, http.StatusInternalServerError, "schema validation unavailable")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
