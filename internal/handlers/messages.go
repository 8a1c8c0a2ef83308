package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tgwork/backend/internal/middleware"
	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/respond"
)

// MessageAPI is implemented by *services.MessageService.
type MessageAPI interface {
	Send(ctx context.Context, userID, orderID uuid.UUID, text string, attachments []string) (*models.Message, error)
	List(ctx context.Context, userID, orderID uuid.UUID, limit int) ([]*models.Message, error)
	Edit(ctx context.Context, userID, messageID uuid.UUID, text string) (*models.Message, error)
	Delete(ctx context.Context, userID, messageID uuid.UUID) error
}

// MessageHandler serves the order chat.
type MessageHandler struct {
	Messages MessageAPI
	Logger   *slog.Logger
}

type messageRequest struct {
	Text        string   `json:"text"`
	Attachments []string `json:"attachments"`
}

// Send handles POST /api/v1/orders/{id}/messages.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	orderID, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	var req messageRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	msg, err := h.Messages.Send(r.Context(), middleware.UserIDFromCtx(r.Context()), orderID, req.Text, req.Attachments)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, msg)
}

// List handles GET /api/v1/orders/{id}/messages.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	orderID, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	msgs, err := h.Messages.List(r.Context(), middleware.UserIDFromCtx(r.Context()), orderID, respond.IntQuery(r, "limit", 100, 1, 1000))
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, msgs)
}

// Edit handles PATCH /api/v1/messages/{id}.
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	var req messageRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	msg, err := h.Messages.Edit(r.Context(), middleware.UserIDFromCtx(r.Context()), id, req.Text)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, msg)
}

// Delete handles DELETE /api/v1/messages/{id}.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Messages.Delete(r.Context(), middleware.UserIDFromCtx(r.Context()), id); err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
