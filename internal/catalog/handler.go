package catalog

import (
	"log/slog"
	"net/http"

	"github.com/tgwork/backend/internal/middleware"
	"github.com/tgwork/backend/internal/respond"
)

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

type moderateRequest struct {
	Status string `json:"status"`
}

// Create handles POST /api/v1/services.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	svc, err := h.svc.Create(r.Context(), middleware.UserIDFromCtx(r.Context()), req)
	if err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, svc)
}

// Get handles GET /api/v1/services/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	svc, err := h.svc.Get(ctx, middleware.UserIDFromCtx(ctx), id, middleware.IsAdmin(ctx))
	if err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, svc)
}

// List handles GET /api/v1/services?category=&limit=&offset=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), r.URL.Query().Get("category"),
		respond.IntQuery(r, "limit", 20, 1, 100), respond.IntQuery(r, "offset", 0, 0, 1<<20))
	if err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// Search handles GET /api/v1/services/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"), respond.IntQuery(r, "limit", 20, 1, 100))
	if err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// Update handles PATCH /api/v1/services/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	svc, err := h.svc.Update(r.Context(), middleware.UserIDFromCtx(r.Context()), id, req)
	if err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, svc)
}

// Delete handles DELETE /api/v1/services/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Hide(r.Context(), middleware.UserIDFromCtx(r.Context()), id); err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BySeller handles GET /api/v1/services/seller/{seller_id}.
func (h *Handler) BySeller(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := respond.PathID(w, r, "seller_id")
	if !ok {
		return
	}
	list, err := h.svc.BySeller(r.Context(), middleware.UserIDFromCtx(r.Context()), sellerID)
	if err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// Moderate handles POST /api/v1/admin/services/{id}/moderate.
func (h *Handler) Moderate(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	var req moderateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	svc, err := h.svc.Moderate(r.Context(), id, req.Status)
	if err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, svc)
}
