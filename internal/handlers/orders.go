package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tgwork/backend/internal/middleware"
	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/respond"
	"github.com/tgwork/backend/internal/services"
)

// OrderAPI is implemented by *services.OrderService.
type OrderAPI interface {
	Create(ctx context.Context, buyerID uuid.UUID, in services.CreateOrderInput) (*models.Order, error)
	Pay(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, userID, orderID uuid.UUID, in services.UpdateOrderInput) (*models.Order, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ResolveDispute(ctx context.Context, orderID uuid.UUID, outcome string) (*models.Order, error)
	Get(ctx context.Context, userID, orderID uuid.UUID, admin bool) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, role, status string, limit, offset int) ([]*models.Order, error)
}

// OrderHandler serves /api/v1/orders endpoints.
type OrderHandler struct {
	Orders OrderAPI
	Logger *slog.Logger
}

type createOrderRequest struct {
	ServiceID    string `json:"service_id"`
	Description  string `json:"description"`
	BuyerComment string `json:"buyer_comment"`
}

type updateOrderRequest struct {
	Status       string `json:"status"`
	SellerResult string `json:"seller_result"`
	BuyerComment string `json:"buyer_comment"`
}

type resolveDisputeRequest struct {
	Outcome string `json:"outcome"`
}

// Create handles POST /api/v1/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid service_id")
		return
	}
	order, err := h.Orders.Create(r.Context(), middleware.UserIDFromCtx(r.Context()), services.CreateOrderInput{
		ServiceID:    serviceID,
		Description:  req.Description,
		BuyerComment: req.BuyerComment,
	})
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, order)
}

// Pay handles POST /api/v1/orders/{id}/pay.
func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.Orders.Pay(r.Context(), middleware.UserIDFromCtx(r.Context()), id)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, order)
}

// Update handles PUT /api/v1/orders/{id}.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	var req updateOrderRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	order, err := h.Orders.Update(r.Context(), middleware.UserIDFromCtx(r.Context()), id, services.UpdateOrderInput(req))
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, order)
}

// Cancel handles POST /api/v1/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.Orders.Cancel(r.Context(), middleware.UserIDFromCtx(r.Context()), id)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, order)
}

// Resolve handles POST /api/v1/admin/orders/{id}/resolve.
func (h *OrderHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	var req resolveDisputeRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	order, err := h.Orders.ResolveDispute(r.Context(), id, req.Outcome)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, order)
}

// Get handles GET /api/v1/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	order, err := h.Orders.Get(ctx, middleware.UserIDFromCtx(ctx), id, middleware.IsAdmin(ctx))
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, order)
}

// List handles GET /api/v1/orders?role=&status=&limit=&offset=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.Orders.List(r.Context(), middleware.UserIDFromCtx(r.Context()),
		q.Get("role"), q.Get("status"),
		respond.IntQuery(r, "limit", 20, 1, 100), respond.IntQuery(r, "offset", 0, 0, 1<<20))
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, orders)
}
