package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/tgwork/backend/internal/middleware"
	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/respond"
)

// ReviewAPI is implemented by *services.ReviewService.
type ReviewAPI interface {
	Create(ctx context.Context, userID, orderID uuid.UUID, rating int, text string) (*models.Review, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Review, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Review, error)
	ListByRating(ctx context.Context, rating, limit int) ([]*models.Review, error)
}

type SellerRanking interface {
	TopSellers(ctx context.Context, limit int) ([]*models.User, error)
}

// ReviewHandler serves /api/v1/reviews endpoints.
type ReviewHandler struct {
	Reviews ReviewAPI
	Sellers SellerRanking
	Logger  *slog.Logger
}

type createReviewRequest struct {
	OrderID string `json:"order_id"`
	Rating  int    `json:"rating"`
	Text    string `json:"text"`
}

// Create handles POST /api/v1/reviews.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid order_id")
		return
	}
	rv, err := h.Reviews.Create(r.Context(), middleware.UserIDFromCtx(r.Context()), orderID, req.Rating, req.Text)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, rv)
}

// ByOrder handles GET /api/v1/reviews/order/{order_id}.
func (h *ReviewHandler) ByOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "order_id")
	if !ok {
		return
	}
	rv, err := h.Reviews.GetByOrder(r.Context(), id)
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, rv)
}

// ForUser handles GET /api/v1/reviews/user/{user_id}.
func (h *ReviewHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "user_id")
	if !ok {
		return
	}
	list, err := h.Reviews.ListForUser(r.Context(), id, respond.IntQuery(r, "limit", 20, 1, 100))
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// ByRating handles GET /api/v1/reviews/by-rating/{rating}.
func (h *ReviewHandler) ByRating(w http.ResponseWriter, r *http.Request) {
	rating, err := strconv.Atoi(r.PathValue("rating"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid rating")
		return
	}
	list, err := h.Reviews.ListByRating(r.Context(), rating, respond.IntQuery(r, "limit", 20, 1, 100))
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// TopSellers handles GET /api/v1/reviews/top-sellers.
func (h *ReviewHandler) TopSellers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Sellers.TopSellers(r.Context(), respond.IntQuery(r, "limit", 10, 1, 50))
	if err != nil {
		respond.Fail(w, h.Logger, err)
		return
	}
	out := make([]models.PublicProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	respond.JSON(w, http.StatusOK, out)
}
