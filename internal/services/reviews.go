package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/tgwork/backend/internal/models"
)

type ReviewStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, rv *models.Review) error
	ExistsForOrderTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error)
	RatingsForUserTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) ([]int, error)
	RatingsForServiceTx(ctx context.Context, tx pgx.Tx, serviceID uuid.UUID) ([]int, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Review, error)
	ListByReviewedUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Review, error)
	ListByRating(ctx context.Context, rating, limit int) ([]*models.Review, error)
}

type ReviewOrders interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error)
}

type ReviewUsers interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	SetRating(ctx context.Context, tx pgx.Tx, id uuid.UUID, rating decimal.Decimal, total int) error
}

type ReviewCatalog interface {
	SetAverageRating(ctx context.Context, tx pgx.Tx, id uuid.UUID, rating decimal.Decimal) error
}

// ReviewService records buyer reviews and keeps the seller's aggregate rating in sync.
type ReviewService struct {
	Pool    TxBeginner
	Orders  ReviewOrders
	Reviews ReviewStore
	Users   ReviewUsers
	Catalog ReviewCatalog
	Logger  *slog.Logger
}

func (s *ReviewService) logger() *slog.Logger { return loggerOrDefault(s.Logger) }

// Create stores the single review for a completed order and recomputes the seller's
// rating as the mean of every rating received.
func (s *ReviewService) Create(ctx context.Context, userID, orderID uuid.UUID, rating int, text string) (*models.Review, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.Orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, ErrNotCompleted
	}
	if order.BuyerID != userID {
		return nil, fmt.Errorf("%w: only the buyer can review the order", ErrForbidden)
	}
	exists, err := s.Reviews.ExistsForOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrReviewExists
	}

	rv := &models.Review{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ReviewerID:     userID,
		ReviewedUserID: order.SellerID,
		Rating:         rating,
		Text:           text,
	}
	if err := s.Reviews.CreateTx(ctx, tx, rv); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrReviewExists
		}
		return nil, err
	}

	if _, err := s.Users.GetByIDForUpdate(ctx, tx, order.SellerID); err != nil {
		return nil, err
	}
	ratings, err := s.Reviews.RatingsForUserTx(ctx, tx, order.SellerID)
	if err != nil {
		return nil, err
	}
	if err := s.Users.SetRating(ctx, tx, order.SellerID, MeanRating(ratings), len(ratings)); err != nil {
		return nil, err
	}
	serviceRatings, err := s.Reviews.RatingsForServiceTx(ctx, tx, order.ServiceID)
	if err != nil {
		return nil, err
	}
	if err := s.Catalog.SetAverageRating(ctx, tx, order.ServiceID, MeanRating(serviceRatings)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.logger().Info("review created", "order_id", orderID, "seller_id", order.SellerID, "rating", rating)
	return rv, nil
}

func (s *ReviewService) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Review, error) {
	rv, err := s.Reviews.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "review not found")
	}
	return rv, nil
}

func (s *ReviewService) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Review, error) {
	return s.Reviews.ListByReviewedUser(ctx, userID, clamp(limit, 1, 100, 20))
}

func (s *ReviewService) ListByRating(ctx context.Context, rating, limit int) ([]*models.Review, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	return s.Reviews.ListByRating(ctx, rating, clamp(limit, 1, 100, 20))
}

// clamp bounds n to [lo, hi]; zero or negative n yields def.
func clamp(n, lo, hi, def int) int {
	if n <= 0 {
		return def
	}
	return max(lo, min(n, hi))
}
