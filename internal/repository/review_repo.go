package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tgwork/backend/internal/models"
)

const reviewColumns = `id, order_id, reviewer_id, reviewed_user_id, rating, text, created_at`

func scanReview(row scanner) (*models.Review, error) {
	var rv models.Review
	if err := row.Scan(&rv.ID, &rv.OrderID, &rv.ReviewerID, &rv.ReviewedUserID, &rv.Rating, &rv.Text, &rv.CreatedAt); err != nil {
		return nil, err
	}
	return &rv, nil
}

func collectReviews(rows pgx.Rows) ([]*models.Review, error) {
	defer rows.Close()
	list := []*models.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rv)
	}
	return list, rows.Err()
}

type ReviewRepo struct {
	pool *pgxpool.Pool
}

func NewReviewRepo(pool *pgxpool.Pool) *ReviewRepo {
	return &ReviewRepo{pool: pool}
}

// CreateTx inserts a review. A second review for the same order fails with a 23505 unique violation.
func (r *ReviewRepo) CreateTx(ctx context.Context, tx pgx.Tx, rv *models.Review) error {
	return tx.QueryRow(ctx, `
		INSERT INTO reviews (id, order_id, reviewer_id, reviewed_user_id, rating, text)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, rv.ID, rv.OrderID, rv.ReviewerID, rv.ReviewedUserID, rv.Rating, rv.Text).Scan(&rv.CreatedAt)
}

func (r *ReviewRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Review, error) {
	return scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE order_id = $1`, orderID))
}

// ExistsForOrderTx reports whether the order already has a review.
func (r *ReviewRepo) ExistsForOrderTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reviews WHERE order_id = $1)`, orderID).Scan(&exists)
	return exists, err
}

func (r *ReviewRepo) ListByReviewedUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reviewColumns+` FROM reviews WHERE reviewed_user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectReviews(rows)
}

func (r *ReviewRepo) ListByRating(ctx context.Context, rating, limit int) ([]*models.Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reviewColumns+` FROM reviews WHERE rating = $1
		ORDER BY created_at DESC LIMIT $2
	`, rating, limit)
	if err != nil {
		return nil, err
	}
	return collectReviews(rows)
}

// RatingsForUserTx returns every rating the user has received.
func (r *ReviewRepo) RatingsForUserTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) ([]int, error) {
	return collectInts(tx.Query(ctx, `SELECT rating FROM reviews WHERE reviewed_user_id = $1`, userID))
}

// RatingsForServiceTx returns every rating left on orders of the service.
func (r *ReviewRepo) RatingsForServiceTx(ctx context.Context, tx pgx.Tx, serviceID uuid.UUID) ([]int, error) {
	return collectInts(tx.Query(ctx, `
		SELECT rv.rating FROM reviews rv JOIN orders o ON o.id = rv.order_id
		WHERE o.service_id = $1
	`, serviceID))
}

func collectInts(rows pgx.Rows, err error) ([]int, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
