package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tgwork/backend/internal/models"
)

const serviceColumns = `id, seller_id, title, description, category, tags, price, execution_days, revision_count,
	preview_url, status, total_orders, average_rating, created_at, updated_at`

func scanService(row scanner) (*models.Service, error) {
	var s models.Service
	err := row.Scan(&s.ID, &s.SellerID, &s.Title, &s.Description, &s.Category, &s.Tags, &s.Price, &s.ExecutionDays,
		&s.RevisionCount, &s.PreviewURL, &s.Status, &s.TotalOrders, &s.AverageRating, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return &s, nil
}

func collectServices(rows pgx.Rows) ([]*models.Service, error) {
	defer rows.Close()
	list := []*models.Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

type ServiceRepo struct {
	pool *pgxpool.Pool
}

func NewServiceRepo(pool *pgxpool.Pool) *ServiceRepo {
	return &ServiceRepo{pool: pool}
}

func (r *ServiceRepo) Create(ctx context.Context, s *models.Service) error {
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO services (id, seller_id, title, description, category, tags, price, execution_days, revision_count, preview_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING total_orders, average_rating, created_at, updated_at
	`, s.ID, s.SellerID, s.Title, s.Description, s.Category, s.Tags, s.Price, s.ExecutionDays, s.RevisionCount, s.PreviewURL, s.Status).
		Scan(&s.TotalOrders, &s.AverageRating, &s.CreatedAt, &s.UpdatedAt)
}

func (r *ServiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	return scanService(r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
}

// GetByIDTx reads a service inside tx with a share lock so status cannot flip mid-order.
func (r *ServiceRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Service, error) {
	return scanService(tx.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1 FOR SHARE`, id))
}

// Update writes the seller-editable fields.
func (r *ServiceRepo) Update(ctx context.Context, s *models.Service) error {
	return r.pool.QueryRow(ctx, `
		UPDATE services
		SET title = $2, description = $3, category = $4, tags = $5, price = $6, execution_days = $7,
		    revision_count = $8, preview_url = $9, status = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, s.ID, s.Title, s.Description, s.Category, s.Tags, s.Price, s.ExecutionDays, s.RevisionCount, s.PreviewURL, s.Status).
		Scan(&s.UpdatedAt)
}

func (r *ServiceRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Service, error) {
	return scanService(r.pool.QueryRow(ctx, `
		UPDATE services SET status = $2, updated_at = now() WHERE id = $1
		RETURNING `+serviceColumns, id, status))
}

// ListActive returns active services, optionally filtered by a case-insensitive category substring.
func (r *ServiceRepo) ListActive(ctx context.Context, category string, limit, offset int) ([]*models.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+` FROM services
		WHERE status = 'active' AND ($1 = '' OR category ILIKE '%' || $1 || '%')
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, category, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectServices(rows)
}

// Search matches title, description and tags of active services.
func (r *ServiceRepo) Search(ctx context.Context, q string, limit int) ([]*models.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+` FROM services
		WHERE status = 'active'
		  AND (title ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'
		       OR EXISTS (SELECT 1 FROM unnest(tags) t WHERE t ILIKE '%' || $1 || '%'))
		ORDER BY average_rating DESC, total_orders DESC LIMIT $2
	`, q, limit)
	if err != nil {
		return nil, err
	}
	return collectServices(rows)
}

func (r *ServiceRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, includeHidden bool) ([]*models.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+` FROM services
		WHERE seller_id = $1 AND ($2 OR status = 'active')
		ORDER BY created_at DESC
	`, sellerID, includeHidden)
	if err != nil {
		return nil, err
	}
	return collectServices(rows)
}

func (r *ServiceRepo) IncrementOrders(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE services SET total_orders = total_orders + 1, updated_at = now() WHERE id = $1`, id)
	return err
}

func (r *ServiceRepo) SetAverageRating(ctx context.Context, tx pgx.Tx, id uuid.UUID, rating decimal.Decimal) error {
	_, err := tx.Exec(ctx, `UPDATE services SET average_rating = $2, updated_at = now() WHERE id = $1`, id, rating)
	return err
}
