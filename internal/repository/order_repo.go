package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tgwork/backend/internal/models"
)

const orderColumns = `id, buyer_id, seller_id, service_id, title, description, price, platform_fee_percent, platform_fee,
	seller_gets, is_paid, payment_date, status, deadline, revisions_used, revisions_allowed, buyer_comment, seller_result,
	created_at, updated_at, completed_at, cancelled_at`

func scanOrder(row scanner) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.ServiceID, &o.Title, &o.Description, &o.Price, &o.PlatformFeePercent,
		&o.PlatformFee, &o.SellerGets, &o.IsPaid, &o.PaymentDate, &o.Status, &o.Deadline, &o.RevisionsUsed,
		&o.RevisionsAllowed, &o.BuyerComment, &o.SellerResult, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt, &o.CancelledAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// CreateTx inserts the order inside tx.
func (r *OrderRepo) CreateTx(ctx context.Context, tx pgx.Tx, o *models.Order) error {
	return tx.QueryRow(ctx, `
		INSERT INTO orders (id, buyer_id, seller_id, service_id, title, description, price, platform_fee_percent, platform_fee,
		                    seller_gets, status, deadline, revisions_allowed, buyer_comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`, o.ID, o.BuyerID, o.SellerID, o.ServiceID, o.Title, o.Description, o.Price, o.PlatformFeePercent, o.PlatformFee,
		o.SellerGets, o.Status, o.Deadline, o.RevisionsAllowed, o.BuyerComment).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// GetByIDForUpdate locks the order row for the rest of tx.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error) {
	return scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

// MarkPaid flips an unpaid waiting order to in_progress. Returns false if the
// order was already paid or moved on.
func (r *OrderRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE orders SET is_paid = TRUE, payment_date = now(), status = 'in_progress', updated_at = now()
		WHERE id = $1 AND is_paid = FALSE AND status = 'waiting_payment'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Transition moves the order to status `to` only if its current status is one of from.
// completed_at / cancelled_at are stamped for the matching terminal states.
func (r *OrderRepo) Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from []string, to string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $3,
		    completed_at = CASE WHEN $3 = 'completed' THEN now() ELSE completed_at END,
		    cancelled_at = CASE WHEN $3 = 'cancelled' THEN now() ELSE cancelled_at END,
		    updated_at = now()
		WHERE id = $1 AND status = ANY($2)
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateNotes stores the free-text fields; empty values leave the column untouched.
func (r *OrderRepo) UpdateNotes(ctx context.Context, tx pgx.Tx, id uuid.UUID, sellerResult, buyerComment string) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders
		SET seller_result = COALESCE(NULLIF($2, ''), seller_result),
		    buyer_comment = COALESCE(NULLIF($3, ''), buyer_comment),
		    updated_at = now()
		WHERE id = $1
	`, id, sellerResult, buyerComment)
	return err
}

// ListByUser lists orders where the user is buyer or seller (role "buyer"/"seller"/"" for both).
func (r *OrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, role, status string, limit, offset int) ([]*models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE (($2 = 'buyer' AND buyer_id = $1) OR ($2 = 'seller' AND seller_id = $1) OR ($2 = '' AND (buyer_id = $1 OR seller_id = $1)))
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC LIMIT $4 OFFSET $5
	`, userID, role, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}
