package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tgwork/backend/internal/models"
)

const transactionColumns = `id, user_id, order_id, type, status, amount, description, reference, created_at, completed_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts a ledger entry inside the caller's transaction. Entries are never edited afterwards,
// except for the pending escrow settlement in SettleEscrow.
func (r *Repository) Append(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, user_id, order_id, type, status, amount, description, reference, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $5 = 'completed' THEN now() END)
		RETURNING created_at, completed_at
	`, t.ID, t.UserID, t.OrderID, t.Type, t.Status, t.Amount, t.Description, t.Reference).Scan(&t.CreatedAt, &t.CompletedAt)
}

// SettleEscrow moves the order's pending escrow entry to status. It reports false
// when there is no pending entry left, i.e. it was already settled.
func (r *Repository) SettleEscrow(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE transactions
		SET status = $2, completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END
		WHERE order_id = $1 AND type = 'escrow' AND status = 'pending'
	`, orderID, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE order_id = $1
		ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*models.Transaction, error) {
	defer rows.Close()
	list := []*models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.OrderID, &t.Type, &t.Status, &t.Amount, &t.Description, &t.Reference, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
