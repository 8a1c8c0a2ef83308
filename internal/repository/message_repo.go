package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tgwork/backend/internal/models"
)

const messageColumns = `id, order_id, author_id, text, attachments, is_edited, is_deleted, created_at, edited_at`

func scanMessage(row scanner) (*models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.OrderID, &m.AuthorID, &m.Text, &m.Attachments, &m.IsEdited, &m.IsDeleted, &m.CreatedAt, &m.EditedAt); err != nil {
		return nil, err
	}
	if m.Attachments == nil {
		m.Attachments = []string{}
	}
	return &m, nil
}

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, m *models.Message) error {
	if m.Attachments == nil {
		m.Attachments = []string{}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, order_id, author_id, text, attachments)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, m.ID, m.OrderID, m.AuthorID, m.Text, m.Attachments).Scan(&m.CreatedAt)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

// ListByOrder returns the latest `limit` non-deleted messages in chronological order.
func (r *MessageRepo) ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]*models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM messages
			WHERE order_id = $1 AND NOT is_deleted
			ORDER BY created_at DESC LIMIT $2
		) latest ORDER BY created_at ASC
	`, orderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Edit replaces the text of a live message.
func (r *MessageRepo) Edit(ctx context.Context, id uuid.UUID, text string) (*models.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `
		UPDATE messages SET text = $2, is_edited = TRUE, edited_at = now()
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+messageColumns, id, text))
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE messages SET text = $2, is_deleted = TRUE, edited_at = now() WHERE id = $1
	`, id, models.DeletedMessageText)
	return err
}
