package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tgwork/backend/internal/models"
)

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, telegram_id, telegram_username, first_name, last_name, avatar_url, bio, skills, role, password_hash,
	is_active, is_banned, balance, total_earned, total_spent, rating, total_reviews, completed_orders, cancelled_orders,
	created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.TelegramUsername, &u.FirstName, &u.LastName, &u.AvatarURL, &u.Bio, &u.Skills,
		&u.Role, &u.PasswordHash, &u.IsActive, &u.IsBanned, &u.Balance, &u.TotalEarned, &u.TotalSpent, &u.Rating,
		&u.TotalReviews, &u.CompletedOrders, &u.CancelledOrders, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if u.Skills == nil {
		u.Skills = []string{}
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()
	list := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	if u.Skills == nil {
		u.Skills = []string{}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, telegram_id, telegram_username, first_name, last_name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING is_active, is_banned, balance, total_earned, total_spent, rating, created_at, updated_at
	`, u.ID, u.TelegramID, u.TelegramUsername, u.FirstName, u.LastName, u.Role, u.PasswordHash).
		Scan(&u.IsActive, &u.IsBanned, &u.Balance, &u.TotalEarned, &u.TotalSpent, &u.Rating, &u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
}

// GetByIDForUpdate locks the user row for the rest of tx.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// Debit subtracts amount from the balance and adds it to total_spent.
// Returns pgx.ErrNoRows when the balance is lower than amount.
func (r *UserRepo) Debit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE users SET balance = balance - $2, total_spent = total_spent + $2, updated_at = now()
		WHERE id = $1 AND balance >= $2
		RETURNING balance
	`, id, amount).Scan(&balance)
	return balance, err
}

// Credit adds amount to the balance.
func (r *UserRepo) Credit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = now()
		WHERE id = $1
		RETURNING balance
	`, id, amount).Scan(&balance)
	return balance, err
}

// CreditEarnings pays a seller for a completed order.
func (r *UserRepo) CreditEarnings(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE users
		SET balance = balance + $2, total_earned = total_earned + $2, completed_orders = completed_orders + 1, updated_at = now()
		WHERE id = $1
		RETURNING balance
	`, id, amount).Scan(&balance)
	return balance, err
}

// RefundSpend returns a dispute refund to the buyer and rolls back total_spent.
func (r *UserRepo) RefundSpend(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE users
		SET balance = balance + $2, total_spent = GREATEST(total_spent - $2, 0), updated_at = now()
		WHERE id = $1
		RETURNING balance
	`, id, amount).Scan(&balance)
	return balance, err
}

func (r *UserRepo) IncrementCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE users SET cancelled_orders = cancelled_orders + 1, updated_at = now() WHERE id = $1`, id)
	return err
}

func (r *UserRepo) SetRating(ctx context.Context, tx pgx.Tx, id uuid.UUID, rating decimal.Decimal, total int) error {
	_, err := tx.Exec(ctx, `UPDATE users SET rating = $2, total_reviews = $3, updated_at = now() WHERE id = $1`, id, rating, total)
	return err
}

// UpdateProfile writes the user-editable profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		UPDATE users SET first_name = $2, last_name = $3, bio = $4, skills = $5, avatar_url = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, u.ID, u.FirstName, u.LastName, u.Bio, u.Skills, u.AvatarURL).Scan(&u.UpdatedAt)
}

// SetBanned returns pgx.ErrNoRows when the user does not exist.
func (r *UserRepo) SetBanned(ctx context.Context, id uuid.UUID, banned bool) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET is_banned = $2, updated_at = now() WHERE id = $1
		RETURNING `+userColumns, id, banned))
}

// SetRole returns pgx.ErrNoRows when the user does not exist.
func (r *UserRepo) SetRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = now() WHERE id = $1
		RETURNING `+userColumns, id, role))
}

func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active AND id <> $3
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset, models.PlatformUserID)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// Search matches names and username case-insensitively.
func (r *UserRepo) Search(ctx context.Context, q string, limit int) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active AND NOT is_banned AND id <> $3
		  AND (first_name ILIKE '%' || $1 || '%' OR last_name ILIKE '%' || $1 || '%' OR telegram_username ILIKE '%' || $1 || '%')
		ORDER BY rating DESC LIMIT $2
	`, q, limit, models.PlatformUserID)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// TopSellers lists active sellers with at least one completed order, best rated first.
func (r *UserRepo) TopSellers(ctx context.Context, limit int) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active AND NOT is_banned AND completed_orders > 0 AND id <> $2
		ORDER BY rating DESC, total_reviews DESC LIMIT $1
	`, limit, models.PlatformUserID)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}
