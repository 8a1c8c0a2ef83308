package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tgwork/backend/internal/models"
)

// SettingsRepo is the free-form key/value table behind /api/settings/kv.
type SettingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

// Get returns pgx.ErrNoRows for an unknown key.
func (r *SettingsRepo) Get(ctx context.Context, key string) (*models.Setting, error) {
	var s models.Setting
	err := r.pool.QueryRow(ctx, `SELECT key, value, updated_at FROM settings WHERE key = $1`, key).
		Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SettingsRepo) Put(ctx context.Context, key, value string) (*models.Setting, error) {
	s := models.Setting{Key: key, Value: value}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		RETURNING updated_at
	`, key, value).Scan(&s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
