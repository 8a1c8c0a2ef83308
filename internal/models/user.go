package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// PlatformUserID owns platform_fee ledger entries. Seeded by the initial migration.
var PlatformUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type User struct {
	ID               uuid.UUID       `json:"id"`
	TelegramID       int64           `json:"telegram_id"`
	TelegramUsername string          `json:"telegram_username,omitempty"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name,omitempty"`
	AvatarURL        string          `json:"avatar_url,omitempty"`
	Bio              string          `json:"bio,omitempty"`
	Skills           []string        `json:"skills"`
	Role             string          `json:"role"`
	PasswordHash     string          `json:"-"`
	IsActive         bool            `json:"is_active"`
	IsBanned         bool            `json:"is_banned"`
	Balance          decimal.Decimal `json:"balance"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	Rating           decimal.Decimal `json:"rating"`
	TotalReviews     int             `json:"total_reviews"`
	CompletedOrders  int             `json:"completed_orders"`
	CancelledOrders  int             `json:"cancelled_orders"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PublicProfile is what other users see.
type PublicProfile struct {
	ID               uuid.UUID       `json:"id"`
	TelegramUsername string          `json:"telegram_username,omitempty"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name,omitempty"`
	AvatarURL        string          `json:"avatar_url,omitempty"`
	Bio              string          `json:"bio,omitempty"`
	Skills           []string        `json:"skills"`
	Rating           decimal.Decimal `json:"rating"`
	TotalReviews     int             `json:"total_reviews"`
	CompletedOrders  int             `json:"completed_orders"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:               u.ID,
		TelegramUsername: u.TelegramUsername,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		AvatarURL:        u.AvatarURL,
		Bio:              u.Bio,
		Skills:           u.Skills,
		Rating:           u.Rating,
		TotalReviews:     u.TotalReviews,
		CompletedOrders:  u.CompletedOrders,
		CreatedAt:        u.CreatedAt,
	}
}
