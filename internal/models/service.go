package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service (offer) lifecycle.
const (
	ServiceStatusPending  = "pending"
	ServiceStatusActive   = "active"
	ServiceStatusRejected = "rejected"
	ServiceStatusHidden   = "hidden"
)

type Service struct {
	ID            uuid.UUID       `json:"id"`
	SellerID      uuid.UUID       `json:"seller_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Tags          []string        `json:"tags"`
	Price         decimal.Decimal `json:"price"`
	ExecutionDays int             `json:"execution_days"`
	RevisionCount int             `json:"revision_count"`
	PreviewURL    string          `json:"preview_url,omitempty"`
	Status        string          `json:"status"`
	TotalOrders   int             `json:"total_orders"`
	AverageRating decimal.Decimal `json:"average_rating"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
