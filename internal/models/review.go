package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is the buyer's rating of a completed order.
type Review struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	ReviewerID     uuid.UUID `json:"reviewer_id"`
	ReviewedUserID uuid.UUID `json:"reviewed_user_id"`
	Rating         int       `json:"rating"`
	Text           string    `json:"text,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
