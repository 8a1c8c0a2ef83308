package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order status machine:
// waiting_payment -> in_progress -> under_review -> completed,
// waiting_payment -> cancelled, in_progress|under_review -> dispute.
const (
	OrderStatusWaitingPayment = "waiting_payment"
	OrderStatusInProgress     = "in_progress"
	OrderStatusUnderReview    = "under_review"
	OrderStatusCompleted      = "completed"
	OrderStatusCancelled      = "cancelled"
	OrderStatusDispute        = "dispute"
)

type Order struct {
	ID                 uuid.UUID       `json:"id"`
	BuyerID            uuid.UUID       `json:"buyer_id"`
	SellerID           uuid.UUID       `json:"seller_id"`
	ServiceID          uuid.UUID       `json:"service_id"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Price              decimal.Decimal `json:"price"`
	PlatformFeePercent decimal.Decimal `json:"platform_fee_percent"`
	PlatformFee        decimal.Decimal `json:"platform_fee"`
	SellerGets         decimal.Decimal `json:"seller_gets"`
	IsPaid             bool            `json:"is_paid"`
	PaymentDate        *time.Time      `json:"payment_date,omitempty"`
	Status             string          `json:"status"`
	Deadline           time.Time       `json:"deadline"`
	RevisionsUsed      int             `json:"revisions_used"`
	RevisionsAllowed   int             `json:"revisions_allowed"`
	BuyerComment       string          `json:"buyer_comment,omitempty"`
	SellerResult       string          `json:"seller_result,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
}

// IsParticipant reports whether userID is the buyer or the seller.
func (o *Order) IsParticipant(userID uuid.UUID) bool {
	return o.BuyerID == userID || o.SellerID == userID
}

// IsTerminal reports whether no further transition is possible.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}
