package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger entry types.
const (
	TxTypeEscrow        = "escrow"
	TxTypeRelease       = "release"
	TxTypeTopUp         = "top_up"
	TxTypeWithdrawal    = "withdrawal"
	TxTypeRefund        = "refund"
	TxTypeDisputeRefund = "dispute_refund"
	TxTypePlatformFee   = "platform_fee"
)

const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
	TxStatusRefunded  = "refunded"
)

// Transaction is an append-only ledger entry.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	OrderID     *uuid.UUID      `json:"order_id,omitempty"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}
