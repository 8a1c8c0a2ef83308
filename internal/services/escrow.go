package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tgwork/backend/internal/ledger"
	"github.com/tgwork/backend/internal/models"
)

// EscrowService moves order money between user balances and writes the matching ledger entries.
// Every method runs inside the caller's transaction.
type EscrowService struct {
	Users  EscrowUserRepo
	Ledger EscrowLedger
}

// EscrowUserRepo is the minimal user repository interface for escrow.
type EscrowUserRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	Debit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	CreditEarnings(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	RefundSpend(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
}

// EscrowLedger is the subset of ledger.Service used for escrow.
type EscrowLedger interface {
	CaptureEscrow(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error
	Record(ctx context.Context, tx pgx.Tx, e ledger.Entry) (*models.Transaction, error)
}

func NewEscrowService(users EscrowUserRepo, l EscrowLedger) *EscrowService {
	return &EscrowService{Users: users, Ledger: l}
}

// HoldPayment locks the buyer, debits the order price and captures the pending escrow entry.
func (s *EscrowService) HoldPayment(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	buyer, err := s.Users.GetByIDForUpdate(ctx, tx, order.BuyerID)
	if err != nil {
		return err
	}
	if buyer.Balance.LessThan(order.Price) {
		return fmt.Errorf("%w: balance %s, price %s", ErrInsufficientFunds, buyer.Balance.StringFixed(2), order.Price.StringFixed(2))
	}
	if _, err := s.Users.Debit(ctx, tx, order.BuyerID, order.Price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientFunds
		}
		return err
	}
	if err := s.Ledger.CaptureEscrow(ctx, tx, order.ID); err != nil {
		if errors.Is(err, ledger.ErrEscrowNotPending) {
			return ErrAlreadyPaid
		}
		return err
	}
	return nil
}

// Release pays seller_gets to the seller and the fee to the platform account.
// Seller and platform rows are locked in UUID order so concurrent releases cannot deadlock.
func (s *EscrowService) Release(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	ids := []uuid.UUID{order.SellerID, models.PlatformUserID}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, err := s.Users.GetByIDForUpdate(ctx, tx, id); err != nil {
			return err
		}
	}

	orderID := order.ID
	if order.SellerGets.IsPositive() {
		if _, err := s.Users.CreditEarnings(ctx, tx, order.SellerID, order.SellerGets); err != nil {
			return err
		}
		if _, err := s.Ledger.Record(ctx, tx, ledger.Entry{
			UserID: order.SellerID, OrderID: &orderID, Type: models.TxTypeRelease,
			Amount: order.SellerGets, Description: "Payment for order: " + order.Title,
		}); err != nil {
			return err
		}
	}

	if order.PlatformFee.IsPositive() {
		if _, err := s.Users.Credit(ctx, tx, models.PlatformUserID, order.PlatformFee); err != nil {
			return err
		}
		if _, err := s.Ledger.Record(ctx, tx, ledger.Entry{
			UserID: models.PlatformUserID, OrderID: &orderID, Type: models.TxTypePlatformFee,
			Amount: order.PlatformFee, Description: "Platform fee for order: " + order.Title,
		}); err != nil {
			return err
		}
	}
	return nil
}

// RefundBuyer returns the full price of a disputed order to the buyer.
func (s *EscrowService) RefundBuyer(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	if _, err := s.Users.GetByIDForUpdate(ctx, tx, order.BuyerID); err != nil {
		return err
	}
	if _, err := s.Users.RefundSpend(ctx, tx, order.BuyerID, order.Price); err != nil {
		return err
	}
	orderID := order.ID
	_, err := s.Ledger.Record(ctx, tx, ledger.Entry{
		UserID: order.BuyerID, OrderID: &orderID, Type: models.TxTypeDisputeRefund,
		Amount: order.Price, Description: "Dispute refund for order: " + order.Title,
	})
	return err
}

// TopUp credits a user's balance and records a top_up entry.
func (s *EscrowService) TopUp(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, reference string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if _, err := s.Users.GetByIDForUpdate(ctx, tx, userID); err != nil {
		return decimal.Zero, err
	}
	balance, err := s.Users.Credit(ctx, tx, userID, amount)
	if err != nil {
		return decimal.Zero, err
	}
	_, err = s.Ledger.Record(ctx, tx, ledger.Entry{
		UserID: userID, Type: models.TxTypeTopUp, Amount: amount,
		Description: "Balance top-up", Reference: reference,
	})
	return balance, err
}
