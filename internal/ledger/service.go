package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tgwork/backend/internal/models"
)

// ErrEscrowNotPending is returned when an order's escrow entry was already settled (or never opened).
var ErrEscrowNotPending = errors.New("escrow entry is not pending")

type Service interface {
	OpenEscrow(ctx context.Context, tx pgx.Tx, order *models.Order) error
	CaptureEscrow(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error
	VoidEscrow(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error
	Record(ctx context.Context, tx pgx.Tx, entry Entry) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Transaction, error)
}

// Entry describes a completed ledger movement.
type Entry struct {
	UserID      uuid.UUID
	OrderID     *uuid.UUID
	Type        string
	Amount      decimal.Decimal
	Description string
	Reference   string
}

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	Append(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	SettleEscrow(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status string) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Transaction, error)
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

var _ Service = (*service)(nil)
var _ Store = (*Repository)(nil)

// OpenEscrow records the pending buyer escrow for a freshly created order.
func (s *service) OpenEscrow(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	orderID := order.ID
	return s.store.Append(ctx, tx, &models.Transaction{
		ID:          uuid.New(),
		UserID:      order.BuyerID,
		OrderID:     &orderID,
		Type:        models.TxTypeEscrow,
		Status:      models.TxStatusPending,
		Amount:      order.Price,
		Description: "Escrow for order: " + order.Title,
	})
}

func (s *service) CaptureEscrow(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	return s.settle(ctx, tx, orderID, models.TxStatusCompleted)
}

func (s *service) VoidEscrow(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	return s.settle(ctx, tx, orderID, models.TxStatusFailed)
}

func (s *service) settle(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status string) error {
	ok, err := s.store.SettleEscrow(ctx, tx, orderID, status)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEscrowNotPending
	}
	return nil
}

func (s *service) Record(ctx context.Context, tx pgx.Tx, e Entry) (*models.Transaction, error) {
	if !e.Amount.IsPositive() {
		return nil, errors.New("ledger amount must be positive")
	}
	t := &models.Transaction{
		ID:          uuid.New(),
		UserID:      e.UserID,
		OrderID:     e.OrderID,
		Type:        e.Type,
		Status:      models.TxStatusCompleted,
		Amount:      e.Amount,
		Description: e.Description,
		Reference:   e.Reference,
	}
	if err := s.store.Append(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	return s.store.ListByUser(ctx, userID, limit, offset)
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Transaction, error) {
	return s.store.ListByOrder(ctx, orderID)
}
