package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tgwork/backend/internal/ledger"
	"github.com/tgwork/backend/internal/models"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore is the order persistence used by OrderService.
type OrderStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error)
	MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from []string, to string) (bool, error)
	UpdateNotes(ctx context.Context, tx pgx.Tx, id uuid.UUID, sellerResult, buyerComment string) error
	ListByUser(ctx context.Context, userID uuid.UUID, role, status string, limit, offset int) ([]*models.Order, error)
}

// OrderCatalog resolves the offer an order is placed against.
type OrderCatalog interface {
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Service, error)
	IncrementOrders(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type OrderUsers interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	IncrementCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type OrderLedger interface {
	OpenEscrow(ctx context.Context, tx pgx.Tx, order *models.Order) error
	VoidEscrow(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error
}

type OrderEscrow interface {
	HoldPayment(ctx context.Context, tx pgx.Tx, order *models.Order) error
	Release(ctx context.Context, tx pgx.Tx, order *models.Order) error
	RefundBuyer(ctx context.Context, tx pgx.Tx, order *models.Order) error
}

// OrderService runs the order state machine. Each operation is one DB transaction:
// the order row is locked first, guards are checked, then status changes go through
// conditional updates so a concurrent duplicate fails instead of applying twice.
type OrderService struct {
	Pool       TxBeginner
	Orders     OrderStore
	Catalog    OrderCatalog
	Users      OrderUsers
	Ledger     OrderLedger
	Escrow     OrderEscrow
	FeePercent decimal.Decimal
	Now        func() time.Time
	Logger     *slog.Logger
}

type CreateOrderInput struct {
	ServiceID    uuid.UUID
	Description  string
	BuyerComment string
}

type UpdateOrderInput struct {
	Status       string
	SellerResult string
	BuyerComment string
}

// Dispute outcomes for ResolveDispute.
const (
	DisputeRefund  = "refund"
	DisputeRelease = "release"
)

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *OrderService) logger() *slog.Logger { return loggerOrDefault(s.Logger) }

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// Create places an order for an active service and opens a pending escrow entry.
// The fee split is frozen on the order row.
func (s *OrderService) Create(ctx context.Context, buyerID uuid.UUID, in CreateOrderInput) (*models.Order, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	svc, err := s.Catalog.GetByIDTx(ctx, tx, in.ServiceID)
	if err != nil {
		return nil, notFound(err, "service not found")
	}
	if svc.Status != models.ServiceStatusActive {
		return nil, ErrServiceUnavailable
	}
	buyer, err := s.Users.GetByID(ctx, buyerID)
	if err != nil {
		return nil, notFound(err, "buyer not found")
	}
	if buyer.IsBanned {
		return nil, ErrBanned
	}
	if buyer.ID == svc.SellerID {
		return nil, ErrSelfOrder
	}

	percent := s.FeePercent
	if percent.IsZero() {
		percent = DefaultFeePercent
	}
	fee, sellerGets := SplitFee(svc.Price, percent)
	now := s.now()
	order := &models.Order{
		ID:                 uuid.New(),
		BuyerID:            buyer.ID,
		SellerID:           svc.SellerID,
		ServiceID:          svc.ID,
		Title:              svc.Title,
		Description:        in.Description,
		Price:              svc.Price,
		PlatformFeePercent: percent,
		PlatformFee:        fee,
		SellerGets:         sellerGets,
		Status:             models.OrderStatusWaitingPayment,
		Deadline:           now.AddDate(0, 0, svc.ExecutionDays),
		RevisionsAllowed:   svc.RevisionCount,
		BuyerComment:       in.BuyerComment,
	}
	if err := s.Orders.CreateTx(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := s.Ledger.OpenEscrow(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.logger().Info("order created", "order_id", order.ID, "service_id", svc.ID, "price", order.Price.StringFixed(2))
	return order, nil
}

// Pay debits the buyer and moves the order to in_progress.
func (s *OrderService) Pay(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.Orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	if order.BuyerID != userID {
		return nil, fmt.Errorf("%w: only the buyer can pay", ErrForbidden)
	}
	if order.IsPaid {
		return nil, ErrAlreadyPaid
	}
	if order.Status != models.OrderStatusWaitingPayment {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	}
	if err := s.Escrow.HoldPayment(ctx, tx, order); err != nil {
		return nil, err
	}
	ok, err := s.Orders.MarkPaid(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order was paid concurrently", ErrAlreadyPaid)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	paidAt := s.now()
	order.IsPaid = true
	order.PaymentDate = &paidAt
	order.Status = models.OrderStatusInProgress
	s.logger().Info("order paid", "order_id", order.ID, "buyer_id", userID)
	return order, nil
}

// Update applies a participant's status change and notes. Completion releases escrow.
func (s *OrderService) Update(ctx context.Context, userID, orderID uuid.UUID, in UpdateOrderInput) (*models.Order, error) {
	if in.Status == models.OrderStatusCancelled {
		return s.Cancel(ctx, userID, orderID)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.Orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	if !order.IsParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this order", ErrForbidden)
	}
	if in.SellerResult != "" && userID != order.SellerID {
		return nil, fmt.Errorf("%w: only the seller can submit a result", ErrForbidden)
	}
	if in.BuyerComment != "" && userID != order.BuyerID {
		return nil, fmt.Errorf("%w: only the buyer can comment", ErrForbidden)
	}

	if in.Status != "" {
		if err := s.transition(ctx, tx, order, userID, in.Status); err != nil {
			return nil, err
		}
	}
	if in.SellerResult != "" || in.BuyerComment != "" {
		if err := s.Orders.UpdateNotes(ctx, tx, order.ID, in.SellerResult, in.BuyerComment); err != nil {
			return nil, err
		}
		if in.SellerResult != "" {
			order.SellerResult = in.SellerResult
		}
		if in.BuyerComment != "" {
			order.BuyerComment = in.BuyerComment
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) transition(ctx context.Context, tx pgx.Tx, order *models.Order, userID uuid.UUID, to string) error {
	var from []string
	switch to {
	case models.OrderStatusUnderReview:
		if userID != order.SellerID {
			return fmt.Errorf("%w: only the seller can submit work for review", ErrForbidden)
		}
		from = []string{models.OrderStatusInProgress}
	case models.OrderStatusCompleted:
		if userID != order.BuyerID {
			return fmt.Errorf("%w: only the buyer can accept the work", ErrForbidden)
		}
		if !order.IsPaid {
			return fmt.Errorf("%w: order is not paid", ErrInvalidTransition)
		}
		from = []string{models.OrderStatusInProgress, models.OrderStatusUnderReview}
	case models.OrderStatusDispute:
		from = []string{models.OrderStatusInProgress, models.OrderStatusUnderReview}
	default:
		return fmt.Errorf("%w: cannot set status %q", ErrInvalidTransition, to)
	}
	if !slices.Contains(from, order.Status) {
		return fmt.Errorf("%w: cannot move order from %s to %s", ErrInvalidTransition, order.Status, to)
	}

	if to == models.OrderStatusCompleted {
		return s.complete(ctx, tx, order, from)
	}
	ok, err := s.Orders.Transition(ctx, tx, order.ID, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	order.Status = to
	s.logger().Info("order status changed", "order_id", order.ID, "status", to)
	return nil
}

// complete flips the order to completed exactly once and releases escrow to the seller.
func (s *OrderService) complete(ctx context.Context, tx pgx.Tx, order *models.Order, from []string) error {
	ok, err := s.Orders.Transition(ctx, tx, order.ID, from, models.OrderStatusCompleted)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order was completed concurrently", ErrInvalidTransition)
	}
	if err := s.Escrow.Release(ctx, tx, order); err != nil {
		return err
	}
	if err := s.Catalog.IncrementOrders(ctx, tx, order.ServiceID); err != nil {
		return err
	}
	completedAt := s.now()
	order.Status = models.OrderStatusCompleted
	order.CompletedAt = &completedAt
	s.logger().Info("order completed", "order_id", order.ID, "seller_gets", order.SellerGets.StringFixed(2))
	return nil
}

// Cancel cancels an unpaid order. Paid orders go through a dispute instead.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.Orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	if !order.IsParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this order", ErrForbidden)
	}
	if order.IsPaid {
		return nil, fmt.Errorf("%w: paid orders cannot be cancelled, open a dispute instead", ErrAlreadyPaid)
	}
	ok, err := s.Orders.Transition(ctx, tx, order.ID, []string{models.OrderStatusWaitingPayment}, models.OrderStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot cancel order in status %s", ErrInvalidTransition, order.Status)
	}
	if err := s.Ledger.VoidEscrow(ctx, tx, order.ID); err != nil && !errors.Is(err, ledger.ErrEscrowNotPending) {
		return nil, err
	}
	if err := s.Users.IncrementCancelled(ctx, tx, userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	cancelledAt := s.now()
	order.Status = models.OrderStatusCancelled
	order.CancelledAt = &cancelledAt
	s.logger().Info("order cancelled", "order_id", order.ID, "by", userID)
	return order, nil
}

// ResolveDispute settles a disputed order: refund the buyer (order cancelled) or release to the seller.
func (s *OrderService) ResolveDispute(ctx context.Context, orderID uuid.UUID, outcome string) (*models.Order, error) {
	if outcome != DisputeRefund && outcome != DisputeRelease {
		return nil, fmt.Errorf("%w: outcome must be refund or release", ErrValidation)
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.Orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	if order.Status != models.OrderStatusDispute {
		return nil, fmt.Errorf("%w: order is not in dispute", ErrInvalidTransition)
	}
	from := []string{models.OrderStatusDispute}

	if outcome == DisputeRelease {
		if err := s.complete(ctx, tx, order, from); err != nil {
			return nil, err
		}
	} else {
		ok, err := s.Orders.Transition(ctx, tx, order.ID, from, models.OrderStatusCancelled)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrConflict
		}
		if err := s.Escrow.RefundBuyer(ctx, tx, order); err != nil {
			return nil, err
		}
		cancelledAt := s.now()
		order.Status = models.OrderStatusCancelled
		order.CancelledAt = &cancelledAt
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.logger().Info("dispute resolved", "order_id", order.ID, "outcome", outcome)
	return order, nil
}

// Get returns the order if userID takes part in it (admins see every order).
func (s *OrderService) Get(ctx context.Context, userID, orderID uuid.UUID, admin bool) (*models.Order, error) {
	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	if !admin && !order.IsParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this order", ErrForbidden)
	}
	return order, nil
}

func (s *OrderService) List(ctx context.Context, userID uuid.UUID, role, status string, limit, offset int) ([]*models.Order, error) {
	if role != "" && role != "buyer" && role != "seller" {
		return nil, fmt.Errorf("%w: role must be buyer or seller", ErrValidation)
	}
	return s.Orders.ListByUser(ctx, userID, role, status, limit, offset)
}

// notFound converts pgx.ErrNoRows into ErrNotFound and passes other errors through.
func notFound(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return err
}
