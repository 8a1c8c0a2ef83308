package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/tgwork/backend/internal/ledger"
	"github.com/tgwork/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory store shared by the repository mocks below.
// These let us test the real services without a database.
// ---------------------------------------------------------------------------

// recTx satisfies pgx.Tx and records whether it was committed.
type recTx struct {
	mu        sync.Mutex
	committed bool
}

func (t *recTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *recTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed = true
	return nil
}
func (t *recTx) Rollback(context.Context) error { return nil }
func (t *recTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *recTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *recTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *recTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *recTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *recTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *recTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *recTx) Conn() *pgx.Conn { return nil }

type mockPool struct {
	mu  sync.Mutex
	txs []*recTx
}

func (p *mockPool) Begin(context.Context) (pgx.Tx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx := &recTx{}
	p.txs = append(p.txs, tx)
	return tx, nil
}

func (p *mockPool) lastCommitted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.txs) == 0 {
		return false
	}
	last := p.txs[len(p.txs)-1]
	last.mu.Lock()
	defer last.mu.Unlock()
	return last.committed
}

type memDB struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	services map[uuid.UUID]*models.Service
	orders   map[uuid.UUID]*models.Order
	reviews  []*models.Review
	entries  []*models.Transaction
	messages map[uuid.UUID]*models.Message
}

func newMemDB() *memDB {
	db := &memDB{
		users:    make(map[uuid.UUID]*models.User),
		services: make(map[uuid.UUID]*models.Service),
		orders:   make(map[uuid.UUID]*models.Order),
		messages: make(map[uuid.UUID]*models.Message),
	}
	db.users[models.PlatformUserID] = &models.User{ID: models.PlatformUserID, Role: models.RoleAdmin}
	return db
}

func (db *memDB) addUser(balance int64) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := &models.User{ID: uuid.New(), Role: models.RoleUser, IsActive: true, Balance: decimal.NewFromInt(balance)}
	db.users[u.ID] = u
	cp := *u
	return &cp
}

func (db *memDB) addService(sellerID uuid.UUID, price int64, status string) *models.Service {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := &models.Service{
		ID: uuid.New(), SellerID: sellerID, Title: "Landing page design", Price: decimal.NewFromInt(price),
		ExecutionDays: 7, RevisionCount: 2, Status: status,
	}
	db.services[s.ID] = s
	cp := *s
	return &cp
}

func (db *memDB) user(id uuid.UUID) models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.users[id]
}

func (db *memDB) order(id uuid.UUID) models.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.orders[id]
}

func (db *memDB) entriesOfType(typ string) []models.Transaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Transaction
	for _, e := range db.entries {
		if e.Type == typ {
			out = append(out, *e)
		}
	}
	return out
}

// --- users ---

type mockUsers struct{ db *memDB }

func (m mockUsers) get(id uuid.UUID) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m mockUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) { return m.get(id) }
func (m mockUsers) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.User, error) {
	return m.get(id)
}

func (m mockUsers) mutate(id uuid.UUID, fn func(u *models.User) error) (decimal.Decimal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return decimal.Zero, pgx.ErrNoRows
	}
	if err := fn(u); err != nil {
		return decimal.Zero, err
	}
	return u.Balance, nil
}

func (m mockUsers) Debit(_ context.Context, _ pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return m.mutate(id, func(u *models.User) error {
		if u.Balance.LessThan(amount) {
			return pgx.ErrNoRows
		}
		u.Balance = u.Balance.Sub(amount)
		u.TotalSpent = u.TotalSpent.Add(amount)
		return nil
	})
}

func (m mockUsers) Credit(_ context.Context, _ pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return m.mutate(id, func(u *models.User) error {
		u.Balance = u.Balance.Add(amount)
		return nil
	})
}

func (m mockUsers) CreditEarnings(_ context.Context, _ pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return m.mutate(id, func(u *models.User) error {
		u.Balance = u.Balance.Add(amount)
		u.TotalEarned = u.TotalEarned.Add(amount)
		u.CompletedOrders++
		return nil
	})
}

func (m mockUsers) RefundSpend(_ context.Context, _ pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return m.mutate(id, func(u *models.User) error {
		u.Balance = u.Balance.Add(amount)
		u.TotalSpent = decimal.Max(u.TotalSpent.Sub(amount), decimal.Zero)
		return nil
	})
}

func (m mockUsers) IncrementCancelled(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	_, err := m.mutate(id, func(u *models.User) error {
		u.CancelledOrders++
		return nil
	})
	return err
}

func (m mockUsers) SetRating(_ context.Context, _ pgx.Tx, id uuid.UUID, rating decimal.Decimal, total int) error {
	_, err := m.mutate(id, func(u *models.User) error {
		u.Rating = rating
		u.TotalReviews = total
		return nil
	})
	return err
}

// --- services (offers) ---

type mockCatalog struct{ db *memDB }

func (m mockCatalog) GetByIDTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Service, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.services[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m mockCatalog) IncrementOrders(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.services[id].TotalOrders++
	return nil
}

func (m mockCatalog) SetAverageRating(_ context.Context, _ pgx.Tx, id uuid.UUID, rating decimal.Decimal) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.services[id].AverageRating = rating
	return nil
}

// --- orders ---

type mockOrders struct {
	db *memDB
	// stale, when set, is returned by GetByIDForUpdate instead of the stored row.
	stale *models.Order
}

func (m *mockOrders) CreateTx(_ context.Context, _ pgx.Tx, o *models.Order) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o.CreatedAt = time.Now()
	cp := *o
	m.db.orders[o.ID] = &cp
	return nil
}

func (m *mockOrders) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o, ok := m.db.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrders) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Order, error) {
	if m.stale != nil {
		cp := *m.stale
		return &cp, nil
	}
	return m.GetByID(ctx, id)
}

func (m *mockOrders) MarkPaid(_ context.Context, _ pgx.Tx, id uuid.UUID) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o := m.db.orders[id]
	if o.IsPaid || o.Status != models.OrderStatusWaitingPayment {
		return false, nil
	}
	now := time.Now()
	o.IsPaid, o.PaymentDate, o.Status = true, &now, models.OrderStatusInProgress
	return true, nil
}

func (m *mockOrders) Transition(_ context.Context, _ pgx.Tx, id uuid.UUID, from []string, to string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o := m.db.orders[id]
	if !slices.Contains(from, o.Status) {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (m *mockOrders) UpdateNotes(_ context.Context, _ pgx.Tx, id uuid.UUID, sellerResult, buyerComment string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o := m.db.orders[id]
	if sellerResult != "" {
		o.SellerResult = sellerResult
	}
	if buyerComment != "" {
		o.BuyerComment = buyerComment
	}
	return nil
}

func (m *mockOrders) ListByUser(_ context.Context, userID uuid.UUID, role, status string, _, _ int) ([]*models.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*models.Order
	for _, o := range m.db.orders {
		match := (role == "buyer" && o.BuyerID == userID) || (role == "seller" && o.SellerID == userID) ||
			(role == "" && o.IsParticipant(userID))
		if match && (status == "" || o.Status == status) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- ledger store (wrapped by the real ledger.Service) ---

type mockLedgerStore struct{ db *memDB }

func (m mockLedgerStore) Append(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	cp := *t
	m.db.entries = append(m.db.entries, &cp)
	return nil
}

func (m mockLedgerStore) SettleEscrow(_ context.Context, _ pgx.Tx, orderID uuid.UUID, status string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, e := range m.db.entries {
		if e.OrderID != nil && *e.OrderID == orderID && e.Type == models.TxTypeEscrow && e.Status == models.TxStatusPending {
			e.Status = status
			return true, nil
		}
	}
	return false, nil
}

func (m mockLedgerStore) ListByUser(context.Context, uuid.UUID, int, int) ([]*models.Transaction, error) {
	return nil, nil
}

func (m mockLedgerStore) ListByOrder(context.Context, uuid.UUID) ([]*models.Transaction, error) {
	return nil, nil
}

// --- reviews ---

type mockReviews struct{ db *memDB }

func (m mockReviews) CreateTx(_ context.Context, _ pgx.Tx, rv *models.Review) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.reviews {
		if existing.OrderID == rv.OrderID {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	cp := *rv
	m.db.reviews = append(m.db.reviews, &cp)
	return nil
}

func (m mockReviews) ExistsForOrderTx(_ context.Context, _ pgx.Tx, orderID uuid.UUID) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, rv := range m.db.reviews {
		if rv.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (m mockReviews) RatingsForUserTx(_ context.Context, _ pgx.Tx, userID uuid.UUID) ([]int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []int
	for _, rv := range m.db.reviews {
		if rv.ReviewedUserID == userID {
			out = append(out, rv.Rating)
		}
	}
	return out, nil
}

func (m mockReviews) RatingsForServiceTx(_ context.Context, _ pgx.Tx, serviceID uuid.UUID) ([]int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []int
	for _, rv := range m.db.reviews {
		if o, ok := m.db.orders[rv.OrderID]; ok && o.ServiceID == serviceID {
			out = append(out, rv.Rating)
		}
	}
	return out, nil
}

func (m mockReviews) GetByOrderID(_ context.Context, orderID uuid.UUID) (*models.Review, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, rv := range m.db.reviews {
		if rv.OrderID == orderID {
			cp := *rv
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m mockReviews) ListByReviewedUser(context.Context, uuid.UUID, int) ([]*models.Review, error) {
	return nil, nil
}

func (m mockReviews) ListByRating(context.Context, int, int) ([]*models.Review, error) {
	return nil, nil
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

type harness struct {
	db      *memDB
	pool    *mockPool
	orders  *mockOrders
	escrow  *EscrowService
	svc     *OrderService
	reviews *ReviewService
}

func newHarness() *harness {
	db := newMemDB()
	pool := &mockPool{}
	orders := &mockOrders{db: db}
	l := ledger.NewService(mockLedgerStore{db: db})
	escrow := NewEscrowService(mockUsers{db: db}, l)
	return &harness{
		db:     db,
		pool:   pool,
		orders: orders,
		escrow: escrow,
		svc: &OrderService{
			Pool:       pool,
			Orders:     orders,
			Catalog:    mockCatalog{db: db},
			Users:      mockUsers{db: db},
			Ledger:     l,
			Escrow:     escrow,
			FeePercent: DefaultFeePercent,
		},
		reviews: &ReviewService{
			Pool:    pool,
			Orders:  orders,
			Reviews: mockReviews{db: db},
			Users:   mockUsers{db: db},
			Catalog: mockCatalog{db: db},
		},
	}
}
