// Package dashboard serves the account side of the marketplace: profiles,
// balance top-ups, the transaction history and admin bans.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tgwork/backend/internal/middleware"
	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/respond"
	"github.com/tgwork/backend/internal/services"
)

// UserStore is implemented by *repository.UserRepo.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, u *models.User) error
	SetBanned(ctx context.Context, id uuid.UUID, banned bool) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Search(ctx context.Context, q string, limit int) ([]*models.User, error)
}

type TopUpper interface {
	TopUp(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, reference string) (decimal.Decimal, error)
}

type History interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error)
}

type Handler struct {
	pool    services.TxBeginner
	users   UserStore
	escrow  TopUpper
	history History
	log     *slog.Logger
}

func NewHandler(pool services.TxBeginner, users UserStore, escrow TopUpper, history History, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{pool: pool, users: users, escrow: escrow, history: history, log: log}
}

func userNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: user not found", services.ErrNotFound)
	}
	return err
}

// GET /api/v1/users/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(r.Context(), middleware.UserIDFromCtx(r.Context()))
	if err != nil {
		respond.Fail(w, h.log, userNotFound(err))
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

type profileRequest struct {
	FirstName *string  `json:"first_name"`
	LastName  *string  `json:"last_name"`
	Bio       *string  `json:"bio"`
	Skills    []string `json:"skills"`
	AvatarURL *string  `json:"avatar_url"`
}

// PATCH /api/v1/users/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var body profileRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, err := h.users.GetByID(r.Context(), middleware.UserIDFromCtx(r.Context()))
	if err != nil {
		respond.Fail(w, h.log, userNotFound(err))
		return
	}
	if body.FirstName != nil {
		u.FirstName = strings.TrimSpace(*body.FirstName)
	}
	if body.LastName != nil {
		u.LastName = strings.TrimSpace(*body.LastName)
	}
	if body.Bio != nil {
		u.Bio = *body.Bio
	}
	if body.Skills != nil {
		u.Skills = body.Skills
	}
	if body.AvatarURL != nil {
		u.AvatarURL = *body.AvatarURL
	}
	if err := h.users.UpdateProfile(r.Context(), u); err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

// GET /api/v1/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		respond.Fail(w, h.log, userNotFound(err))
		return
	}
	respond.JSON(w, http.StatusOK, u.Public())
}

// GET /api/v1/users/by-telegram/{telegram_id}
func (h *Handler) GetByTelegram(w http.ResponseWriter, r *http.Request) {
	tgID, err := strconv.ParseInt(r.PathValue("telegram_id"), 10, 64)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid telegram_id")
		return
	}
	u, err := h.users.GetByTelegramID(r.Context(), tgID)
	if err != nil {
		respond.Fail(w, h.log, userNotFound(err))
		return
	}
	respond.JSON(w, http.StatusOK, u.Public())
}

func publicList(users []*models.User) []models.PublicProfile {
	out := make([]models.PublicProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

// GET /api/v1/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(),
		respond.IntQuery(r, "limit", 20, 1, 100), respond.IntQuery(r, "offset", 0, 0, 1<<20))
	if err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, publicList(users))
}

// GET /api/v1/users/search?q=
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(q)) < 2 {
		respond.Error(w, http.StatusBadRequest, "query must be at least 2 characters")
		return
	}
	users, err := h.users.Search(r.Context(), q, respond.IntQuery(r, "limit", 20, 1, 100))
	if err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, publicList(users))
}

type topUpRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type topUpResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// POST /api/v1/admin/users/{id}/top-up credits a user's balance, for example after an offline payment.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	var body topUpRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Reference == "" {
		body.Reference = "topup-" + uuid.NewString()
	}
	ctx := r.Context()

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	defer tx.Rollback(ctx)

	balance, err := h.escrow.TopUp(ctx, tx, userID, body.Amount.Round(2), body.Reference)
	if err != nil {
		respond.Fail(w, h.log, userNotFound(err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	h.log.Info("balance topped up", "user_id", userID, "amount", body.Amount.StringFixed(2),
		"reference", body.Reference, "by", middleware.UserIDFromCtx(ctx))
	respond.JSON(w, http.StatusOK, topUpResponse{Balance: balance})
}

// GET /api/v1/users/me/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	list, err := h.history.ListByUser(r.Context(), middleware.UserIDFromCtx(r.Context()),
		respond.IntQuery(r, "limit", 50, 1, 200), respond.IntQuery(r, "offset", 0, 0, 1<<20))
	if err != nil {
		respond.Fail(w, h.log, err)
		return
	}
	if list == nil {
		list = []*models.Transaction{}
	}
	respond.JSON(w, http.StatusOK, list)
}

// POST /api/v1/admin/users/{id}/ban
func (h *Handler) Ban(w http.ResponseWriter, r *http.Request) { h.setBanned(w, r, true) }

// POST /api/v1/admin/users/{id}/unban
func (h *Handler) Unban(w http.ResponseWriter, r *http.Request) { h.setBanned(w, r, false) }

func (h *Handler) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	id, ok := respond.PathID(w, r, "id")
	if !ok {
		return
	}
	if id == models.PlatformUserID {
		respond.Error(w, http.StatusBadRequest, "the platform account cannot be banned")
		return
	}
	u, err := h.users.SetBanned(r.Context(), id, banned)
	if err != nil {
		respond.Fail(w, h.log, userNotFound(err))
		return
	}
	h.log.Info("user ban changed", "user_id", id, "banned", banned, "by", middleware.UserIDFromCtx(r.Context()))
	respond.JSON(w, http.StatusOK, u)
}
