package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/respond"
)

type LoginRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Password   string `json:"password"`
}

// SecretLoginRequest is the body of the bot login and admin bootstrap endpoints.
type SecretLoginRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Secret     string `json:"secret"`
}

type TokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Register handles POST /api/v1/auth/register. The body is schema-checked upstream.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, token, err := h.svc.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrDuplicateTelegramID) {
			respond.Error(w, http.StatusConflict, err.Error())
			return
		}
		h.log.Error("register failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "registration failed")
		return
	}
	h.log.Info("user registered", "user_id", u.ID, "telegram_id", u.TelegramID)
	respond.JSON(w, http.StatusCreated, TokenResponse{Token: token, User: u})
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, token, err := h.svc.Login(r.Context(), req.TelegramID, req.Password)
	h.writeToken(w, u, token, err, "login")
}

// BotLogin handles POST /api/v1/auth/bot.
func (h *Handler) BotLogin(w http.ResponseWriter, r *http.Request) {
	var req SecretLoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, token, err := h.svc.BotLogin(r.Context(), req.TelegramID, req.Secret)
	h.writeToken(w, u, token, err, "bot login")
}

// BootstrapAdmin handles POST /api/v1/auth/bootstrap-admin.
func (h *Handler) BootstrapAdmin(w http.ResponseWriter, r *http.Request) {
	var req SecretLoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, token, err := h.svc.BootstrapAdmin(r.Context(), req.TelegramID, req.Secret)
	if err == nil {
		h.log.Warn("user promoted to admin", "user_id", u.ID, "telegram_id", u.TelegramID)
	}
	h.writeToken(w, u, token, err, "admin bootstrap")
}

func (h *Handler) writeToken(w http.ResponseWriter, u *models.User, token string, err error, op string) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, ErrBanned):
		respond.Error(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, ErrDisabled):
		respond.Error(w, http.StatusForbidden, op+" disabled")
		return
	case err != nil:
		h.log.Error(op+" failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, op+" failed")
		return
	}
	respond.JSON(w, http.StatusOK, TokenResponse{Token: token, User: u})
}
