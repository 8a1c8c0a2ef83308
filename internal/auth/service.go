package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/tgwork/backend/internal/models"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

var (
	// ErrDuplicateTelegramID is returned when registering a telegram_id that already exists.
	ErrDuplicateTelegramID = errors.New("telegram account already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrBanned              = errors.New("user is banned")
	// ErrDisabled is returned by secret-based flows whose secret is not configured.
	ErrDisabled = errors.New("disabled")
)

// UserStore is implemented by *repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error)
}

// Options configures the secret-based flows. Zero values disable them.
type Options struct {
	AdminTelegramIDs []int64
	BootstrapSecret  string
	BotSecret        string
}

type RegisterInput struct {
	TelegramID       int64  `json:"telegram_id"`
	TelegramUsername string `json:"telegram_username"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Password         string `json:"password"`
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, string, error)
	Login(ctx context.Context, telegramID int64, password string) (*models.User, string, error)
	BotLogin(ctx context.Context, telegramID int64, botSecret string) (*models.User, string, error)
	BootstrapAdmin(ctx context.Context, telegramID int64, secret string) (*models.User, string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
}

type service struct {
	users     UserStore
	secret    []byte
	admins    map[int64]bool
	bootstrap string
	bot       string
	now       func() time.Time
}

func NewService(users UserStore, secret string, opts Options) *service {
	admins := make(map[int64]bool, len(opts.AdminTelegramIDs))
	for _, id := range opts.AdminTelegramIDs {
		admins[id] = true
	}
	return &service{
		users:     users,
		secret:    []byte(secret),
		admins:    admins,
		bootstrap: opts.BootstrapSecret,
		bot:       opts.BotSecret,
		now:       time.Now,
	}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Register creates a user, an admin when the telegram id is listed in Options.AdminTelegramIDs.
// The password is optional; passwordless accounts get later tokens through BotLogin.
func (s *service) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	u := &models.User{
		ID:               uuid.New(),
		TelegramID:       in.TelegramID,
		TelegramUsername: strings.TrimPrefix(strings.TrimSpace(in.TelegramUsername), "@"),
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		Role:             models.RoleUser,
	}
	if s.admins[in.TelegramID] {
		u.Role = models.RoleAdmin
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", err
		}
		u.PasswordHash = string(hash)
	}
	if err := s.users.Create(ctx, u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, "", ErrDuplicateTelegramID
		}
		return nil, "", err
	}
	token, err := s.issueToken(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *service) Login(ctx context.Context, telegramID int64, password string) (*models.User, string, error) {
	u, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if u.PasswordHash == "" {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	return s.signIn(ctx, u)
}

// BotLogin issues a token to an existing account on behalf of the Telegram bot, which proves itself
// with the shared bot secret.
func (s *service) BotLogin(ctx context.Context, telegramID int64, botSecret string) (*models.User, string, error) {
	if s.bot == "" {
		return nil, "", ErrDisabled
	}
	if !secretsEqual(botSecret, s.bot) {
		return nil, "", ErrInvalidCredentials
	}
	u, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	return s.signIn(ctx, u)
}

// BootstrapAdmin promotes a registered account to admin when the bootstrap secret matches.
func (s *service) BootstrapAdmin(ctx context.Context, telegramID int64, secret string) (*models.User, string, error) {
	if s.bootstrap == "" {
		return nil, "", ErrDisabled
	}
	if !secretsEqual(secret, s.bootstrap) {
		return nil, "", ErrInvalidCredentials
	}
	u, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if u.IsBanned || !u.IsActive {
		return nil, "", ErrBanned
	}
	if u.Role != models.RoleAdmin {
		if u, err = s.users.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
			return nil, "", err
		}
	}
	token, err := s.issueToken(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// signIn checks the account state, applies the configured admin list and issues a token.
func (s *service) signIn(ctx context.Context, u *models.User) (*models.User, string, error) {
	if u.IsBanned || !u.IsActive {
		return nil, "", ErrBanned
	}
	if s.admins[u.TelegramID] && u.Role != models.RoleAdmin {
		promoted, err := s.users.SetRole(ctx, u.ID, models.RoleAdmin)
		if err != nil {
			return nil, "", err
		}
		u = promoted
	}
	token, err := s.issueToken(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func secretsEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (s *service) issueToken(userID uuid.UUID, role string) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(_ context.Context, token string) (uuid.UUID, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, "", err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid subject: %w", err)
	}
	return id, c.Role, nil
}
