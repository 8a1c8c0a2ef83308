// Package catalog manages the services (offers) sellers publish.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/services"
)

const (
	defaultExecutionDays = 7
	defaultRevisionCount = 2
	minSearchLen         = 2
)

// Store is implemented by *repository.ServiceRepo.
type Store interface {
	Create(ctx context.Context, s *models.Service) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
	Update(ctx context.Context, s *models.Service) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Service, error)
	ListActive(ctx context.Context, category string, limit, offset int) ([]*models.Service, error)
	Search(ctx context.Context, q string, limit int) ([]*models.Service, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, includeHidden bool) ([]*models.Service, error)
}

type Sellers interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type CreateInput struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Tags          []string        `json:"tags"`
	Price         decimal.Decimal `json:"price"`
	ExecutionDays int             `json:"execution_days"`
	RevisionCount *int            `json:"revision_count"`
	PreviewURL    string          `json:"preview_url"`
}

// UpdateInput carries only the fields present in a PATCH body.
type UpdateInput struct {
	Title         *string          `json:"title"`
	Description   *string          `json:"description"`
	Category      *string          `json:"category"`
	Tags          []string         `json:"tags"`
	Price         *decimal.Decimal `json:"price"`
	ExecutionDays *int             `json:"execution_days"`
	RevisionCount *int             `json:"revision_count"`
	PreviewURL    *string          `json:"preview_url"`
}

type Service struct {
	store   Store
	sellers Sellers
	log     *slog.Logger
}

func NewService(store Store, sellers Sellers, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, sellers: sellers, log: log}
}

// normalizeTags lowercases and dedups tags so search is case-insensitive.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: service not found", services.ErrNotFound)
	}
	return err
}

// Create publishes a new offer in pending status; it becomes visible after moderation.
func (s *Service) Create(ctx context.Context, sellerID uuid.UUID, in CreateInput) (*models.Service, error) {
	seller, err := s.sellers.GetByID(ctx, sellerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: seller not found", services.ErrNotFound)
		}
		return nil, err
	}
	if seller.IsBanned {
		return nil, services.ErrBanned
	}
	if !in.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", services.ErrValidation)
	}
	svc := &models.Service{
		ID:            uuid.New(),
		SellerID:      sellerID,
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		Category:      strings.TrimSpace(in.Category),
		Tags:          normalizeTags(in.Tags),
		Price:         in.Price.Round(2),
		ExecutionDays: in.ExecutionDays,
		RevisionCount: defaultRevisionCount,
		PreviewURL:    in.PreviewURL,
		Status:        models.ServiceStatusPending,
	}
	if svc.ExecutionDays == 0 {
		svc.ExecutionDays = defaultExecutionDays
	}
	if in.RevisionCount != nil {
		svc.RevisionCount = *in.RevisionCount
	}
	if err := s.store.Create(ctx, svc); err != nil {
		return nil, err
	}
	s.log.Info("service created", "service_id", svc.ID, "seller_id", sellerID)
	return svc, nil
}

// Get hides non-active offers from everyone but the owner and admins.
func (s *Service) Get(ctx context.Context, viewerID, id uuid.UUID, admin bool) (*models.Service, error) {
	svc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if svc.Status != models.ServiceStatusActive && svc.SellerID != viewerID && !admin {
		return nil, fmt.Errorf("%w: service is not available", services.ErrForbidden)
	}
	return svc, nil
}

func (s *Service) List(ctx context.Context, category string, limit, offset int) ([]*models.Service, error) {
	return s.store.ListActive(ctx, strings.TrimSpace(category), limit, offset)
}

func (s *Service) Search(ctx context.Context, q string, limit int) ([]*models.Service, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < minSearchLen {
		return nil, fmt.Errorf("%w: query must be at least %d characters", services.ErrValidation, minSearchLen)
	}
	return s.store.Search(ctx, q, limit)
}

func (s *Service) owned(ctx context.Context, userID, id uuid.UUID) (*models.Service, error) {
	svc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if svc.SellerID != userID {
		return nil, fmt.Errorf("%w: not the owner of this service", services.ErrForbidden)
	}
	return svc, nil
}

func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, in UpdateInput) (*models.Service, error) {
	svc, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		svc.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		svc.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		svc.Category = strings.TrimSpace(*in.Category)
	}
	if in.Tags != nil {
		svc.Tags = normalizeTags(in.Tags)
	}
	if in.Price != nil {
		if !in.Price.IsPositive() {
			return nil, fmt.Errorf("%w: price must be positive", services.ErrValidation)
		}
		svc.Price = in.Price.Round(2)
	}
	if in.ExecutionDays != nil {
		svc.ExecutionDays = *in.ExecutionDays
	}
	if in.RevisionCount != nil {
		svc.RevisionCount = *in.RevisionCount
	}
	if in.PreviewURL != nil {
		svc.PreviewURL = *in.PreviewURL
	}
	if err := s.store.Update(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// Hide is the owner's delete: the row stays for existing orders.
func (s *Service) Hide(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	_, err := s.store.SetStatus(ctx, id, models.ServiceStatusHidden)
	return err
}

// BySeller lists a seller's offers; the seller also sees pending, rejected and hidden ones.
func (s *Service) BySeller(ctx context.Context, viewerID, sellerID uuid.UUID) ([]*models.Service, error) {
	return s.store.ListBySeller(ctx, sellerID, viewerID == sellerID)
}

func (s *Service) Moderate(ctx context.Context, id uuid.UUID, status string) (*models.Service, error) {
	switch status {
	case models.ServiceStatusActive, models.ServiceStatusRejected, models.ServiceStatusHidden:
	default:
		return nil, fmt.Errorf("%w: status must be active, rejected or hidden", services.ErrValidation)
	}
	svc, err := s.store.SetStatus(ctx, id, status)
	if err != nil {
		return nil, notFound(err)
	}
	s.log.Info("service moderated", "service_id", id, "status", status)
	return svc, nil
}
