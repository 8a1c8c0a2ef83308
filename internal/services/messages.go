package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tgwork/backend/internal/models"
)

// MessageEditWindow bounds how long after sending a message may be edited.
const MessageEditWindow = 15 * time.Minute

const maxMessageLen = 4000

type MessageStore interface {
	Create(ctx context.Context, m *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]*models.Message, error)
	Edit(ctx context.Context, id uuid.UUID, text string) (*models.Message, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type MessageOrders interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// MessageService is the per-order chat between buyer and seller.
type MessageService struct {
	Messages MessageStore
	Orders   MessageOrders
	Now      func() time.Time
}

func (s *MessageService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MessageService) participantOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	if !order.IsParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this order", ErrForbidden)
	}
	return order, nil
}

func (s *MessageService) Send(ctx context.Context, userID, orderID uuid.UUID, text string, attachments []string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) > maxMessageLen {
		return nil, fmt.Errorf("%w: message text must be 1..%d characters", ErrValidation, maxMessageLen)
	}
	if _, err := s.participantOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}
	m := &models.Message{
		ID:          uuid.New(),
		OrderID:     orderID,
		AuthorID:    userID,
		Text:        text,
		Attachments: attachments,
	}
	if err := s.Messages.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MessageService) List(ctx context.Context, userID, orderID uuid.UUID, limit int) ([]*models.Message, error) {
	if _, err := s.participantOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}
	return s.Messages.ListByOrder(ctx, orderID, clamp(limit, 1, 1000, 100))
}

func (s *MessageService) authored(ctx context.Context, userID, messageID uuid.UUID) (*models.Message, error) {
	m, err := s.Messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, notFound(err, "message not found")
	}
	if m.AuthorID != userID {
		return nil, fmt.Errorf("%w: only the author can change a message", ErrForbidden)
	}
	if m.IsDeleted {
		return nil, fmt.Errorf("%w: message not found", ErrNotFound)
	}
	return m, nil
}

// Edit changes the text of the caller's own message within MessageEditWindow.
func (s *MessageService) Edit(ctx context.Context, userID, messageID uuid.UUID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) > maxMessageLen {
		return nil, fmt.Errorf("%w: message text must be 1..%d characters", ErrValidation, maxMessageLen)
	}
	m, err := s.authored(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if s.now().Sub(m.CreatedAt) > MessageEditWindow {
		return nil, ErrEditWindowClosed
	}
	updated, err := s.Messages.Edit(ctx, messageID, text)
	if err != nil {
		return nil, notFound(err, "message not found")
	}
	return updated, nil
}

func (s *MessageService) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	if _, err := s.authored(ctx, userID, messageID); err != nil {
		return err
	}
	return s.Messages.SoftDelete(ctx, messageID)
}
