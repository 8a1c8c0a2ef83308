package models

import (
	"time"

	"github.com/google/uuid"
)

// DeletedMessageText replaces the body of a soft-deleted message.
const DeletedMessageText = "[Сообщение удалено]"

type Message struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"order_id"`
	AuthorID    uuid.UUID  `json:"author_id"`
	Text        string     `json:"text"`
	Attachments []string   `json:"attachments"`
	IsEdited    bool       `json:"is_edited"`
	IsDeleted   bool       `json:"is_deleted"`
	CreatedAt   time.Time  `json:"created_at"`
	EditedAt    *time.Time `json:"edited_at,omitempty"`
}
