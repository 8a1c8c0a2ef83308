package models

import (
	"time"

	"github.com/google/uuid"
)

// Sentiment and category labels produced by the classifier.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"

	CategoryQuality   = "quality"
	CategoryDelivery  = "delivery"
	CategoryPackaging = "packaging"
	CategoryService   = "service"
	CategoryOther     = "other"
)

const (
	ResponseStatusDraft    = "draft"
	ResponseStatusApproved = "approved"
	ResponseStatusSent     = "sent"
	ResponseStatusFailed   = "failed"
)

const (
	DraftModeAI       = "ai"
	DraftModeFallback = "fallback"
)

// FeedbackReview is a marketplace (Ozon) product review pulled by the poller.
type FeedbackReview struct {
	ID            uuid.UUID  `json:"id"`
	ExternalID    string     `json:"external_id"`
	ProductID     string     `json:"product_id"`
	ProductName   string     `json:"product_name"`
	CustomerName  string     `json:"customer_name"`
	Rating        int        `json:"rating"`
	Text          string     `json:"text"`
	Sentiment     *string    `json:"sentiment"`
	Category      *string    `json:"category"`
	Answered      bool       `json:"answered"`
	CreatedAt     time.Time  `json:"created_at"`
	FetchedAt     time.Time  `json:"fetched_at"`
	SendClaimedAt *time.Time `json:"-"`
}

type ResponseDraft struct {
	ID            uuid.UUID `json:"id"`
	ReviewID      uuid.UUID `json:"review_id"`
	Text          string    `json:"text"`
	VariantNumber int       `json:"variant_number"`
	Mode          string    `json:"mode"`
	IsSelected    bool      `json:"is_selected"`
	CreatedAt     time.Time `json:"created_at"`
}

// Response is a reply actually submitted (or attempted) to the marketplace.
type Response struct {
	ID                uuid.UUID  `json:"id"`
	ReviewID          uuid.UUID  `json:"review_id"`
	DraftID           *uuid.UUID `json:"draft_id,omitempty"`
	Text              string     `json:"text"`
	Status            string     `json:"status"`
	ExternalCommentID string     `json:"external_comment_id,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
}

// ReviewStats summarizes the review desk.
type ReviewStats struct {
	Total      int     `json:"total"`
	Unanswered int     `json:"unanswered"`
	AvgRating  float64 `json:"avg_rating"`
	Products   int     `json:"products"`
}

type ProductSummary struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Reviews     int     `json:"reviews"`
	Unanswered  int     `json:"unanswered"`
	AvgRating   float64 `json:"avg_rating"`
}

// Setting is a free-form key/value row.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
