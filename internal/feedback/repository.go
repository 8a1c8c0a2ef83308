package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tgwork/backend/internal/models"
)

const reviewColumns = `id, external_id, product_id, product_name, customer_name, rating, text,
	sentiment, category, answered, created_at, fetched_at, send_claimed_at`

const draftColumns = `id, review_id, text, variant_number, mode, is_selected, created_at`

const responseColumns = `id, review_id, draft_id, text, status, external_comment_id, error_message, created_at, sent_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanReview(row scanner) (*models.FeedbackReview, error) {
	var rv models.FeedbackReview
	err := row.Scan(&rv.ID, &rv.ExternalID, &rv.ProductID, &rv.ProductName, &rv.CustomerName, &rv.Rating, &rv.Text,
		&rv.Sentiment, &rv.Category, &rv.Answered, &rv.CreatedAt, &rv.FetchedAt, &rv.SendClaimedAt)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func scanDraft(row scanner) (*models.ResponseDraft, error) {
	var d models.ResponseDraft
	if err := row.Scan(&d.ID, &d.ReviewID, &d.Text, &d.VariantNumber, &d.Mode, &d.IsSelected, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanResponse(row scanner) (*models.Response, error) {
	var r models.Response
	err := row.Scan(&r.ID, &r.ReviewID, &r.DraftID, &r.Text, &r.Status, &r.ExternalCommentID, &r.ErrorMessage, &r.CreatedAt, &r.SentAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collect[T any](rows pgx.Rows, err error, scan func(scanner) (*T, error)) ([]*T, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, rows.Err()
}

// ListFilter narrows GET /api/reviews. A nil Answered means both.
type ListFilter struct {
	Answered *bool
	Oldest   bool
	Limit    int
	Offset   int
}

// Repository persists marketplace reviews, their drafts and submitted responses.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// --- reviews ---

func (r *Repository) GetByExternalIDTx(ctx context.Context, tx pgx.Tx, externalID string) (*models.FeedbackReview, error) {
	return scanReview(tx.QueryRow(ctx, `SELECT `+reviewColumns+` FROM feedback_reviews WHERE external_id = $1`, externalID))
}

// InsertTx stores a new review. It reports false when another writer inserted the same external_id first.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, rv *models.FeedbackReview) (bool, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO feedback_reviews (id, external_id, product_id, product_name, customer_name, rating, text, answered)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING created_at, fetched_at
	`, rv.ID, rv.ExternalID, rv.ProductID, rv.ProductName, rv.CustomerName, rv.Rating, rv.Text, rv.Answered).
		Scan(&rv.CreatedAt, &rv.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *Repository) GetReview(ctx context.Context, id uuid.UUID) (*models.FeedbackReview, error) {
	return scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM feedback_reviews WHERE id = $1`, id))
}

func (r *Repository) ListReviews(ctx context.Context, f ListFilter) ([]*models.FeedbackReview, error) {
	order := "DESC"
	if f.Oldest {
		order = "ASC"
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reviewColumns+` FROM feedback_reviews
		WHERE ($1::boolean IS NULL OR answered = $1)
		ORDER BY created_at `+order+` LIMIT $2 OFFSET $3
	`, f.Answered, f.Limit, f.Offset)
	return collect(rows, err, scanReview)
}

func (r *Repository) SetClassification(ctx context.Context, id uuid.UUID, sentiment, category *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE feedback_reviews SET sentiment = COALESCE($2, sentiment), category = COALESCE($3, category)
		WHERE id = $1
	`, id, sentiment, category)
	return err
}

func (r *Repository) Stats(ctx context.Context) (*models.ReviewStats, error) {
	var s models.ReviewStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE NOT answered),
		       COALESCE(ROUND(AVG(rating)::numeric, 1), 0)::float8,
		       COUNT(DISTINCT NULLIF(product_id, ''))
		FROM feedback_reviews
	`).Scan(&s.Total, &s.Unanswered, &s.AvgRating, &s.Products)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) Products(ctx context.Context) ([]*models.ProductSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, MAX(product_name), COUNT(*),
		       COUNT(*) FILTER (WHERE NOT answered),
		       ROUND(AVG(rating)::numeric, 1)::float8
		FROM feedback_reviews
		GROUP BY product_id
		ORDER BY COUNT(*) DESC
	`)
	return collect(rows, err, func(row scanner) (*models.ProductSummary, error) {
		var p models.ProductSummary
		if err := row.Scan(&p.ProductID, &p.ProductName, &p.Reviews, &p.Unanswered, &p.AvgRating); err != nil {
			return nil, err
		}
		return &p, nil
	})
}

// ClaimSend marks the review as being sent. It fails (false) when the review is answered or
// another claim newer than window is still held.
func (r *Repository) ClaimSend(ctx context.Context, id uuid.UUID, window time.Duration) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE feedback_reviews SET send_claimed_at = now()
		WHERE id = $1 AND answered = false
		  AND (send_claimed_at IS NULL OR send_claimed_at < now() - make_interval(secs => $2))
	`, id, window.Seconds())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FinishSendTx clears the claim and, when answered is true, marks the review answered.
func (r *Repository) FinishSendTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, answered bool) error {
	_, err := tx.Exec(ctx, `
		UPDATE feedback_reviews SET send_claimed_at = NULL, answered = answered OR $2
		WHERE id = $1
	`, id, answered)
	return err
}

// --- drafts ---

func (r *Repository) InsertDrafts(ctx context.Context, drafts []*models.ResponseDraft) error {
	return insertDrafts(ctx, r.pool, drafts)
}

// ReplaceDrafts drops the unselected drafts of a review and stores the new set in one transaction.
func (r *Repository) ReplaceDrafts(ctx context.Context, reviewID uuid.UUID, drafts []*models.ResponseDraft) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM response_drafts WHERE review_id = $1 AND NOT is_selected`, reviewID); err != nil {
		return err
	}
	if err := insertDrafts(ctx, tx, drafts); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func insertDrafts(ctx context.Context, db batchSender, drafts []*models.ResponseDraft) error {
	if len(drafts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range drafts {
		batch.Queue(`
			INSERT INTO response_drafts (id, review_id, text, variant_number, mode)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`, d.ID, d.ReviewID, d.Text, d.VariantNumber, d.Mode).QueryRow(func(row pgx.Row) error {
			return row.Scan(&d.CreatedAt)
		})
	}
	return db.SendBatch(ctx, batch).Close()
}

func (r *Repository) ListDrafts(ctx context.Context, reviewID uuid.UUID) ([]*models.ResponseDraft, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+draftColumns+` FROM response_drafts WHERE review_id = $1 ORDER BY variant_number, created_at
	`, reviewID)
	return collect(rows, err, scanDraft)
}

func (r *Repository) GetDraft(ctx context.Context, id uuid.UUID) (*models.ResponseDraft, error) {
	return scanDraft(r.pool.QueryRow(ctx, `SELECT `+draftColumns+` FROM response_drafts WHERE id = $1`, id))
}

// SelectDraft marks one draft selected and clears the flag on its siblings.
func (r *Repository) SelectDraft(ctx context.Context, id uuid.UUID) (*models.ResponseDraft, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	d, err := scanDraft(tx.QueryRow(ctx, `
		UPDATE response_drafts SET is_selected = true WHERE id = $1 RETURNING `+draftColumns, id))
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE response_drafts SET is_selected = false WHERE review_id = $1 AND id <> $2
	`, d.ReviewID, d.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// --- responses ---

func (r *Repository) InsertResponseTx(ctx context.Context, tx pgx.Tx, resp *models.Response) error {
	return tx.QueryRow(ctx, `
		INSERT INTO responses (id, review_id, draft_id, text, status, external_comment_id, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, resp.ID, resp.ReviewID, resp.DraftID, resp.Text, resp.Status, resp.ExternalCommentID, resp.ErrorMessage, resp.SentAt).
		Scan(&resp.CreatedAt)
}

func (r *Repository) GetResponse(ctx context.Context, id uuid.UUID) (*models.Response, error) {
	return scanResponse(r.pool.QueryRow(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = $1`, id))
}

func (r *Repository) RecentResponses(ctx context.Context, limit int) ([]*models.Response, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+responseColumns+` FROM responses ORDER BY created_at DESC LIMIT $1
	`, limit)
	return collect(rows, err, scanResponse)
}

func (r *Repository) ResponsesByStatus(ctx context.Context, status string, limit int) ([]*models.Response, error) {
	switch status {
	case models.ResponseStatusDraft, models.ResponseStatusApproved, models.ResponseStatusSent, models.ResponseStatusFailed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+responseColumns+` FROM responses WHERE status = $1 ORDER BY created_at DESC LIMIT $2
	`, status, limit)
	return collect(rows, err, scanResponse)
}
