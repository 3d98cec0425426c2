package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/storage/models"
	"github.com/trustbites/backend/pkg/logger"
)

var reviewColumns = []string{
	"id", "restaurant_id", "review_text", "rating", "language", "author_name", "review_date",
	"source", "status", "review_hash", "classification", "is_fake", "confidence", "reasons",
	"sentiment", "explanation", "ai_model", "ai_version", "analyzed_at", "created_at",
}

var analysisColumns = []string{
	"id", "review_id", "restaurant_id", "review_hash", "classification", "is_fake", "confidence",
	"reasons", "sentiment", "language_confidence", "explanation", "ai_model", "ai_version", "analyzed_at",
}

// InsertReview stores a new review. It reports false without error when a
// review with the same id already exists.
func (c *Client) InsertReview(ctx context.Context, r *models.Review) (bool, error) {
	query := `
		INSERT OR IGNORE INTO reviews (id, restaurant_id, review_text, rating, language, author_name,
			review_date, source, status, review_hash, classification, is_fake, confidence, reasons,
			sentiment, explanation, ai_model, ai_version, analyzed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = models.ReviewStatusPending
	}
	reasons, err := json.Marshal(nonNil(r.Reasons))
	if err != nil {
		return false, fmt.Errorf("failed to encode reasons: %w", err)
	}

	res, err := c.db.ExecContext(ctx, query,
		r.ID,
		r.RestaurantID,
		r.ReviewText,
		r.Rating,
		r.Language,
		r.AuthorName,
		r.ReviewDate.Unix(),
		r.Source,
		r.Status,
		r.ReviewHash,
		r.Classification,
		boolToInt(r.IsFake),
		r.Confidence,
		string(reasons),
		r.Sentiment,
		r.Explanation,
		r.AIModel,
		r.AIVersion,
		unixOrNil(r.AnalyzedAt),
		r.CreatedAt.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert review: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	logger.Debug("Review inserted",
		zap.String("review_id", r.ID),
		zap.String("restaurant_id", r.RestaurantID),
		zap.Bool("new", n > 0),
	)
	return n > 0, nil
}

func (c *Client) GetReview(ctx context.Context, id string) (*models.Review, error) {
	query, args, err := sq.Select(reviewColumns...).From("reviews").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build review query: %w", err)
	}

	r, err := scanReview(c.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return r, nil
}

// ListReviews returns reviews matching filter, newest review date first.
func (c *Client) ListReviews(ctx context.Context, filter models.ReviewFilter) ([]models.Review, error) {
	builder := sq.Select(reviewColumns...).From("reviews").OrderBy("review_date DESC", "created_at DESC")

	if filter.RestaurantID != "" {
		builder = builder.Where(sq.Eq{"restaurant_id": filter.RestaurantID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Fake != nil {
		builder = builder.Where(sq.Eq{"is_fake": boolToInt(*filter.Fake)})
	}
	if !filter.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"review_date": filter.Since.Unix()})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build reviews query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}

	return reviews, nil
}

func (c *Client) ListPendingReviews(ctx context.Context, limit int) ([]models.Review, error) {
	return c.ListReviews(ctx, models.ReviewFilter{Status: models.ReviewStatusPending, Limit: limit})
}

// SaveAnalysis upserts the analysis keyed by review hash and copies it onto
// the review row in one transaction.
func (c *Client) SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) models.PersistResult {
	if err := c.saveAnalysis(ctx, rec); err != nil {
		logger.Error("Failed to persist analysis",
			zap.String("review_id", rec.ReviewID),
			zap.String("review_hash", rec.ReviewHash),
			zap.Error(err),
		)
		return models.PersistResult{Err: err}
	}
	return models.PersistResult{Saved: true}
}

func (c *Client) saveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.AnalyzedAt.IsZero() {
		rec.AnalyzedAt = time.Now()
	}
	reasons, err := json.Marshal(nonNil(rec.Reasons))
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analyses (id, review_id, restaurant_id, review_hash, classification, is_fake, confidence,
			reasons, sentiment, language_confidence, explanation, ai_model, ai_version, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(review_hash) DO UPDATE SET
			review_id = excluded.review_id,
			restaurant_id = excluded.restaurant_id,
			classification = excluded.classification,
			is_fake = excluded.is_fake,
			confidence = excluded.confidence,
			reasons = excluded.reasons,
			sentiment = excluded.sentiment,
			language_confidence = excluded.language_confidence,
			explanation = excluded.explanation,
			ai_model = excluded.ai_model,
			ai_version = excluded.ai_version,
			analyzed_at = excluded.analyzed_at`,
		rec.ID,
		rec.ReviewID,
		rec.RestaurantID,
		rec.ReviewHash,
		rec.Classification,
		boolToInt(rec.IsFake),
		rec.Confidence,
		string(reasons),
		rec.Sentiment,
		rec.LanguageConfidence,
		rec.Explanation,
		rec.AIModel,
		rec.AIVersion,
		rec.AnalyzedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert analysis: %w", err)
	}

	if _, err := updateReviewAnalysis(ctx, tx, rec.ReviewID, rec, string(reasons)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}

	logger.Debug("Analysis persisted",
		zap.String("review_id", rec.ReviewID),
		zap.String("classification", rec.Classification),
	)
	return nil
}

// ApplyAnalysis copies an existing analysis onto a review row. The analyses
// table is left untouched.
func (c *Client) ApplyAnalysis(ctx context.Context, reviewID string, rec *models.AnalysisRecord) error {
	if rec.AnalyzedAt.IsZero() {
		rec.AnalyzedAt = time.Now()
	}
	reasons, err := json.Marshal(nonNil(rec.Reasons))
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	n, err := updateReviewAnalysis(ctx, c.db, reviewID, rec, string(reasons))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	logger.Debug("Analysis applied to review",
		zap.String("review_id", reviewID),
		zap.String("ai_model", rec.AIModel),
	)
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateReviewAnalysis(ctx context.Context, ex execer, reviewID string, rec *models.AnalysisRecord, reasons string) (int64, error) {
	res, err := ex.ExecContext(ctx, `
		UPDATE reviews SET
			status = ?, classification = ?, is_fake = ?, confidence = ?, reasons = ?,
			sentiment = ?, explanation = ?, ai_model = ?, ai_version = ?, analyzed_at = ?
		WHERE id = ?`,
		models.ReviewStatusAnalyzed,
		rec.Classification,
		boolToInt(rec.IsFake),
		rec.Confidence,
		reasons,
		rec.Sentiment,
		rec.Explanation,
		rec.AIModel,
		rec.AIVersion,
		rec.AnalyzedAt.Unix(),
		reviewID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update review analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update result: %w", err)
	}
	return n, nil
}

func (c *Client) GetAnalysisByHash(ctx context.Context, hash string) (*models.AnalysisRecord, error) {
	query, args, err := sq.Select(analysisColumns...).From("analyses").Where(sq.Eq{"review_hash": hash}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis query: %w", err)
	}

	rec, err := scanAnalysis(c.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return rec, nil
}

func (c *Client) ListAnalysesByRestaurant(ctx context.Context, restaurantID string) ([]models.AnalysisRecord, error) {
	query, args, err := sq.Select(analysisColumns...).
		From("analyses").
		Where(sq.Eq{"restaurant_id": restaurantID}).
		OrderBy("analyzed_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build analyses query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var records []models.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}

	return records, nil
}

func scanReview(row rowScanner) (*models.Review, error) {
	var r models.Review
	var reviewDate, createdAt int64
	var analyzedAt sql.NullInt64
	var isFake int
	var reasons string

	err := row.Scan(
		&r.ID,
		&r.RestaurantID,
		&r.ReviewText,
		&r.Rating,
		&r.Language,
		&r.AuthorName,
		&reviewDate,
		&r.Source,
		&r.Status,
		&r.ReviewHash,
		&r.Classification,
		&isFake,
		&r.Confidence,
		&reasons,
		&r.Sentiment,
		&r.Explanation,
		&r.AIModel,
		&r.AIVersion,
		&analyzedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	r.IsFake = isFake == 1
	r.ReviewDate = time.Unix(reviewDate, 0)
	r.CreatedAt = time.Unix(createdAt, 0)
	if analyzedAt.Valid {
		t := time.Unix(analyzedAt.Int64, 0)
		r.AnalyzedAt = &t
	}
	if err := json.Unmarshal([]byte(reasons), &r.Reasons); err != nil {
		return nil, fmt.Errorf("decode reasons: %w", err)
	}
	r.Reasons = nonNil(r.Reasons)
	return &r, nil
}

func scanAnalysis(row rowScanner) (*models.AnalysisRecord, error) {
	var rec models.AnalysisRecord
	var isFake int
	var reasons string
	var analyzedAt int64

	err := row.Scan(
		&rec.ID,
		&rec.ReviewID,
		&rec.RestaurantID,
		&rec.ReviewHash,
		&rec.Classification,
		&isFake,
		&rec.Confidence,
		&reasons,
		&rec.Sentiment,
		&rec.LanguageConfidence,
		&rec.Explanation,
		&rec.AIModel,
		&rec.AIVersion,
		&analyzedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.IsFake = isFake == 1
	rec.AnalyzedAt = time.Unix(analyzedAt, 0)
	if err := json.Unmarshal([]byte(reasons), &rec.Reasons); err != nil {
		return nil, fmt.Errorf("decode reasons: %w", err)
	}
	rec.Reasons = nonNil(rec.Reasons)
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
