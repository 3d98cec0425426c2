package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/storage/models"
	"github.com/trustbites/backend/pkg/logger"
)

var restaurantColumns = []string{
	"id", "name", "address", "lat", "lng", "rating", "total_reviews", "price_level", "cuisine", "created_at", "updated_at",
}

func (c *Client) UpsertRestaurant(ctx context.Context, r *models.Restaurant) error {
	query := `
		INSERT INTO restaurants (id, name, address, lat, lng, rating, total_reviews, price_level, cuisine, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			lat = excluded.lat,
			lng = excluded.lng,
			rating = excluded.rating,
			total_reviews = excluded.total_reviews,
			price_level = excluded.price_level,
			cuisine = excluded.cuisine,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	var priceLevel any
	if r.PriceLevel != nil {
		priceLevel = *r.PriceLevel
	}

	_, err := c.db.ExecContext(ctx, query,
		r.ID,
		r.Name,
		r.Address,
		r.Lat,
		r.Lng,
		r.Rating,
		r.TotalReviews,
		priceLevel,
		r.Cuisine,
		r.CreatedAt.Unix(),
		r.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert restaurant: %w", err)
	}

	logger.Debug("Restaurant upserted", zap.String("restaurant_id", r.ID), zap.String("name", r.Name))
	return nil
}

func (c *Client) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	query, args, err := sq.Select(restaurantColumns...).From("restaurants").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build restaurant query: %w", err)
	}

	r, err := scanRestaurant(c.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}
	return r, nil
}

// ListRestaurants returns all restaurants, or only those in ids when given.
func (c *Client) ListRestaurants(ctx context.Context, ids ...string) ([]models.Restaurant, error) {
	builder := sq.Select(restaurantColumns...).From("restaurants").OrderBy("name")
	if len(ids) > 0 {
		builder = builder.Where(sq.Eq{"id": ids})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build restaurants query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []models.Restaurant
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		restaurants = append(restaurants, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate restaurants: %w", err)
	}

	return restaurants, nil
}

func (c *Client) CountRestaurants(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM restaurants`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count restaurants: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRestaurant(row rowScanner) (*models.Restaurant, error) {
	var r models.Restaurant
	var priceLevel sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Address,
		&r.Lat,
		&r.Lng,
		&r.Rating,
		&r.TotalReviews,
		&priceLevel,
		&r.Cuisine,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if priceLevel.Valid {
		level := int(priceLevel.Int64)
		r.PriceLevel = &level
	}
	r.CreatedAt = time.Unix(createdAt, 0)
	r.UpdatedAt = time.Unix(updatedAt, 0)
	return &r, nil
}
