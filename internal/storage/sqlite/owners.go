package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/storage/models"
	"github.com/trustbites/backend/pkg/logger"
)

var ErrDuplicateEmail = errors.New("email already registered")

var ownerColumns = []string{"id", "email", "password_hash", "owner_name", "business_name", "restaurant_id", "created_at"}

func (c *Client) CreateBusinessOwner(ctx context.Context, o *models.BusinessOwner) error {
	o.Email = strings.ToLower(strings.TrimSpace(o.Email))
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO business_owners (id, email, password_hash, owner_name, business_name, restaurant_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID,
		o.Email,
		o.PasswordHash,
		o.OwnerName,
		o.BusinessName,
		o.RestaurantID,
		o.CreatedAt.Unix(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create business owner: %w", err)
	}

	logger.Info("Business owner created", zap.String("owner_id", o.ID), zap.String("business", o.BusinessName))
	return nil
}

func (c *Client) GetBusinessOwnerByEmail(ctx context.Context, email string) (*models.BusinessOwner, error) {
	return c.getBusinessOwner(ctx, sq.Eq{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (c *Client) GetBusinessOwner(ctx context.Context, id string) (*models.BusinessOwner, error) {
	return c.getBusinessOwner(ctx, sq.Eq{"id": id})
}

func (c *Client) getBusinessOwner(ctx context.Context, where sq.Eq) (*models.BusinessOwner, error) {
	query, args, err := sq.Select(ownerColumns...).From("business_owners").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build owner query: %w", err)
	}

	var o models.BusinessOwner
	var createdAt int64
	err = c.db.QueryRowContext(ctx, query, args...).Scan(
		&o.ID,
		&o.Email,
		&o.PasswordHash,
		&o.OwnerName,
		&o.BusinessName,
		&o.RestaurantID,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get business owner: %w", err)
	}

	o.CreatedAt = time.Unix(createdAt, 0)
	return &o, nil
}
