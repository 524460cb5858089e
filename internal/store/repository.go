package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/erazemk/freshtrack/internal/model"
)

// Repository exposes the item and user queries the expiry scheduler depends on.
type Repository struct {
	DB *sql.DB
}

// NewRepository returns a Repository backed by db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

// FindExpiringUnnotified returns unnotified items expiring within [start, end].
func (r *Repository) FindExpiringUnnotified(ctx context.Context, start, end time.Time) ([]model.Item, error) {
	return FindExpiringUnnotified(ctx, r.DB, start, end)
}

// MarkNotified flags an item as notified for expiry and logs the delivery to address.
func (r *Repository) MarkNotified(ctx context.Context, itemID int64, expiry time.Time, address string) error {
	return MarkNotified(ctx, r.DB, itemID, expiry, address)
}

// FindUserByID returns an active user, or nil when the user does not exist
// or has been deleted.
func (r *Repository) FindUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := GetUser(ctx, r.DB, id)
	if err != nil || u == nil || u.DeletedAt != nil {
		return nil, err
	}
	return u, nil
}
