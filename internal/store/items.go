package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/freshtrack/internal/model"
)

// ErrItemNotFound is returned when an item does not exist or belongs to another user.
var ErrItemNotFound = errors.New("item not found")

// NewItem holds the fields for creating an item.
type NewItem struct {
	UserID       int64
	Name         string
	Category     string
	BatchNumber  string
	Quantity     int
	PurchaseDate time.Time
	ExpiryDate   time.Time
}

// ItemUpdate holds the editable fields of an item.
type ItemUpdate struct {
	Name        string
	Category    string
	BatchNumber string
	Quantity    int
	ExpiryDate  time.Time
}

const itemColumns = `id, user_id, name, category, batch_number, quantity,
	purchase_date, expiry_date, notified, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var purchase, expiry string
	if err := row.Scan(&item.ID, &item.UserID, &item.Name, &item.Category, &item.BatchNumber,
		&item.Quantity, &purchase, &expiry, &item.Notified, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if item.PurchaseDate, err = model.ParseDate(purchase); err != nil {
		return nil, fmt.Errorf("item %d purchase date: %w", item.ID, err)
	}
	if item.ExpiryDate, err = model.ParseDate(expiry); err != nil {
		return nil, fmt.Errorf("item %d expiry date: %w", item.ID, err)
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CreateItem creates a new item. Empty category and batch number fall back to
// defaults; a zero purchase date means today.
func CreateItem(ctx context.Context, db *sql.DB, n NewItem) (*model.Item, error) {
	if n.Name == "" {
		return nil, fmt.Errorf("name required")
	}
	if n.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	if n.ExpiryDate.IsZero() {
		return nil, fmt.Errorf("expiry date required")
	}
	if n.Category == "" {
		n.Category = model.DefaultCategory
	}
	if n.BatchNumber == "" {
		n.BatchNumber = model.DefaultBatchNumber
	}
	if n.PurchaseDate.IsZero() {
		n.PurchaseDate = time.Now()
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO items (user_id, name, category, batch_number, quantity, purchase_date, expiry_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Name, n.Category, n.BatchNumber, n.Quantity,
		model.FormatDate(n.PurchaseDate), model.FormatDate(n.ExpiryDate),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItemsByUser returns a user's items, soonest expiry first.
func ListItemsByUser(ctx context.Context, db *sql.DB, userID int64) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE user_id = ?
		 ORDER BY expiry_date, name, id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return scanItems(rows)
}

// UpdateItem updates an item owned by userID. Changing the expiry date
// re-arms the expiry notification.
func UpdateItem(ctx context.Context, db *sql.DB, id, userID int64, u ItemUpdate) (*model.Item, error) {
	if u.Name == "" {
		return nil, fmt.Errorf("name required")
	}
	if u.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	if u.Category == "" {
		u.Category = model.DefaultCategory
	}
	if u.BatchNumber == "" {
		u.BatchNumber = model.DefaultBatchNumber
	}

	expiry := model.FormatDate(u.ExpiryDate)
	result, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, category = ?, batch_number = ?, quantity = ?,
		        notified = CASE WHEN expiry_date = ? THEN notified ELSE 0 END,
		        expiry_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		u.Name, u.Category, u.BatchNumber, u.Quantity, expiry, expiry, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrItemNotFound
	}

	return GetItem(ctx, db, id)
}

// UseItem consumes one unit of an item owned by userID and returns the
// remaining quantity. The item is deleted when nothing is left.
func UseItem(ctx context.Context, db *sql.DB, id, userID int64) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT quantity FROM items WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, ErrItemNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("checking current quantity: %w", err)
	}

	remaining := current - 1
	if remaining <= 0 {
		remaining = 0
		_, err = tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET quantity = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			remaining, id,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("using item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing item use: %w", err)
	}
	return remaining, nil
}

// DeleteItem removes an item owned by userID.
func DeleteItem(ctx context.Context, db *sql.DB, id, userID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM items WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrItemNotFound
	}
	return nil
}
