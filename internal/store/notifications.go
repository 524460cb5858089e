package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/freshtrack/internal/model"
)

// FindExpiringUnnotified returns items whose expiry date falls within
// [start, end] (compared by calendar date, both inclusive) and that have not
// been notified yet.
func FindExpiringUnnotified(ctx context.Context, db *sql.DB, start, end time.Time) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE notified = 0 AND expiry_date >= ? AND expiry_date <= ?
		 ORDER BY expiry_date, id`,
		model.FormatDate(start), model.FormatDate(end),
	)
	if err != nil {
		return nil, fmt.Errorf("finding expiring items: %w", err)
	}
	return scanItems(rows)
}

// MarkNotified flags an item as notified for the given expiry date and
// records the delivery. Marking an already-notified or deleted item, or one
// whose expiry date has since changed, is a no-op.
func MarkNotified(ctx context.Context, db *sql.DB, itemID int64, expiry time.Time, address string) error {
	date := model.FormatDate(expiry)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE items SET notified = 1 WHERE id = ? AND expiry_date = ? AND notified = 0`,
		itemID, date,
	)
	if err != nil {
		return fmt.Errorf("marking item notified: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO notifications (item_id, user_id, item_name, address, expiry_date)
		 SELECT id, user_id, name, ?, expiry_date FROM items WHERE id = ? AND expiry_date = ?`,
		address, itemID, date,
	)
	if err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notification: %w", err)
	}
	return nil
}

// ListNotificationsByUser returns a user's delivered notifications, newest first.
func ListNotificationsByUser(ctx context.Context, db *sql.DB, userID int64) ([]model.Notification, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, item_id, user_id, item_name, address, expiry_date, sent_at
		 FROM notifications WHERE user_id = ?
		 ORDER BY sent_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		var expiry string
		if err := rows.Scan(&n.ID, &n.ItemID, &n.UserID, &n.ItemName, &n.Address, &expiry, &n.SentAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		if n.ExpiryDate, err = model.ParseDate(expiry); err != nil {
			return nil, fmt.Errorf("notification %d expiry date: %w", n.ID, err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
