package model

import "time"

// Notification records a delivered expiry warning.
type Notification struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"item_id"`
	UserID     int64     `json:"user_id"`
	ItemName   string    `json:"item_name"`
	Address    string    `json:"address"`
	ExpiryDate time.Time `json:"expiry_date"`
	SentAt     time.Time `json:"sent_at"`
}
