package assistant

import (
	"strings"
	"testing"
	"time"

	"github.com/erazemk/freshtrack/internal/model"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func item(name string, qty, daysLeft int) model.Item {
	return model.Item{Name: name, Quantity: qty, ExpiryDate: model.Date(now).AddDate(0, 0, daysLeft)}
}

func TestReply(t *testing.T) {
	pantry := []model.Item{
		item("Milk", 1, 2),
		item("Rice", 5, 200),
		item("Paracetamol", 3, 400),
		item("Old yogurt", 2, -1),
	}

	tests := []struct {
		name     string
		message  string
		items    []model.Item
		contains []string
		excludes []string
	}{
		{"help", "hello there", pantry, []string{"I can help"}, nil},
		{"expiry", "What is about to EXPIRE? expiry please", pantry, []string{"Use soon:", "Milk", "Old yogurt"}, []string{"Rice"}},
		{"nothing expiring", "expired?", []model.Item{item("Rice", 5, 200)}, []string{"No items are close to expiry."}, nil},
		{"low stock", "anything low?", pantry, []string{"Low stock items: Milk"}, []string{"Rice"}},
		{"stock ok", "quantity check", []model.Item{item("Rice", 5, 200)}, []string{"sufficient quantity"}, nil},
		{"medicine", "emergency kit", pantry, []string{"ors", "bandage"}, []string{"paracetamol"}},
		{"shopping empty", "what should I buy", nil, []string{"pantry is empty"}, nil},
		{"shopping", "shopping list", pantry, []string{"before shopping"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reply(tt.message, tt.items, now)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("Reply(%q) = %q, want it to contain %q", tt.message, got, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("Reply(%q) = %q, want it not to contain %q", tt.message, got, s)
				}
			}
		})
	}
}

func TestReplyAllMedicinesPresent(t *testing.T) {
	var items []model.Item
	for _, m := range EmergencyMedicines {
		items = append(items, item(strings.ToUpper(m), 1, 100))
	}

	got := Reply("medicine", items, now)
	if got != "You already have all essential emergency medicines." {
		t.Errorf("unexpected reply %q", got)
	}
}
