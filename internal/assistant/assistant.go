// Package assistant answers pantry questions with fixed keyword rules.
package assistant

import (
	"strings"
	"time"

	"github.com/erazemk/freshtrack/internal/model"
)

// EmergencyMedicines are the essentials every household should keep.
var EmergencyMedicines = []string{
	"paracetamol",
	"ors",
	"antiseptic",
	"bandage",
	"thermometer",
	"cough syrup",
	"antihistamine",
}

// SoonDays is how close to expiry an item must be to count as "use soon".
const SoonDays = 7

// LowStock is the quantity at or below which an item counts as running low.
const LowStock = 1

const helpReply = "I can help with medicines, shopping, expiry, and pantry advice."

type rule struct {
	keywords []string
	reply    func(items []model.Item, now time.Time) string
}

var rules = []rule{
	{[]string{"medicine", "emergency"}, missingMedicines},
	{[]string{"shopping", "buy"}, shopping},
	{[]string{"expired", "expiry"}, expiringSoon},
	{[]string{"low", "quantity"}, lowStock},
}

// Reply answers message using the user's items. The first rule with a
// matching keyword wins.
func Reply(message string, items []model.Item, now time.Time) string {
	msg := strings.ToLower(message)
	for _, r := range rules {
		for _, k := range r.keywords {
			if strings.Contains(msg, k) {
				return r.reply(items, now)
			}
		}
	}
	return helpReply
}

func missingMedicines(items []model.Item, _ time.Time) string {
	have := make(map[string]bool, len(items))
	for _, item := range items {
		have[strings.ToLower(strings.TrimSpace(item.Name))] = true
	}

	var missing []string
	for _, m := range EmergencyMedicines {
		if !have[m] {
			missing = append(missing, m)
		}
	}

	if len(missing) == 0 {
		return "You already have all essential emergency medicines."
	}
	return "You should keep these medicines at home: " + strings.Join(missing, ", ")
}

func shopping(items []model.Item, _ time.Time) string {
	if len(items) == 0 {
		return "Your pantry is empty. Consider buying daily essentials."
	}
	return "Based on your pantry, check low or missing household items before shopping."
}

func expiringSoon(items []model.Item, now time.Time) string {
	names := filterNames(items, func(i *model.Item) bool { return i.DaysLeft(now) <= SoonDays })
	if len(names) == 0 {
		return "No items are close to expiry."
	}
	return "Use soon: " + strings.Join(names, ", ")
}

func lowStock(items []model.Item, _ time.Time) string {
	names := filterNames(items, func(i *model.Item) bool { return i.Quantity <= LowStock })
	if len(names) == 0 {
		return "All items have sufficient quantity."
	}
	return "Low stock items: " + strings.Join(names, ", ")
}

func filterNames(items []model.Item, keep func(*model.Item) bool) []string {
	var names []string
	for i := range items {
		if keep(&items[i]) {
			names = append(names, items[i].Name)
		}
	}
	return names
}
