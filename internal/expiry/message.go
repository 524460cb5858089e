package expiry

import (
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/freshtrack/internal/model"
)

// humanDateLayout is the date format used in notification bodies.
const humanDateLayout = "Monday, 2 January 2006"

// SubjectPrefix starts every expiry alert subject line.
const SubjectPrefix = "FreshTrack expiry alert"

func composeMessage(item *model.Item, owner *model.User, now time.Time) (subject, body string) {
	subject = fmt.Sprintf("%s: %s", SubjectPrefix, item.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", owner.Username)
	fmt.Fprintf(&b, "Your item %q (quantity %d, %s) %s on %s.\n\n",
		item.Name, item.Quantity, item.Category,
		expiryPhrase(item.DaysLeft(now)), item.ExpiryDate.Format(humanDateLayout))
	b.WriteString("Use it soon, or discard it safely if it has gone off.\n\n")
	b.WriteString("FreshTrack\n")

	return subject, b.String()
}

func expiryPhrase(daysLeft int) string {
	switch {
	case daysLeft < -1:
		return fmt.Sprintf("expired %d days ago", -daysLeft)
	case daysLeft == -1:
		return "expired yesterday"
	case daysLeft == 0:
		return "expires today"
	case daysLeft == 1:
		return "expires tomorrow"
	default:
		return fmt.Sprintf("expires in %d days", daysLeft)
	}
}
