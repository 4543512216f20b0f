package task

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
	"unicode"
	"unicode/utf8"
)

var reminderNoPattern = regexp.MustCompile(`Reminder\s*#(\d+)`)

// FormatReminder renders the human-facing reminder label used in chat
// messages, e.g. "Reminder #0042 Jan 05".
func FormatReminder(taskNo int64, at time.Time) string {
	return fmt.Sprintf("Reminder #%04d %s", taskNo, at.Format("Jan 02"))
}

// ExtractTaskNo parses a reminder number out of a chat message containing a
// "Reminder #NNNN" label. Returns false when no label is present.
func ExtractTaskNo(message string) (int64, bool) {
	m := reminderNoPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	no, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return no, true
}

// Capitalize upper-cases the first rune of a reminder text.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// DefaultReminderTime resolves a start instant from an optional date
// ("2006-01-02") and time ("15:04") in the user's zone. A missing time
// slots to 09:00 before noon and 18:00 after. An instant already in the
// past rolls to the same time next day.
func DefaultReminderTime(dateStr, timeStr string, loc *time.Location, now time.Time) (time.Time, error) {
	localNow := now.In(loc)
	if dateStr == "" {
		dateStr = localNow.Format("2006-01-02")
	}
	if timeStr == "" {
		if localNow.Hour() < 12 {
			timeStr = "09:00"
		} else {
			timeStr = "18:00"
		}
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", dateStr+" "+timeStr, loc)
	if err != nil {
		return time.Time{}, err
	}
	if at.Before(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at.UTC(), nil
}

// sameDay reports whether a and b fall on the same calendar day in loc.
func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// startOfDay returns midnight of t's calendar day in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// endOfDay returns the last instant of t's calendar day in loc.
func endOfDay(t time.Time, loc *time.Location) time.Time {
	return startOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Millisecond)
}
