package ledger

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-day key format.
const DayLayout = "2006-01-02"

// DayKey formats t as a day key in t's own location. Callers pass local
// time to key by the user's calendar day.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseDayKey parses a day key into midnight of that day in loc.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q", ErrInvalidKey, key)
	}
	return t, nil
}

// StartOfNextDay returns midnight following t in t's location.
func StartOfNextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// LastNDays returns n day keys ending with the day of now, oldest first.
func LastNDays(now time.Time, n int) []string {
	if n <= 0 {
		return []string{}
	}
	keys := make([]string, 0, n)
	y, m, d := now.Date()
	for i := n - 1; i >= 0; i-- {
		keys = append(keys, DayKey(time.Date(y, m, d-i, 12, 0, 0, 0, now.Location())))
	}
	return keys
}
