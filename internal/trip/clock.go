package trip

import (
	"time"
)

// DateLayout is the calendar date format used everywhere in persisted state.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// ProjectDate returns the calendar date index days after start.
// Only the year/month/day of start are used, so the result does not depend on
// time zone or daylight saving transitions.
func ProjectDate(start time.Time, index int) string {
	y, m, d := start.Date()
	return time.Date(y, m, d+index, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}

// FormatClock renders t as 24-hour "HH:MM" in t's location.
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

// ValidClock reports whether s is a fixed-width 24-hour "HH:MM" value.
func ValidClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	hh := int(s[0]-'0')*10 + int(s[1]-'0')
	mm := int(s[3]-'0')*10 + int(s[4]-'0')
	return hh < 24 && mm < 60
}
