package slots

import (
	"errors"
	"time"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for anything that is not a YYYY-MM-DD date.
var ErrInvalidDate = errors.New("invalid date; expected YYYY-MM-DD")

// CanonicalDate truncates t to its local calendar date.
func CanonicalDate(t time.Time) string {
	return t.Local().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date as local midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// Today returns local midnight of now.
func Today(now time.Time) time.Time {
	now = now.Local()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}
