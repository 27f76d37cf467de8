package models

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Day returns the calendar date of t (in t's location) as midnight UTC.
// All visit dates and birth dates are carried in this form.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

func FormatDay(t time.Time) string {
	return t.Format(DateLayout)
}
