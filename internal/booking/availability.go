package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

var (
	ErrInvalidWindow = errors.New("booking window must be >= 0 days")
	ErrInvalidLimit  = errors.New("daily limit must be > 0")
)

// DayAvailability is the number of slots still open on one visit date.
type DayAvailability struct {
	Date      time.Time
	Remaining int
}

func (d DayAvailability) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date      string `json:"date"`
		Remaining int    `json:"remaining"`
	}{models.FormatDay(d.Date), d.Remaining})
}

func (d DayAvailability) Full() bool { return d.Remaining == 0 }

// DayCounter is the read side of the appointment store used to compute
// availability.
type DayCounter interface {
	CountByDateRange(ctx context.Context, from, to time.Time) ([]store.DayCount, error)
}

// ComputeAvailability returns remaining capacity for every day from ref to
// ref+windowDays inclusive, ascending. Counts come from a single query. Days
// with no capacity left are omitted unless includeFull is set.
func ComputeAvailability(ctx context.Context, counter DayCounter, ref time.Time, windowDays, dailyLimit int, includeFull bool) ([]DayAvailability, error) {
	if windowDays < 0 {
		return nil, ErrInvalidWindow
	}
	if dailyLimit <= 0 {
		return nil, ErrInvalidLimit
	}

	start := models.Day(ref)
	end := start.AddDate(0, 0, windowDays)
	counts, err := counter.CountByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load day counts: %w", err)
	}
	return buildAvailability(start, windowDays, dailyLimit, counts, includeFull), nil
}

func buildAvailability(start time.Time, windowDays, dailyLimit int, counts []store.DayCount, includeFull bool) []DayAvailability {
	taken := make(map[string]int, len(counts))
	for _, c := range counts {
		taken[models.FormatDay(c.Date)] += c.Count
	}

	out := make([]DayAvailability, 0, windowDays+1)
	for i := 0; i <= windowDays; i++ {
		day := start.AddDate(0, 0, i)
		remaining := dailyLimit - taken[models.FormatDay(day)]
		if remaining < 0 {
			remaining = 0
		}
		if remaining == 0 && !includeFull {
			continue
		}
		out = append(out, DayAvailability{Date: day, Remaining: remaining})
	}
	return out
}

// FirstAvailable returns the earliest day in days that still has capacity.
func FirstAvailable(days []DayAvailability) (DayAvailability, bool) {
	for _, d := range days {
		if d.Remaining > 0 {
			return d, true
		}
	}
	return DayAvailability{}, false
}

func containsDay(days []DayAvailability, day time.Time) bool {
	for _, d := range days {
		if d.Date.Equal(day) && d.Remaining > 0 {
			return true
		}
	}
	return false
}
