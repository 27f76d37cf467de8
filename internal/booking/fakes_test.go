package booking

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

type fakeStore struct {
	CountByDateRangeFunc      func(ctx context.Context, from, to time.Time) ([]store.DayCount, error)
	SlotsTakenFunc            func(ctx context.Context, day time.Time) (int, error)
	InsertWithinCapacityFunc  func(ctx context.Context, a *models.Appointment, dailyLimit int, guard func() error) error
	GetByConfirmationCodeFunc func(ctx context.Context, code string) (models.Appointment, error)
	ListByDateFunc            func(ctx context.Context, day time.Time) ([]models.Appointment, error)
	CountsByDateFunc          func(ctx context.Context) ([]store.DayCount, error)

	countCalls  atomic.Int32
	insertCalls atomic.Int32
}

func (f *fakeStore) CountByDateRange(ctx context.Context, from, to time.Time) ([]store.DayCount, error) {
	f.countCalls.Add(1)
	if f.CountByDateRangeFunc != nil {
		return f.CountByDateRangeFunc(ctx, from, to)
	}
	return nil, nil
}

func (f *fakeStore) SlotsTaken(ctx context.Context, day time.Time) (int, error) {
	if f.SlotsTakenFunc != nil {
		return f.SlotsTakenFunc(ctx, day)
	}
	return 0, nil
}

func (f *fakeStore) InsertWithinCapacity(ctx context.Context, a *models.Appointment, dailyLimit int, guard func() error) error {
	f.insertCalls.Add(1)
	if f.InsertWithinCapacityFunc != nil {
		return f.InsertWithinCapacityFunc(ctx, a, dailyLimit, guard)
	}
	if guard != nil {
		if err := guard(); err != nil {
			return err
		}
	}
	a.ID = int64(f.insertCalls.Load())
	a.CreatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) GetByConfirmationCode(ctx context.Context, code string) (models.Appointment, error) {
	if f.GetByConfirmationCodeFunc != nil {
		return f.GetByConfirmationCodeFunc(ctx, code)
	}
	return models.Appointment{}, store.ErrNotFound
}

func (f *fakeStore) ListByDate(ctx context.Context, day time.Time) ([]models.Appointment, error) {
	if f.ListByDateFunc != nil {
		return f.ListByDateFunc(ctx, day)
	}
	return nil, nil
}

func (f *fakeStore) CountsByDate(ctx context.Context) ([]store.DayCount, error) {
	if f.CountsByDateFunc != nil {
		return f.CountsByDateFunc(ctx)
	}
	return nil, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
