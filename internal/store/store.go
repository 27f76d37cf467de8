package store

import (
	"context"
	"time"

	"github.com/example/nira-appointments/internal/models"
)

// DayCount is the number of appointments booked for one visit date.
type DayCount struct {
	Date  time.Time
	Count int
}

type AppointmentStore interface {
	// CountByDateRange returns per-date counts for visit dates in [from, to],
	// ascending. Dates without bookings are omitted.
	CountByDateRange(ctx context.Context, from, to time.Time) ([]DayCount, error)
	SlotsTaken(ctx context.Context, day time.Time) (int, error)
	// InsertWithinCapacity commits a only if fewer than dailyLimit appointments
	// exist for a.VisitDate. The count and insert run in one transaction that
	// holds a per-date lock; guard, when non-nil, runs under that lock before
	// the count and aborts the insert by returning an error. On success a.ID
	// and a.CreatedAt are set.
	InsertWithinCapacity(ctx context.Context, a *models.Appointment, dailyLimit int, guard func() error) error
	GetByConfirmationCode(ctx context.Context, code string) (models.Appointment, error)
	// ListByDate returns the appointments for day, newest first.
	ListByDate(ctx context.Context, day time.Time) ([]models.Appointment, error)
	// CountsByDate returns counts for every date with at least one booking.
	CountsByDate(ctx context.Context) ([]DayCount, error)
}

type StaffStore interface {
	CreateStaffUser(ctx context.Context, username, passwordHash string) (models.StaffUser, error)
	GetStaffUser(ctx context.Context, username string) (models.StaffUser, error)
}

type Store interface {
	AppointmentStore
	StaffStore
	Ping(ctx context.Context) error
	Close() error
}
