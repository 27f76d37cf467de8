package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

// Policy is the booking configuration applied to a single call.
type Policy struct {
	DailyLimit       int
	WindowDays       int
	BirthDateFormats []string
}

func DefaultPolicy() Policy {
	return Policy{DailyLimit: 20, WindowDays: 30, BirthDateFormats: DefaultBirthDateFormats}
}

type Service struct {
	store  store.AppointmentStore
	now    func() time.Time
	loc    *time.Location
	tracer trace.Tracer
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone that decides which calendar day is today.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewService(st store.AppointmentStore, opts ...Option) *Service {
	s := &Service{
		store:  st,
		now:    time.Now,
		loc:    time.UTC,
		tracer: otel.Tracer("github.com/example/nira-appointments/internal/booking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the first bookable day.
func (s *Service) Today() time.Time {
	return models.Day(s.now().In(s.loc))
}

func (s *Service) Availability(ctx context.Context, p Policy, includeFull bool) ([]DayAvailability, error) {
	return ComputeAvailability(ctx, s.store, s.Today(), p.WindowDays, p.DailyLimit, includeFull)
}

func (s *Service) SlotsTaken(ctx context.Context, day time.Time) (int, error) {
	return s.store.SlotsTaken(ctx, models.Day(day))
}

// Reserve validates req against current availability and books one slot.
// It returns the confirmation code, a *ValidationError for the first failing
// rule, store.ErrDayFull when the last slot was taken concurrently, or a
// wrapped store failure.
func (s *Service) Reserve(ctx context.Context, p Policy, req Request) (string, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Reserve")
	defer span.End()

	a, err := s.validate(ctx, p, req)
	if err != nil {
		recordOutcome(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("visit_date", models.FormatDay(a.VisitDate)))

	a.ConfirmationCode = NewConfirmationCode()
	guard := func() error {
		today := s.Today()
		if a.VisitDate.Before(today) || a.VisitDate.After(today.AddDate(0, 0, p.WindowDays)) {
			return errVisitDateUnavailable()
		}
		return nil
	}

	if err := s.store.InsertWithinCapacity(ctx, a, p.DailyLimit, guard); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) && !errors.Is(err, store.ErrDayFull) {
			err = fmt.Errorf("reserve appointment: %w", err)
		}
		recordOutcome(span, err)
		return "", err
	}

	recordOutcome(span, nil)
	return a.ConfirmationCode, nil
}

func (s *Service) validate(ctx context.Context, p Policy, req Request) (*models.Appointment, error) {
	r := req.trimmed()
	if verr := r.checkRequired(); verr != nil {
		return nil, verr
	}

	visitDate, err := models.ParseDay(r.VisitDate)
	if err != nil {
		return nil, errVisitDateUnavailable()
	}
	available, err := s.Availability(ctx, p, false)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	if !containsDay(available, visitDate) {
		return nil, errVisitDateUnavailable()
	}

	dob, ok := ParseBirthDate(r.DateOfBirth, p.BirthDateFormats)
	if !ok {
		return nil, errDateOfBirth()
	}

	return &models.Appointment{
		VisitDate:     visitDate,
		FullName:      r.FullName,
		MotherName:    r.MotherName,
		Phone:         r.Phone,
		Email:         r.Email,
		NationalID:    r.NationalID,
		District:      r.District,
		DateOfBirth:   dob,
		VisitReason:   r.VisitReason,
		PreferredTime: r.PreferredTime,
		Notes:         r.Notes,
	}, nil
}

// Lookup finds an appointment by its confirmation code.
func (s *Service) Lookup(ctx context.Context, code string) (models.Appointment, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return models.Appointment{}, store.ErrNotFound
	}
	return s.store.GetByConfirmationCode(ctx, code)
}

func (s *Service) ListByDate(ctx context.Context, day time.Time) ([]models.Appointment, error) {
	return s.store.ListByDate(ctx, models.Day(day))
}

func (s *Service) DayCounts(ctx context.Context) ([]store.DayCount, error) {
	return s.store.CountsByDate(ctx)
}

// NewConfirmationCode returns 32 lowercase hex characters from a random UUID.
func NewConfirmationCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func recordOutcome(span trace.Span, err error) {
	var verr *ValidationError
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("outcome", "booked"))
	case errors.As(err, &verr):
		span.SetAttributes(attribute.String("outcome", "rejected"), attribute.String("reason", verr.Key))
	case errors.Is(err, store.ErrDayFull):
		span.SetAttributes(attribute.String("outcome", "rejected"), attribute.String("reason", KeyDayFull))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
