package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/nira-appointments/internal/db"
	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

const uniqueViolation = "23505"

type Store struct {
	db *db.DB
}

func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

const appointmentColumns = `id, confirmation_code, visit_date, full_name, mother_name, phone, email, national_id,
district, date_of_birth, visit_reason, preferred_time, notes, created_at`

func (s *Store) CountByDateRange(ctx context.Context, from, to time.Time) ([]store.DayCount, error) {
	rows, err := s.db.Query(ctx, `
SELECT visit_date, COUNT(*)
FROM appointments
WHERE visit_date BETWEEN $1 AND $2
GROUP BY visit_date
ORDER BY visit_date`, models.Day(from), models.Day(to))
	if err != nil {
		return nil, fmt.Errorf("count by date range: %w", err)
	}
	return scanDayCounts(rows)
}

func (s *Store) CountsByDate(ctx context.Context) ([]store.DayCount, error) {
	rows, err := s.db.Query(ctx, `
SELECT visit_date, COUNT(*)
FROM appointments
GROUP BY visit_date
ORDER BY visit_date`)
	if err != nil {
		return nil, fmt.Errorf("counts by date: %w", err)
	}
	return scanDayCounts(rows)
}

func (s *Store) SlotsTaken(ctx context.Context, day time.Time) (int, error) {
	var taken int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE visit_date = $1`, models.Day(day)).Scan(&taken)
	if err != nil {
		return 0, fmt.Errorf("slots taken: %w", err)
	}
	return taken, nil
}

func (s *Store) InsertWithinCapacity(ctx context.Context, a *models.Appointment, dailyLimit int, guard func() error) (err error) {
	day := models.Day(a.VisitDate)

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// serializes writers for one visit date; released at commit or rollback
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "visit_date:"+models.FormatDay(day)); err != nil {
		return fmt.Errorf("lock visit date: %w", err)
	}

	if guard != nil {
		if err = guard(); err != nil {
			return err
		}
	}

	var taken int
	if err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE visit_date = $1`, day).Scan(&taken); err != nil {
		return fmt.Errorf("slots taken: %w", err)
	}
	if taken >= dailyLimit {
		err = store.ErrDayFull
		return err
	}

	err = tx.QueryRow(ctx, `
INSERT INTO appointments(confirmation_code, visit_date, full_name, mother_name, phone, email, national_id,
	district, date_of_birth, visit_reason, preferred_time, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id, created_at`,
		a.ConfirmationCode, day, a.FullName, a.MotherName, a.Phone, nullIfEmpty(a.Email), nullIfEmpty(a.NationalID),
		a.District, models.Day(a.DateOfBirth), a.VisitReason, nullIfEmpty(a.PreferredTime), nullIfEmpty(a.Notes),
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	a.VisitDate = day
	a.CreatedAt = a.CreatedAt.UTC()
	return nil
}

func (s *Store) GetByConfirmationCode(ctx context.Context, code string) (models.Appointment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE confirmation_code = $1`, code)
	a, err := scanAppointment(row)
	if err != nil {
		if db.IsNotFound(err) {
			return models.Appointment{}, store.ErrNotFound
		}
		return models.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (s *Store) ListByDate(ctx context.Context, day time.Time) ([]models.Appointment, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+appointmentColumns+`
FROM appointments
WHERE visit_date = $1
ORDER BY created_at DESC, id DESC`, models.Day(day))
	if err != nil {
		return nil, fmt.Errorf("list by date: %w", err)
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateStaffUser(ctx context.Context, username, passwordHash string) (models.StaffUser, error) {
	u := models.StaffUser{Username: username, PasswordHash: passwordHash}
	err := s.db.QueryRow(ctx, `
INSERT INTO staff_users(username, password_bcrypt)
VALUES ($1,$2)
RETURNING id, created_at`, username, passwordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.StaffUser{}, store.ErrUserExists
		}
		return models.StaffUser{}, fmt.Errorf("create staff user: %w", err)
	}
	return u, nil
}

func (s *Store) GetStaffUser(ctx context.Context, username string) (models.StaffUser, error) {
	var u models.StaffUser
	err := s.db.QueryRow(ctx, `SELECT id, username, password_bcrypt, created_at FROM staff_users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return models.StaffUser{}, store.ErrNotFound
		}
		return models.StaffUser{}, fmt.Errorf("get staff user: %w", err)
	}
	return u, nil
}

func scanDayCounts(rows db.Rows) ([]store.DayCount, error) {
	defer rows.Close()

	var out []store.DayCount
	for rows.Next() {
		var c store.DayCount
		if err := rows.Scan(&c.Date, &c.Count); err != nil {
			return nil, err
		}
		c.Date = models.Day(c.Date)
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanAppointment(row db.Row) (models.Appointment, error) {
	var a models.Appointment
	var email, nationalID, preferredTime, notes *string
	if err := row.Scan(
		&a.ID, &a.ConfirmationCode, &a.VisitDate, &a.FullName, &a.MotherName, &a.Phone, &email, &nationalID,
		&a.District, &a.DateOfBirth, &a.VisitReason, &preferredTime, &notes, &a.CreatedAt,
	); err != nil {
		return models.Appointment{}, err
	}
	a.VisitDate = models.Day(a.VisitDate)
	a.DateOfBirth = models.Day(a.DateOfBirth)
	a.CreatedAt = a.CreatedAt.UTC()
	a.Email = deref(email)
	a.NationalID = deref(nationalID)
	a.PreferredTime = deref(preferredTime)
	a.Notes = deref(notes)
	return a, nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
