package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

// Store is the GORM implementation of store.Store.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func (s *Store) Migrate(ctx context.Context) error {
	return AutoMigrate(s.db.WithContext(ctx))
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CountByDateRange(ctx context.Context, from, to time.Time) ([]store.DayCount, error) {
	var rows []dayCountRow
	err := s.db.WithContext(ctx).
		Model(&appointmentRow{}).
		Select("visit_date, COUNT(*) AS taken").
		Where("visit_date BETWEEN ? AND ?", dateOf(from), dateOf(to)).
		Group("visit_date").
		Order("visit_date").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count by date range: %w", err)
	}
	return toDayCounts(rows), nil
}

func (s *Store) CountsByDate(ctx context.Context) ([]store.DayCount, error) {
	var rows []dayCountRow
	err := s.db.WithContext(ctx).
		Model(&appointmentRow{}).
		Select("visit_date, COUNT(*) AS taken").
		Group("visit_date").
		Order("visit_date").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counts by date: %w", err)
	}
	return toDayCounts(rows), nil
}

func (s *Store) SlotsTaken(ctx context.Context, day time.Time) (int, error) {
	var taken int64
	err := s.db.WithContext(ctx).
		Model(&appointmentRow{}).
		Where("visit_date = ?", dateOf(day)).
		Count(&taken).Error
	if err != nil {
		return 0, fmt.Errorf("slots taken: %w", err)
	}
	return int(taken), nil
}

func (s *Store) InsertWithinCapacity(ctx context.Context, a *models.Appointment, dailyLimit int, guard func() error) error {
	day := dateOf(a.VisitDate)
	row := toRow(a)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&visitDayLock{VisitDate: day}).Error; err != nil {
			return fmt.Errorf("ensure visit day lock: %w", err)
		}
		// no-op on SQLite, where the immediate transaction already holds the write lock
		var lock visitDayLock
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("visit_date = ?", day).Take(&lock).Error; err != nil {
			return fmt.Errorf("lock visit date: %w", err)
		}

		if guard != nil {
			if err := guard(); err != nil {
				return err
			}
		}

		var taken int64
		if err := tx.Model(&appointmentRow{}).Where("visit_date = ?", day).Count(&taken).Error; err != nil {
			return fmt.Errorf("slots taken: %w", err)
		}
		if taken >= int64(dailyLimit) {
			return store.ErrDayFull
		}

		row.CreatedAt = time.Now().UTC()
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.ID = row.ID
	a.VisitDate = time.Time(day)
	a.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) GetByConfirmationCode(ctx context.Context, code string) (models.Appointment, error) {
	var row appointmentRow
	err := s.db.WithContext(ctx).Take(&row, "confirmation_code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Appointment{}, store.ErrNotFound
		}
		return models.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return row.toModel(), nil
}

func (s *Store) ListByDate(ctx context.Context, day time.Time) ([]models.Appointment, error) {
	var rows []appointmentRow
	err := s.db.WithContext(ctx).
		Where("visit_date = ?", dateOf(day)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list by date: %w", err)
	}

	out := make([]models.Appointment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) CreateStaffUser(ctx context.Context, username, passwordHash string) (models.StaffUser, error) {
	row := staffUserRow{Username: username, PasswordBcrypt: passwordHash, CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.StaffUser{}, store.ErrUserExists
		}
		return models.StaffUser{}, fmt.Errorf("create staff user: %w", err)
	}
	return row.toModel(), nil
}

func (s *Store) GetStaffUser(ctx context.Context, username string) (models.StaffUser, error) {
	var row staffUserRow
	err := s.db.WithContext(ctx).Take(&row, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.StaffUser{}, store.ErrNotFound
		}
		return models.StaffUser{}, fmt.Errorf("get staff user: %w", err)
	}
	return row.toModel(), nil
}

func dateOf(t time.Time) datatypes.Date {
	return datatypes.Date(models.Day(t))
}

func toDayCounts(rows []dayCountRow) []store.DayCount {
	out := make([]store.DayCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.DayCount{Date: models.Day(time.Time(r.VisitDate)), Count: int(r.Taken)})
	}
	return out
}
