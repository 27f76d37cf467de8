package gormstore

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/nira-appointments/internal/models"
)

// appointments
type appointmentRow struct {
	ID               int64          `gorm:"primaryKey;autoIncrement"`
	ConfirmationCode string         `gorm:"type:varchar(32);not null;uniqueIndex"`
	VisitDate        datatypes.Date `gorm:"not null;index"`
	FullName         string         `gorm:"type:varchar(255);not null"`
	MotherName       string         `gorm:"type:varchar(255);not null"`
	Phone            string         `gorm:"type:varchar(64);not null"`
	Email            *string        `gorm:"type:varchar(255)"`
	NationalID       *string        `gorm:"type:varchar(64)"`
	District         string         `gorm:"type:varchar(128);not null"`
	DateOfBirth      datatypes.Date `gorm:"not null"`
	VisitReason      string         `gorm:"type:text;not null"`
	PreferredTime    *string        `gorm:"type:varchar(32)"`
	Notes            *string        `gorm:"type:text"`
	CreatedAt        time.Time      `gorm:"not null"`
}

func (appointmentRow) TableName() string { return "appointments" }

// staff_users
type staffUserRow struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Username       string    `gorm:"type:varchar(80);not null;uniqueIndex"`
	PasswordBcrypt string    `gorm:"type:varchar(255);not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (staffUserRow) TableName() string { return "staff_users" }

// visit_day_locks holds one row per reserved visit date; writers lock it
// before counting.
type visitDayLock struct {
	VisitDate datatypes.Date `gorm:"primaryKey"`
}

func (visitDayLock) TableName() string { return "visit_day_locks" }

type dayCountRow struct {
	VisitDate datatypes.Date
	Taken     int64
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&appointmentRow{},
		&staffUserRow{},
		&visitDayLock{},
	)
}

func toRow(a *models.Appointment) appointmentRow {
	return appointmentRow{
		ConfirmationCode: a.ConfirmationCode,
		VisitDate:        datatypes.Date(models.Day(a.VisitDate)),
		FullName:         a.FullName,
		MotherName:       a.MotherName,
		Phone:            a.Phone,
		Email:            nullIfEmpty(a.Email),
		NationalID:       nullIfEmpty(a.NationalID),
		District:         a.District,
		DateOfBirth:      datatypes.Date(models.Day(a.DateOfBirth)),
		VisitReason:      a.VisitReason,
		PreferredTime:    nullIfEmpty(a.PreferredTime),
		Notes:            nullIfEmpty(a.Notes),
	}
}

func (r appointmentRow) toModel() models.Appointment {
	return models.Appointment{
		ID:               r.ID,
		ConfirmationCode: r.ConfirmationCode,
		VisitDate:        models.Day(time.Time(r.VisitDate)),
		FullName:         r.FullName,
		MotherName:       r.MotherName,
		Phone:            r.Phone,
		Email:            deref(r.Email),
		NationalID:       deref(r.NationalID),
		District:         r.District,
		DateOfBirth:      models.Day(time.Time(r.DateOfBirth)),
		VisitReason:      r.VisitReason,
		PreferredTime:    deref(r.PreferredTime),
		Notes:            deref(r.Notes),
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

func (r staffUserRow) toModel() models.StaffUser {
	return models.StaffUser{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordBcrypt,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
