package models

import "time"

// Appointment is a single confirmed visit. It is written once and never
// updated.
type Appointment struct {
	ID               int64     `json:"id"`
	ConfirmationCode string    `json:"confirmation_code"`
	VisitDate        time.Time `json:"-"`
	FullName         string    `json:"full_name"`
	MotherName       string    `json:"mother_name"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email,omitempty"`
	NationalID       string    `json:"national_id,omitempty"`
	District         string    `json:"district"`
	DateOfBirth      time.Time `json:"-"`
	VisitReason      string    `json:"visit_reason"`
	PreferredTime    string    `json:"preferred_time,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type StaffUser struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
