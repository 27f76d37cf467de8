package booking

import (
	"strings"
	"time"

	"github.com/example/nira-appointments/internal/models"
)

// Message keys returned with a ValidationError.
const (
	KeyFullNameRequired     = "full_name_required"
	KeyMotherNameRequired   = "mother_name_required"
	KeyPhoneRequired        = "phone_required"
	KeyDistrictRequired     = "district_required"
	KeyDateOfBirthRequired  = "date_of_birth_required"
	KeyVisitReasonRequired  = "visit_reason_required"
	KeyVisitDateUnavailable = "visit_date_unavailable"
	KeyDayFull              = "day_full"
)

const DayFullMessage = "That day just filled up. Please choose another date."

var DefaultBirthDateFormats = []string{"02/01/2006", "2/1/2006", "2006-01-02", "2006-1-2"}

// ValidationError is a user-correctable rejection of a booking request.
type ValidationError struct {
	Field   string
	Key     string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func newValidationError(field, key, message string) *ValidationError {
	return &ValidationError{Field: field, Key: key, Message: message}
}

func errVisitDateUnavailable() *ValidationError {
	return newValidationError("visit_date", KeyVisitDateUnavailable,
		"That date is not available anymore. Please pick another day.")
}

func errDateOfBirth() *ValidationError {
	return newValidationError("date_of_birth", KeyDateOfBirthRequired, "Please provide your date of birth.")
}

// Request carries the raw booking form fields.
type Request struct {
	FullName      string
	MotherName    string
	Phone         string
	Email         string
	NationalID    string
	District      string
	DateOfBirth   string
	VisitReason   string
	PreferredTime string
	Notes         string
	VisitDate     string
}

func (r Request) trimmed() Request {
	return Request{
		FullName:      strings.TrimSpace(r.FullName),
		MotherName:    strings.TrimSpace(r.MotherName),
		Phone:         strings.TrimSpace(r.Phone),
		Email:         strings.TrimSpace(r.Email),
		NationalID:    strings.TrimSpace(r.NationalID),
		District:      strings.TrimSpace(r.District),
		DateOfBirth:   strings.TrimSpace(r.DateOfBirth),
		VisitReason:   strings.TrimSpace(r.VisitReason),
		PreferredTime: strings.TrimSpace(r.PreferredTime),
		Notes:         strings.TrimSpace(r.Notes),
		VisitDate:     strings.TrimSpace(r.VisitDate),
	}
}

// checkRequired returns the first missing required field, in form order.
func (r Request) checkRequired() *ValidationError {
	required := []struct {
		value string
		err   func() *ValidationError
	}{
		{r.FullName, func() *ValidationError {
			return newValidationError("full_name", KeyFullNameRequired, "Please add your full name so we can reserve your slot.")
		}},
		{r.MotherName, func() *ValidationError {
			return newValidationError("mother_name", KeyMotherNameRequired, "Add your mother's full name for identification.")
		}},
		{r.Phone, func() *ValidationError {
			return newValidationError("phone", KeyPhoneRequired, "Phone number is required so we can reach you.")
		}},
		{r.District, func() *ValidationError {
			return newValidationError("district", KeyDistrictRequired, "District is required.")
		}},
		{r.DateOfBirth, errDateOfBirth},
		{r.VisitReason, func() *ValidationError {
			return newValidationError("visit_reason", KeyVisitReasonRequired, "Tell us your purpose to personalize support.")
		}},
	}
	for _, f := range required {
		if f.value == "" {
			return f.err()
		}
	}
	return nil
}

// ParseBirthDate tries each layout in order and returns the first match.
func ParseBirthDate(raw string, layouts []string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if len(layouts) == 0 {
		layouts = DefaultBirthDateFormats
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.Day(t), true
		}
	}
	return time.Time{}, false
}
