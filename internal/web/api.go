package web

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/example/nira-appointments/internal/booking"
	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createAppointmentRequest struct {
	FullName       string `json:"full_name"`
	MotherFullName string `json:"mother_full_name"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	NationalID     string `json:"national_id"`
	District       string `json:"district"`
	DateOfBirth    string `json:"date_of_birth"`
	VisitReason    string `json:"visit_reason"`
	PreferredTime  string `json:"preferred_time"`
	Notes          string `json:"notes"`
	VisitDate      string `json:"visit_date"`
}

type createAppointmentResponse struct {
	ConfirmationCode string `json:"confirmation_code"`
	PrintURL         string `json:"print_url"`
	VerifyURL        string `json:"verify_url"`
}

type appointmentResponse struct {
	ConfirmationCode string    `json:"confirmation_code"`
	VisitDate        string    `json:"visit_date"`
	FullName         string    `json:"full_name"`
	MotherFullName   string    `json:"mother_full_name"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email,omitempty"`
	NationalID       string    `json:"national_id,omitempty"`
	District         string    `json:"district"`
	DateOfBirth      string    `json:"date_of_birth"`
	VisitReason      string    `json:"visit_reason"`
	PreferredTime    string    `json:"preferred_time,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (s *Server) handleAPICreateAppointment(w http.ResponseWriter, r *http.Request) {
	var in createAppointmentRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON booking")
		return
	}

	code, err := s.Booking.Reserve(r.Context(), s.Policy, booking.Request{
		FullName:      in.FullName,
		MotherName:    in.MotherFullName,
		Phone:         in.Phone,
		Email:         in.Email,
		NationalID:    in.NationalID,
		District:      in.District,
		DateOfBirth:   in.DateOfBirth,
		VisitReason:   in.VisitReason,
		PreferredTime: in.PreferredTime,
		Notes:         in.Notes,
		VisitDate:     in.VisitDate,
	})
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createAppointmentResponse{
		ConfirmationCode: code,
		PrintURL:         s.BaseURL + "/appointment/" + code + "/print",
		VerifyURL:        s.verifyURL(code),
	})
}

func (s *Server) handleAPIGetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := s.Booking.Lookup(r.Context(), r.PathValue("code"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(a))
}

func toAppointmentResponse(a models.Appointment) appointmentResponse {
	return appointmentResponse{
		ConfirmationCode: a.ConfirmationCode,
		VisitDate:        models.FormatDay(a.VisitDate),
		FullName:         a.FullName,
		MotherFullName:   a.MotherName,
		Phone:            a.Phone,
		Email:            a.Email,
		NationalID:       a.NationalID,
		District:         a.District,
		DateOfBirth:      models.FormatDay(a.DateOfBirth),
		VisitReason:      a.VisitReason,
		PreferredTime:    a.PreferredTime,
		Notes:            a.Notes,
		CreatedAt:        a.CreatedAt,
	}
}

func mapError(err error) (int, string, string) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, verr.Key, verr.Message
	case errors.Is(err, store.ErrDayFull):
		return http.StatusConflict, booking.KeyDayFull, booking.DayFullMessage
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", "appointment not found"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapError(err)
	if status == http.StatusInternalServerError {
		log.Printf("request failed method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, code, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
