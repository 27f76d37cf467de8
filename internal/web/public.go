package web

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/example/nira-appointments/internal/booking"
	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

func (s *Server) handleBookingForm(w http.ResponseWriter, r *http.Request) {
	s.renderBookingForm(w, r, http.StatusOK, booking.Request{}, "")
}

func (s *Server) handleBookingSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := bookingRequestFromForm(r)

	code, err := s.Booking.Reserve(r.Context(), s.Policy, req)
	if err == nil {
		http.Redirect(w, r, "/appointment/"+code+"/print", http.StatusSeeOther)
		return
	}

	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		s.renderBookingForm(w, r, http.StatusUnprocessableEntity, req, verr.Message)
	case errors.Is(err, store.ErrDayFull):
		s.renderBookingForm(w, r, http.StatusConflict, req, booking.DayFullMessage)
	default:
		s.serverError(w, r, err)
	}
}

// renderBookingForm reloads availability so a rejected submission sees the
// current state of the window.
func (s *Server) renderBookingForm(w http.ResponseWriter, r *http.Request, status int, form booking.Request, flash string) {
	days, err := s.Booking.Availability(r.Context(), s.Policy, true)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	selected := form.VisitDate
	if selected == "" {
		if first, ok := booking.FirstAvailable(days); ok {
			selected = models.FormatDay(first.Date)
		}
	}

	data := tmplData{
		Title:      "Book a visit",
		Days:       days,
		DailyLimit: s.Policy.DailyLimit,
		Districts:  booking.Districts,
		Form:       form,
		Selected:   selected,
		Flash:      flash,
	}
	if flash != "" {
		data.FlashKind = "error"
	}
	s.render(w, status, "templates/book.html", data)
}

func bookingRequestFromForm(r *http.Request) booking.Request {
	return booking.Request{
		FullName:      r.PostFormValue("full_name"),
		MotherName:    r.PostFormValue("mother_full_name"),
		Phone:         r.PostFormValue("phone"),
		Email:         r.PostFormValue("email"),
		NationalID:    r.PostFormValue("national_id"),
		District:      r.PostFormValue("district"),
		DateOfBirth:   r.PostFormValue("date_of_birth"),
		VisitReason:   r.PostFormValue("visit_reason"),
		PreferredTime: r.PostFormValue("preferred_time"),
		Notes:         r.PostFormValue("notes"),
		VisitDate:     r.PostFormValue("visit_date"),
	}
}

type availabilityResponse struct {
	AvailableDates []booking.DayAvailability `json:"available_dates"`
	DailyLimit     int                       `json:"daily_limit"`
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	days, err := s.Booking.Availability(r.Context(), s.Policy, false)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{AvailableDates: days, DailyLimit: s.Policy.DailyLimit})
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	a, err := s.Booking.Lookup(r.Context(), code)
	if err != nil {
		if isNotFound(err) {
			s.renderNotFound(w, code)
			return
		}
		s.serverError(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "templates/confirmation.html", tmplData{
		Title:       "Appointment confirmation",
		Appointment: &a,
		VerifyURL:   s.verifyURL(a.ConfirmationCode),
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	data := tmplData{Title: "Verify appointment", Code: code}
	if code == "" {
		s.render(w, http.StatusOK, "templates/verify.html", data)
		return
	}

	a, err := s.Booking.Lookup(r.Context(), code)
	if err != nil {
		if isNotFound(err) {
			s.renderNotFound(w, code)
			return
		}
		s.serverError(w, r, err)
		return
	}
	data.Searched = true
	data.Appointment = &a
	s.render(w, http.StatusOK, "templates/verify.html", data)
}

func (s *Server) verifyURL(code string) string {
	return s.BaseURL + "/verify?code=" + url.QueryEscape(code)
}
