package web

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/example/nira-appointments/internal/auth"
	"github.com/example/nira-appointments/internal/booking"
	"github.com/example/nira-appointments/internal/models"
)

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.Auth.GetSession(r); ok {
		http.Redirect(w, r, "/admin/appointments", http.StatusFound)
		return
	}
	s.render(w, http.StatusOK, "templates/login.html", tmplData{Title: "Staff login"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	sess, err := s.Auth.Authenticate(r.Context(), username, password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			log.Printf("staff login failed username=%s err=%v", username, err)
		}
		s.render(w, http.StatusUnauthorized, "templates/login.html", tmplData{
			Title:     "Staff login",
			Flash:     "Invalid credentials. Try again.",
			FlashKind: "error",
		})
		return
	}
	if err := s.Auth.SetSession(w, r, sess); err != nil {
		s.serverError(w, r, err)
		return
	}
	log.Printf("staff login username=%s", sess.Username)
	http.Redirect(w, r, "/admin/appointments", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Auth.ClearSession(w, r); err != nil {
		log.Printf("revoke session err=%v", err)
	}
	http.Redirect(w, r, "/admin/login", http.StatusFound)
}

func (s *Server) handleAdminDates(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	counts, err := s.Booking.DayCounts(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	today := s.Booking.Today()
	s.render(w, http.StatusOK, "templates/admin_dates.html", tmplData{
		Title:      "Appointments",
		Staff:      sess.Username,
		Summary:    booking.Summarize(counts, today),
		Day:        today,
		DailyLimit: s.Policy.DailyLimit,
	})
}

func (s *Server) handleAdminDay(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	day, err := models.ParseDay(r.PathValue("date"))
	if err != nil {
		http.Redirect(w, r, "/admin/appointments", http.StatusFound)
		return
	}
	list, err := s.Booking.ListByDate(r.Context(), day)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "templates/admin_day.html", tmplData{
		Title:        "Appointments on " + models.FormatDay(day),
		Staff:        sess.Username,
		Day:          day,
		DailyLimit:   s.Policy.DailyLimit,
		Appointments: list,
	})
}
