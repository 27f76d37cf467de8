package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"expvar"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/example/nira-appointments/internal/auth"
	"github.com/example/nira-appointments/internal/booking"
	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

//go:embed templates/*.html static/*
var fs embed.FS

type Server struct {
	Booking *booking.Service
	Auth    *auth.Store
	Policy  booking.Policy
	Limiter *RateLimiter

	BaseURL string
}

type tmplData struct {
	Title     string
	Staff     string
	Flash     string
	FlashKind string

	// booking form
	Days       []booking.DayAvailability
	DailyLimit int
	Districts  []string
	Form       booking.Request
	Selected   string

	// confirmation / verification
	Appointment *models.Appointment
	VerifyURL   string
	Code        string
	Searched    bool

	// staff pages
	Summary      booking.Summary
	Day          time.Time
	Appointments []models.Appointment
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.FileServer(http.FS(fs)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	limited := func(h http.HandlerFunc) http.Handler {
		if s.Limiter == nil {
			return h
		}
		return s.Limiter.Middleware(h)
	}

	// citizens
	mux.HandleFunc("GET /{$}", s.handleBookingForm)
	mux.Handle("POST /{$}", limited(s.handleBookingSubmit))
	mux.HandleFunc("GET /availability", s.handleAvailability)
	mux.HandleFunc("GET /appointment/{code}/print", s.handlePrint)
	mux.HandleFunc("GET /verify", s.handleVerify)

	// staff
	mux.HandleFunc("GET /admin/login", s.handleLoginForm)
	mux.HandleFunc("POST /admin/login", s.handleLogin)
	mux.HandleFunc("GET /admin/logout", s.handleLogout)
	mux.Handle("GET /admin/appointments", s.Auth.RequireStaff(http.HandlerFunc(s.handleAdminDates)))
	mux.Handle("GET /admin/appointments/{date}", s.Auth.RequireStaff(http.HandlerFunc(s.handleAdminDay)))
	mux.Handle("GET /debug/vars", s.Auth.RequireStaff(expvar.Handler()))

	// json api
	mux.Handle("POST /api/appointments", limited(s.handleAPICreateAppointment))
	mux.HandleFunc("GET /api/appointments/{code}", s.handleAPIGetAppointment)

	return mux
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data tmplData) {
	t, err := template.ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderNotFound(w http.ResponseWriter, code string) {
	s.render(w, http.StatusNotFound, "templates/verify.html", tmplData{
		Title:    "Verify appointment",
		Code:     code,
		Searched: true,
	})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("request failed method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	http.Error(w, "something went wrong, please try again", http.StatusInternalServerError)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// Start serves h on addr until ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("listening addr=%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
