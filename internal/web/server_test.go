package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/nira-appointments/internal/auth"
	"github.com/example/nira-appointments/internal/booking"
	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

var testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// memStore keeps appointments and staff users in memory. insertErr, when set, is returned by
// InsertWithinCapacity instead of writing.
type memStore struct {
	mu           sync.Mutex
	appointments []models.Appointment
	users        map[string]models.StaffUser
	insertErr    error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]models.StaffUser{}}
}

func (m *memStore) countLocked(day time.Time) int {
	n := 0
	for _, a := range m.appointments {
		if a.VisitDate.Equal(day) {
			n++
		}
	}
	return n
}

func (m *memStore) CountByDateRange(ctx context.Context, from, to time.Time) ([]store.DayCount, error) {
	all, _ := m.CountsByDate(ctx)
	var out []store.DayCount
	for _, c := range all {
		if !c.Date.Before(from) && !c.Date.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) CountsByDate(ctx context.Context) ([]store.DayCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDay := map[time.Time]int{}
	for _, a := range m.appointments {
		byDay[a.VisitDate]++
	}
	out := make([]store.DayCount, 0, len(byDay))
	for d, n := range byDay {
		out = append(out, store.DayCount{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memStore) SlotsTaken(ctx context.Context, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(day), nil
}

func (m *memStore) InsertWithinCapacity(ctx context.Context, a *models.Appointment, dailyLimit int, guard func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if guard != nil {
		if err := guard(); err != nil {
			return err
		}
	}
	if m.countLocked(a.VisitDate) >= dailyLimit {
		return store.ErrDayFull
	}
	a.ID = int64(len(m.appointments) + 1)
	a.CreatedAt = testNow.Add(time.Duration(a.ID) * time.Minute)
	m.appointments = append(m.appointments, *a)
	return nil
}

func (m *memStore) GetByConfirmationCode(ctx context.Context, code string) (models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.ConfirmationCode == code {
			return a, nil
		}
	}
	return models.Appointment{}, store.ErrNotFound
}

func (m *memStore) ListByDate(ctx context.Context, day time.Time) ([]models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Appointment
	for i := len(m.appointments) - 1; i >= 0; i-- {
		if m.appointments[i].VisitDate.Equal(day) {
			out = append(out, m.appointments[i])
		}
	}
	return out, nil
}

func (m *memStore) CreateStaffUser(ctx context.Context, username, passwordHash string) (models.StaffUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := models.StaffUser{ID: int64(len(m.users) + 1), Username: username, PasswordHash: passwordHash}
	m.users[username] = u
	return u, nil
}

func (m *memStore) GetStaffUser(ctx context.Context, username string) (models.StaffUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return models.StaffUser{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memStore) seed(t *testing.T, day time.Time, names ...string) {
	t.Helper()
	for _, name := range names {
		a := models.Appointment{
			ConfirmationCode: booking.NewConfirmationCode(),
			VisitDate:        day,
			FullName:         name,
			MotherName:       "Hodan Ali",
			Phone:            "+252610000000",
			District:         "Hodan",
			DateOfBirth:      time.Date(1990, 5, 4, 0, 0, 0, 0, time.UTC),
			VisitReason:      "ID card",
		}
		require.NoError(t, m.InsertWithinCapacity(context.Background(), &a, 1000, nil))
	}
}

func newTestServer(t *testing.T, st *memStore, limiter *RateLimiter) http.Handler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = st.CreateStaffUser(context.Background(), "clerk", string(hash))
	require.NoError(t, err)

	s := &Server{
		Booking: booking.NewService(st, booking.WithClock(func() time.Time { return testNow })),
		Auth:    auth.NewStore(st, []byte("0123456789abcdef0123456789abcdef"), []byte("abcdef0123456789")),
		Policy:  booking.Policy{DailyLimit: 2, WindowDays: 3, BirthDateFormats: booking.DefaultBirthDateFormats},
		Limiter: limiter,
		BaseURL: "https://book.example.so",
	}
	return LoggingMiddleware(s.Routes())
}

func validForm() url.Values {
	return url.Values{
		"full_name":        {"Amina Yusuf"},
		"mother_full_name": {"Hodan Ali"},
		"phone":            {"+252610000000"},
		"district":         {"Hodan"},
		"date_of_birth":    {"04/05/1990"},
		"visit_reason":     {"Passport renewal"},
		"visit_date":       {"2024-01-02"},
	}
}

func do(h http.Handler, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(h http.Handler, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(h, req, cookies...)
}

func get(h http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return do(h, httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func TestBookingFormShowsWindow(t *testing.T) {
	st := newMemStore()
	st.seed(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "A", "B")
	h := newTestServer(t, st, nil)

	rec := get(h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Hawle Wadaag")
	assert.Contains(t, body, `value="2024-01-01"`)
	assert.NotContains(t, body, `value="2024-01-02"`)
	assert.Contains(t, body, "Full")
	assert.Contains(t, body, "Up to 2 visits")
}

func TestBookingSubmitRedirectsToPrintPage(t *testing.T) {
	st := newMemStore()
	h := newTestServer(t, st, nil)

	rec := postForm(h, "/", validForm())
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/appointment/") && strings.HasSuffix(loc, "/print"), loc)
	code := strings.TrimSuffix(strings.TrimPrefix(loc, "/appointment/"), "/print")

	rec = get(h, loc)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, code)
	assert.Contains(t, body, "Amina Yusuf")
	assert.Contains(t, body, "Tuesday 02 January 2024")
	assert.Contains(t, body, "https://book.example.so/verify?code="+code)

	taken, err := st.SlotsTaken(context.Background(), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, taken)
}

func TestBookingSubmitShowsFirstError(t *testing.T) {
	st := newMemStore()
	h := newTestServer(t, st, nil)

	form := validForm()
	form.Set("full_name", " ")
	form.Set("district", "")
	rec := postForm(h, "/", form)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Please add your full name so we can reserve your slot.")
	assert.NotContains(t, body, "District is required.")
	// the rest of the form is preserved
	assert.Contains(t, body, `value="Hodan Ali"`)

	form = validForm()
	form.Set("date_of_birth", "31/02/2024")
	rec = postForm(h, "/", form)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please provide your date of birth.")

	assert.Empty(t, st.appointments)
}

func TestBookingSubmitDayFilledUp(t *testing.T) {
	st := newMemStore()
	st.insertErr = store.ErrDayFull
	h := newTestServer(t, st, nil)

	rec := postForm(h, "/", validForm())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "That day just filled up. Please choose another date.")
}

func TestAvailabilityJSON(t *testing.T) {
	st := newMemStore()
	st.seed(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), "A", "B")
	st.seed(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "C")
	h := newTestServer(t, st, nil)

	rec := get(h, "/availability")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"available_dates": [
			{"date": "2024-01-01", "remaining": 2},
			{"date": "2024-01-02", "remaining": 1},
			{"date": "2024-01-04", "remaining": 2}
		],
		"daily_limit": 2
	}`, rec.Body.String())
}

func TestVerify(t *testing.T) {
	st := newMemStore()
	st.seed(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "Farah Abdi")
	h := newTestServer(t, st, nil)
	code := st.appointments[0].ConfirmationCode

	rec := get(h, "/verify")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Valid appointment")

	rec = get(h, "/verify?code="+strings.ToUpper(code))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Valid appointment")
	assert.Contains(t, rec.Body.String(), "Farah Abdi")

	rec = get(h, "/verify?code=deadbeef")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No appointment was found")

	rec = get(h, "/appointment/deadbeef/print")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func loginAs(t *testing.T, h http.Handler, password string) *httptest.ResponseRecorder {
	t.Helper()
	return postForm(h, "/admin/login", url.Values{"username": {"clerk"}, "password": {password}})
}

func TestAdminPages(t *testing.T) {
	st := newMemStore()
	st.seed(t, time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC), "Old Visitor")
	st.seed(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "Today Visitor")
	st.seed(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "First Caller", "Second Caller")
	h := newTestServer(t, st, nil)

	rec := get(h, "/admin/appointments")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))

	rec = loginAs(t, h, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")

	rec = loginAs(t, h, "s3cret")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/appointments", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = get(h, "/admin/login", cookies...)
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = get(h, "/admin/appointments", cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<strong>4</strong>") // total
	assert.Contains(t, body, "<strong>3</strong>") // upcoming
	assert.Contains(t, body, "/admin/appointments/2024-01-02")
	assert.Contains(t, body, "clerk")

	rec = get(h, "/admin/appointments/2024-01-02", cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	first := strings.Index(body, "Second Caller")
	second := strings.Index(body, "First Caller")
	require.True(t, first >= 0 && second >= 0)
	assert.Less(t, first, second, "newest booking is listed first")

	rec = get(h, "/admin/appointments/not-a-date", cookies...)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/appointments", rec.Header().Get("Location"))

	rec = get(h, "/admin/logout", cookies...)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))
}

func TestAPICreateAndGetAppointment(t *testing.T) {
	st := newMemStore()
	h := newTestServer(t, st, nil)

	payload := `{"full_name":"Amina Yusuf","mother_full_name":"Hodan Ali","phone":"+252610000000",
		"district":"Hodan","date_of_birth":"1990-05-04","visit_reason":"Passport","visit_date":"2024-01-03",
		"national_id":"SO-1234"}`
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := do(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created createAppointmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Len(t, created.ConfirmationCode, 32)
	assert.Equal(t, "https://book.example.so/appointment/"+created.ConfirmationCode+"/print", created.PrintURL)

	rec = get(h, "/api/appointments/"+created.ConfirmationCode)
	require.Equal(t, http.StatusOK, rec.Code)
	var got appointmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "2024-01-03", got.VisitDate)
	assert.Equal(t, "1990-05-04", got.DateOfBirth)
	assert.Equal(t, "SO-1234", got.NationalID)
	assert.Equal(t, "Hodan Ali", got.MotherFullName)

	rec = get(h, "/api/appointments/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"not_found","message":"appointment not found"}}`, rec.Body.String())
}

func TestAPIErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		insertErr error
		status    int
		code      string
	}{
		{"bad json", `{"full_name":`, nil, http.StatusBadRequest, "invalid_json"},
		{"unknown field", `{"nickname":"x"}`, nil, http.StatusBadRequest, "invalid_json"},
		{"validation", `{"full_name":"A","mother_full_name":"B","phone":"1","district":"Hodan","date_of_birth":"04/05/1990","visit_reason":"x","visit_date":"2024-02-01"}`, nil, http.StatusUnprocessableEntity, booking.KeyVisitDateUnavailable},
		{"day full", `{"full_name":"A","mother_full_name":"B","phone":"1","district":"Hodan","date_of_birth":"04/05/1990","visit_reason":"x","visit_date":"2024-01-02"}`, store.ErrDayFull, http.StatusConflict, booking.KeyDayFull},
		{"store failure", `{"full_name":"A","mother_full_name":"B","phone":"1","district":"Hodan","date_of_birth":"04/05/1990","visit_reason":"x","visit_date":"2024-01-02"}`, assert.AnError, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := newMemStore()
			st.insertErr = tc.insertErr
			h := newTestServer(t, st, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := do(h, req)
			assert.Equal(t, tc.status, rec.Code)

			var resp errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestBookingSubmissionsAreRateLimited(t *testing.T) {
	st := newMemStore()
	h := newTestServer(t, st, NewRateLimiter(1, 1, nil))

	rec := postForm(h, "/", validForm())
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = postForm(h, "/", validForm())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(`{}`))
	rec = do(h, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited")

	// reads are not limited
	assert.Equal(t, http.StatusOK, get(h, "/availability").Code)
}

func TestTokenLimiterRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTokenLimiter(60, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
}

func TestTokenLimiterEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTokenLimiter(60, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("b"))
	assert.Len(t, l.bucket, 2)

	now = now.Add(3 * time.Second)
	assert.True(t, l.allow("c"))
	assert.Len(t, l.bucket, 1)
	assert.Contains(t, l.bucket, "c")
}

func TestClientIPHonoursForwardedOnlyFromTrustedProxy(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "198.51.100.7:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "198.51.100.7", clientIP(req, proxies))
	assert.Equal(t, "198.51.100.7", clientIP(req, nil))

	req.RemoteAddr = "10.0.0.5:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 198.51.100.7, 10.0.0.4")
	assert.Equal(t, "198.51.100.7", clientIP(req, proxies))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.5", clientIP(req, proxies))
}

func TestRotatingForwardedHeaderDoesNotBypassLimit(t *testing.T) {
	st := newMemStore()
	h := newTestServer(t, st, NewRateLimiter(1, 1, nil))

	for i, spoofed := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(`{}`))
		req.Header.Set("X-Forwarded-For", spoofed)
		rec := do(h, req)
		if i == 0 {
			assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
}
