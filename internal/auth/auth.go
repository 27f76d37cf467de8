package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/nira-appointments/internal/models"
	"github.com/example/nira-appointments/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	cookieName = "nira_staff_session"
	defaultTTL = 12 * time.Hour
)

// Session identifies a logged-in staff member. Token is issued at login and
// is what a Registry revokes.
type Session struct {
	Token    string
	Username string
	Expires  time.Time
}

type Store struct {
	sc       *securecookie.SecureCookie
	users    store.StaffStore
	registry Registry
	ttl      time.Duration
	now      func() time.Time
}

type Option func(*Store)

// WithRegistry enables server-side session tracking.
func WithRegistry(r Registry) Option {
	return func(s *Store) { s.registry = r }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewStore(users store.StaffStore, hashKey, blockKey []byte, opts ...Option) *Store {
	s := &Store{
		sc:    securecookie.New(hashKey, blockKey),
		users: users,
		ttl:   defaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sc.MaxAge(int(s.ttl.Seconds()))
	return s
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	return err == nil
}

func (s *Store) CreateUser(ctx context.Context, username, password string) (models.StaffUser, error) {
	if username == "" || password == "" {
		return models.StaffUser{}, fmt.Errorf("username and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return models.StaffUser{}, err
	}
	return s.users.CreateStaffUser(ctx, username, hash)
}

// Authenticate checks the credentials and issues a new session. Unknown users
// and wrong passwords both return ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, username, password string) (Session, error) {
	u, err := s.users.GetStaffUser(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	return Session{
		Token:    uuid.NewString(),
		Username: u.Username,
		Expires:  s.now().Add(s.ttl).UTC(),
	}, nil
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, sess Session) error {
	if s.registry != nil {
		if err := s.registry.Register(r.Context(), sess); err != nil {
			return fmt.Errorf("register session: %w", err)
		}
	}
	encoded, err := s.sc.Encode(cookieName, sess)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(s.ttl.Seconds()),
	})
	return nil
}

// ClearSession revokes the current session, if any, and expires the cookie.
func (s *Store) ClearSession(w http.ResponseWriter, r *http.Request) error {
	var err error
	if sess, ok := s.decode(r); ok && s.registry != nil {
		err = s.registry.Revoke(r.Context(), sess.Token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   -1,
	})
	return err
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	sess, ok := s.decode(r)
	if !ok {
		return Session{}, false
	}
	if !s.now().Before(sess.Expires) {
		return Session{}, false
	}
	if s.registry != nil {
		active, err := s.registry.Active(r.Context(), sess.Token)
		if err != nil || !active {
			return Session{}, false
		}
	}
	return sess, true
}

func (s *Store) decode(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	var sess Session
	if err := s.sc.Decode(cookieName, c.Value, &sess); err != nil {
		return Session{}, false
	}
	if sess.Token == "" || sess.Username == "" {
		return Session{}, false
	}
	return sess, true
}

type ctxKey string

const sessionKey ctxKey = "staffSession"

// RequireStaff redirects requests without a valid session to the login page.
func (s *Store) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			http.Redirect(w, r, "/admin/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey).(Session)
	return sess, ok
}
