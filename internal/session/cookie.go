package session

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	DefaultCookieName = "pix_session"
	keyValue          = "key"
)

// Manager binds a browser session cookie to a Store key. The cookie carries
// only the key; the PaymentInfo itself stays in the Store.
type Manager struct {
	store  *sessions.CookieStore
	name   string
	logger *slog.Logger
}

func NewManager(secret, cookieName string, secure bool, logger *slog.Logger) *Manager {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store, name: cookieName, logger: logger}
}

// Key returns the store key held by the request's cookie.
func (m *Manager) Key(r *http.Request) (string, bool) {
	sess, err := m.store.Get(r, m.name)
	if err != nil {
		m.logger.Debug("ignoring unreadable session cookie", "error", err)
		return "", false
	}
	key, ok := sess.Values[keyValue].(string)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// Bind writes a cookie holding key.
func (m *Manager) Bind(w http.ResponseWriter, r *http.Request, key string) error {
	// A tampered cookie yields an error along with a fresh session, which is what we want here.
	sess, _ := m.store.Get(r, m.name)
	sess.Values[keyValue] = key
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session cookie: %w", err)
	}
	return nil
}

// Clear expires the cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear session cookie: %w", err)
	}
	return nil
}
