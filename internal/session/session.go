// Package session keeps the authenticated brokerage session and persists it
// across restarts.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"brokerage-mcp/internal/interfaces"
	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/types"
)

var (
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrSessionExpired = errors.New("session expired")
)

// IST is the exchange timezone. A fixed zone avoids depending on tzdata.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// expiryHour is when Kite invalidates access tokens, in IST.
const expiryHour = 6

// ExpiryFor returns the 06:00 IST following login.
func ExpiryFor(login time.Time) time.Time {
	l := login.In(IST)
	exp := time.Date(l.Year(), l.Month(), l.Day(), expiryHour, 0, 0, 0, IST)
	if !exp.After(l) {
		exp = exp.AddDate(0, 0, 1)
	}
	return exp
}

// Manager holds the current session. It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	store   interfaces.SessionStore
	current *types.Session
	now     func() time.Time
}

// NewManager returns a Manager backed by store. A nil store keeps the session
// in memory only.
func NewManager(store interfaces.SessionStore) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Restore loads a previously saved session. An expired session is discarded.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	sess, ok, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok {
		logger.Debug(ctx, "No stored session")
		return nil
	}
	if !sess.Valid(m.now()) {
		logger.Info(ctx, "Stored session expired, discarding", "user_id", sess.UserID, "expires_at", sess.ExpiresAt)
		return m.store.Clear(ctx)
	}

	m.mu.Lock()
	m.current = &sess
	m.mu.Unlock()
	logger.Info(ctx, "Session restored", "user_id", sess.UserID, "expires_at", sess.ExpiresAt)
	return nil
}

// Current returns the active session.
func (m *Manager) Current() (types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return types.Session{}, ErrNotLoggedIn
	}
	if !m.current.Valid(m.now()) {
		return types.Session{}, ErrSessionExpired
	}
	return *m.current, nil
}

// Set installs sess as the active session and persists it. A zero ExpiresAt
// is filled from the login time.
func (m *Manager) Set(ctx context.Context, sess types.Session) (types.Session, error) {
	if sess.AccessToken == "" {
		return types.Session{}, errors.New("session has no access token")
	}
	if sess.LoginTime.IsZero() {
		sess.LoginTime = m.now()
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = ExpiryFor(sess.LoginTime)
	}

	m.mu.Lock()
	m.current = &sess
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Save(ctx, sess); err != nil {
			return sess, fmt.Errorf("save session: %w", err)
		}
	}
	return sess, nil
}

// Clear drops the active session and removes it from the store.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
