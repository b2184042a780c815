package types

import "time"

// Session is an authenticated brokerage session. It is passed explicitly to
// whatever needs credentials instead of living in process-wide state.
type Session struct {
	APIKey      string    `json:"api_key"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	AccessToken string    `json:"access_token"`
	LoginTime   time.Time `json:"login_time"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the session carries a token that has not expired at now.
func (s Session) Valid(now time.Time) bool {
	return s.AccessToken != "" && (s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt))
}
