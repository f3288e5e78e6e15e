// Package session defines the persisted session record and the stores that
// hold it. A store is scoped to a single storage origin: one browser profile
// maps to one origin, and all tabs of that profile share the origin's store.
// Every mutation notifies subscribed listeners, which is how a sign-out in
// one tab reaches its siblings without a reload.
package session

import "time"

// User is the authenticated principal's profile as reported by the identity
// provider. ID and Email are immutable for the lifetime of a session.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// Session is the bundle of token, expiry and user identity representing an
// active login. A session is either fully populated or absent (nil) — stores
// reject partial records.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Valid reports whether the record is fully populated.
func (s *Session) Valid() bool {
	if s == nil {
		return false
	}
	return s.AccessToken != "" && !s.ExpiresAt.IsZero() && s.User.ID != "" && s.User.Email != ""
}

// Expired reports whether the access token is at or past expiry. A leeway
// can be supplied so a token about to expire is refreshed ahead of time.
func (s *Session) Expired(leeway time.Duration) bool {
	if s == nil {
		return true
	}
	return !time.Now().Add(leeway).Before(s.ExpiresAt)
}

// clone returns an independent copy so callers can never mutate the stored
// record through a returned pointer.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
