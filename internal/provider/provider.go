// Package provider implements the client for the external identity provider.
// It is the only package that talks to the provider: credentials go out,
// normalized grants and tagged errors come back. Token issuance, validation
// and password handling are the provider's problem, never this package's.
package provider

import (
	"context"
	"time"

	"authgate/internal/session"
)

// API is the identity provider surface consumed by the auth client. The
// concrete wire protocol behind it is owned by the provider.
type API interface {
	// SignInWithPassword exchanges credentials for a grant. Credential
	// submission is never retried automatically.
	SignInWithPassword(ctx context.Context, email, password string) (*Grant, error)
	// RefreshSession redeems a refresh token for a new grant.
	RefreshSession(ctx context.Context, refreshToken string) (*Grant, error)
	// SignOut asks the provider to invalidate the token. Best effort.
	SignOut(ctx context.Context, accessToken string) error
	// GetUser fetches the profile behind an access token.
	GetUser(ctx context.Context, accessToken string) (*session.User, error)
}

// Grant is a normalized successful token issuance.
type Grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         session.User
}

// Session converts the grant into the session record the stores persist.
func (g *Grant) Session() *session.Session {
	return &session.Session{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		ExpiresAt:    g.ExpiresAt,
		User:         g.User,
	}
}
