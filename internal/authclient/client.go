// Package authclient implements the session lifecycle against the identity
// provider: sign-in, sign-out, freshness-checked session reads with a
// single silent refresh, and change subscriptions. It owns the session
// store; everything above it holds read references only.
package authclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"authgate/internal/provider"
	"authgate/internal/session"
)

const (
	// ExpiryLeeway treats a token this close to expiry as already expired,
	// so it is refreshed before a request can race the deadline.
	ExpiryLeeway = 30 * time.Second

	// RefreshTimeout bounds the silent refresh so a hung provider cannot
	// leave the session stuck mid-refresh.
	RefreshTimeout = 5 * time.Second
)

// Client coordinates the identity provider and the session store for one
// storage origin.
type Client struct {
	api   provider.API
	store session.Store

	// refreshing serializes silent refreshes: concurrent expired reads
	// must produce exactly one provider call.
	refreshing chan struct{}
}

// New creates an auth client over the given provider and store.
func New(api provider.API, store session.Store) *Client {
	c := &Client{
		api:        api,
		store:      store,
		refreshing: make(chan struct{}, 1),
	}
	return c
}

// SignIn exchanges credentials for a session and persists it. Failures come
// back as tagged *provider.Error values; credentials are never resubmitted
// automatically.
func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	grant, err := c.api.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	sess := grant.Session()
	if err := c.store.Set(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return sess, nil
}

// SignOut requests invalidation from the provider, best effort, then
// unconditionally clears the store. The local session is always gone
// afterwards; a provider failure is returned for informational surfacing
// only and never blocks local logout.
func (c *Client) SignOut(ctx context.Context) error {
	var providerErr error
	if sess, err := c.store.Get(ctx); err == nil && sess != nil {
		providerErr = c.api.SignOut(ctx, sess.AccessToken)
		if providerErr != nil {
			slog.Warn("Provider sign-out failed, clearing local session anyway", "error", providerErr)
		}
	}

	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return providerErr
}

// CurrentSession returns the persisted session after a freshness check. An
// expired session gets exactly one silent refresh; if that fails the store
// is cleared and the session is reported absent, without error.
func (c *Client) CurrentSession(ctx context.Context) (*session.Session, error) {
	sess, err := c.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(ExpiryLeeway) {
		return sess, nil
	}
	return c.refresh(ctx, sess)
}

// Subscribe registers a listener invoked with the new session (nil when
// absent) on every sign-in, sign-out or refresh, including those performed
// by sibling tabs of the same origin. Returns the unsubscribe handle.
func (c *Client) Subscribe(fn session.Listener) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// refresh redeems the refresh token once, under a bounded timeout. Only one
// refresh is in flight at a time; losers of the race re-read the store and
// use whatever the winner produced.
func (c *Client) refresh(ctx context.Context, stale *session.Session) (*session.Session, error) {
	select {
	case c.refreshing <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.refreshing }()

	// Another caller may have finished the refresh while we waited
	sess, err := c.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(ExpiryLeeway) {
		return sess, nil
	}

	refreshCtx, cancel := context.WithTimeout(ctx, RefreshTimeout)
	defer cancel()

	grant, err := c.api.RefreshSession(refreshCtx, sess.RefreshToken)
	if err != nil {
		slog.Warn("Silent refresh failed, treating session as absent",
			"user_id", sess.User.ID,
			"error", err,
		)
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}

	fresh := grant.Session()
	if err := c.store.Set(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed session: %w", err)
	}
	return fresh, nil
}
