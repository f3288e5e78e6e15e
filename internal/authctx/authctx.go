// Package authctx exposes a single UI-consumable view of auth state: the
// current user, a loading flag for cold-start resolution, and the sign-in
// and sign-out actions. It is a read model over the auth client, updated
// through the client's subscription stream — consumers receive the Context
// instance explicitly, there is no ambient global.
package authctx

import (
	"context"
	"log/slog"
	"sync"

	"authgate/internal/session"
)

// Client is the auth-client surface the context consumes.
type Client interface {
	SignIn(ctx context.Context, email, password string) (*session.Session, error)
	SignOut(ctx context.Context) error
	CurrentSession(ctx context.Context) (*session.Session, error)
	Subscribe(fn session.Listener) (unsubscribe func())
}

// State is a point-in-time snapshot of auth state. Loading is true only
// while the initial session resolution is still running.
type State struct {
	User    *session.User
	Loading bool
}

// Authenticated reports whether a resolved user is present.
func (s State) Authenticated() bool {
	return !s.Loading && s.User != nil
}

// Context holds the auth state for one storage origin.
type Context struct {
	client Client

	mu      sync.RWMutex
	user    *session.User
	loading bool

	resolveOnce sync.Once
	unsubscribe func()
}

// New creates a context in the loading state. Call Resolve to perform the
// initial session resolution and start tracking changes.
func New(client Client) *Context {
	return &Context{client: client, loading: true}
}

// Resolve performs the one-shot initial resolution: read the current
// session, set the user, drop the loading flag, then subscribe for the
// remaining lifetime of the context. Any error is treated exactly like "no
// session" — the user lands on login, never on a stuck loading screen.
func (c *Context) Resolve(ctx context.Context) {
	c.resolveOnce.Do(func() {
		sess, err := c.client.CurrentSession(ctx)
		if err != nil {
			slog.Warn("Initial session resolution failed, treating as signed out", "error", err)
			sess = nil
		}

		c.setSession(sess)
		c.unsubscribe = c.client.Subscribe(c.setSession)
	})
}

// State returns the current snapshot.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	user := c.user
	if user != nil {
		cp := *user
		user = &cp
	}
	return State{User: user, Loading: c.loading}
}

// SignIn delegates to the auth client; the user field updates through the
// subscription stream.
func (c *Context) SignIn(ctx context.Context, email, password string) error {
	_, err := c.client.SignIn(ctx, email, password)
	return err
}

// SignOut delegates to the auth client. The user is nil afterwards even
// when the provider call failed; the returned error is informational.
func (c *Context) SignOut(ctx context.Context) error {
	return c.client.SignOut(ctx)
}

// Close detaches the context from the client's notification stream.
func (c *Context) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Context) setSession(sess *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loading = false
	if sess == nil {
		c.user = nil
		return
	}
	user := sess.User
	c.user = &user
}
