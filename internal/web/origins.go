// Package web hosts the placeholder UI around the auth core: login form,
// blank dashboard, profile view, logout. Everything interesting happens in
// the packages it wires together; the pages themselves are intentionally
// inert.
package web

import (
	"fmt"
	"net/http"
	"sync"

	"authgate/internal/authclient"
	"authgate/internal/authctx"
	"authgate/internal/guard"
	"authgate/internal/provider"
	"authgate/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// originCookie binds a browser profile to its storage origin. Tabs of
	// the same profile send the same cookie and therefore share one store,
	// which is what makes sign-out propagate between them.
	originCookie = "authgate_origin"

	originCookieMaxAge = 365 * 24 * 60 * 60

	// authContextKey is the gin context key the resolved auth context is
	// stored under.
	authContextKey = "auth_context"
)

// StoreFactory builds the session store for a storage origin.
type StoreFactory func(origin string) (session.Store, error)

type originEntry struct {
	ctx   *authctx.Context
	store session.Store
}

// Origins maps storage origins to their resolved auth contexts. One context
// is built per origin on first sight and reused for every later request.
type Origins struct {
	api           provider.API
	newStore      StoreFactory
	secureCookies bool

	mu      sync.Mutex
	entries map[string]*originEntry
}

// NewOrigins creates the origin registry.
func NewOrigins(api provider.API, newStore StoreFactory, secureCookies bool) *Origins {
	return &Origins{
		api:           api,
		newStore:      newStore,
		secureCookies: secureCookies,
		entries:       make(map[string]*originEntry),
	}
}

// Middleware binds the request to its origin's auth context, minting the
// origin cookie on first contact.
func (o *Origins) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ac, err := o.resolve(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "session storage unavailable",
			})
			return
		}
		c.Set(authContextKey, ac)
		c.Next()
	}
}

// AuthContext returns the auth context bound to the request. Panics when
// the origin middleware did not run, which is a wiring bug.
func AuthContext(c *gin.Context) *authctx.Context {
	return c.MustGet(authContextKey).(*authctx.Context)
}

// stateSource adapts the request to the guard's view of auth state.
func (o *Origins) stateSource(c *gin.Context) guard.StateSource {
	return AuthContext(c)
}

func (o *Origins) resolve(c *gin.Context) (*authctx.Context, error) {
	originID, err := c.Cookie(originCookie)
	if err != nil || originID == "" {
		originID = uuid.New().String()
		c.SetCookie(originCookie, originID, originCookieMaxAge, "/", "", o.secureCookies, true)
	}

	o.mu.Lock()
	if e, ok := o.entries[originID]; ok {
		o.mu.Unlock()
		return e.ctx, nil
	}
	o.mu.Unlock()

	store, err := o.newStore(originID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store for origin: %w", err)
	}

	ac := authctx.New(authclient.New(o.api, store))

	o.mu.Lock()
	if e, ok := o.entries[originID]; ok {
		// Lost the race to a concurrent request for the same origin
		o.mu.Unlock()
		store.Close()
		return e.ctx, nil
	}
	o.entries[originID] = &originEntry{ctx: ac, store: store}
	o.mu.Unlock()

	ac.Resolve(c.Request.Context())
	return ac, nil
}

// Close detaches every context and closes every store.
func (o *Origins) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, e := range o.entries {
		e.ctx.Close()
		e.store.Close()
	}
	o.entries = make(map[string]*originEntry)
}
