package guard

import (
	"log/slog"
	"net/http"
	"net/url"

	"authgate/internal/authctx"

	"github.com/gin-gonic/gin"
)

const (
	// NextParam carries the originally requested path through the login
	// redirect so the visitor lands where they were headed.
	NextParam = "next"

	// UserKey is the gin context key the middleware stores the resolved
	// user under for downstream handlers.
	UserKey = "user"
)

// StateSource yields the auth state snapshot for the current request.
type StateSource interface {
	State() authctx.State
}

// loadingPlaceholder is served while the initial session resolution runs;
// the refresh header retries the navigation once resolution settles.
const loadingPlaceholder = `<!DOCTYPE html>
<html><head><meta http-equiv="refresh" content="1"><title>Loading</title></head>
<body><p>Loading…</p></body></html>`

// Protect applies the policy to every request. resolve maps the request to
// the auth context of its storage origin.
func Protect(policy *Policy, resolve func(*gin.Context) StateSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := resolve(c).State()
		route := c.Request.URL.Path
		decision := policy.Decide(state, route)

		switch decision {
		case RenderLoading:
			c.Header("Cache-Control", "no-store")
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(loadingPlaceholder))
			c.Abort()

		case RedirectToLogin:
			slog.Debug("Redirecting unauthenticated request to login",
				"route", route,
				"request_id", c.GetString("request_id"),
			)
			c.Redirect(http.StatusFound, loginURL(policy, c.Request.URL))
			c.Abort()

		case RedirectToHome:
			c.Redirect(http.StatusFound, policy.HomeRoute())
			c.Abort()

		default:
			if state.User != nil {
				c.Set(UserKey, state.User)
			}
			c.Next()
		}
	}
}

// loginURL preserves the originally requested path (and query) for the
// post-login redirect.
func loginURL(policy *Policy, requested *url.URL) string {
	next := requested.Path
	if requested.RawQuery != "" {
		next += "?" + requested.RawQuery
	}
	return policy.LoginRoute() + "?" + NextParam + "=" + url.QueryEscape(next)
}
