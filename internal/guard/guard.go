// Package guard decides, per navigation, whether a requested route is
// rendered or redirected given the current auth state. It is a UX gate
// only: data access control belongs to the backend serving the data, on
// every request, regardless of what this guard decided.
package guard

import (
	"strings"

	"authgate/internal/authctx"
)

// Decision is the outcome of a route evaluation.
type Decision int

const (
	// Render serves the requested route
	Render Decision = iota
	// RenderLoading serves a loading placeholder while the initial session
	// resolution is still running — never a redirect, so an authenticated
	// user does not see a flash redirect to login on cold start
	RenderLoading
	// RedirectToLogin sends an unauthenticated visitor to the login route
	RedirectToLogin
	// RedirectToHome keeps an authenticated user off the login form
	RedirectToHome
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case RenderLoading:
		return "render_loading"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToHome:
		return "redirect_to_home"
	default:
		return "unknown"
	}
}

// Policy maps routes to their auth requirements. Protected routes match
// exactly or by path segment prefix, so /dashboard covers /dashboard/x.
type Policy struct {
	loginRoute string
	homeRoute  string
	protected  []string
}

// NewPolicy creates a policy. loginRoute requires an absent user (an
// authenticated visitor is redirected home); the protected routes require a
// present one.
func NewPolicy(loginRoute, homeRoute string, protectedRoutes ...string) *Policy {
	return &Policy{
		loginRoute: loginRoute,
		homeRoute:  homeRoute,
		protected:  protectedRoutes,
	}
}

// LoginRoute returns the route unauthenticated visitors are sent to.
func (p *Policy) LoginRoute() string { return p.loginRoute }

// HomeRoute returns where authenticated visitors land.
func (p *Policy) HomeRoute() string { return p.homeRoute }

// Decide evaluates a requested route against the auth state.
func (p *Policy) Decide(state authctx.State, route string) Decision {
	if state.Loading {
		return RenderLoading
	}

	authed := state.User != nil
	if routeMatches(p.loginRoute, route) {
		if authed {
			return RedirectToHome
		}
		return Render
	}

	if !authed && p.isProtected(route) {
		return RedirectToLogin
	}
	return Render
}

func (p *Policy) isProtected(route string) bool {
	for _, prefix := range p.protected {
		if routeMatches(prefix, route) {
			return true
		}
	}
	return false
}

func routeMatches(prefix, route string) bool {
	return route == prefix || strings.HasPrefix(route, prefix+"/")
}
