package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"authgate/internal/guard"
	"authgate/internal/provider"
	"authgate/internal/session"

	"github.com/gin-gonic/gin"
)

// Handler serves the scaffold's pages.
type Handler struct {
	policy *guard.Policy
	// storeCheck reports session-store reachability for the health
	// endpoint; nil means the backend has nothing to ping.
	storeCheck func(ctx context.Context) error
}

// NewHandler creates the page handler.
func NewHandler(policy *guard.Policy, storeCheck func(ctx context.Context) error) *Handler {
	return &Handler{policy: policy, storeCheck: storeCheck}
}

// GetLogin handles GET /login
func (h *Handler) GetLogin(c *gin.Context) {
	renderPage(c, http.StatusOK, "login", loginView{
		Next: c.Query(guard.NextParam),
	})
}

// loginForm is the login submission payload
type loginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
	Next     string `form:"next"`
}

// PostLogin handles POST /login. Failures render the form again with an
// inline message; an existing valid session is never cleared by a failed
// attempt.
func (h *Handler) PostLogin(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		renderPage(c, http.StatusBadRequest, "login", loginView{
			Error: "Enter your email address and password.",
		})
		return
	}

	ac := AuthContext(c)
	if err := ac.SignIn(c.Request.Context(), form.Email, form.Password); err != nil {
		view := loginView{Email: form.Email, Next: form.Next}
		status := http.StatusBadGateway

		switch provider.KindOf(err) {
		case provider.KindInvalidCredentials:
			status = http.StatusUnauthorized
			view.Error = "Invalid email or password."
		case provider.KindNetwork:
			view.Error = "Could not reach the sign-in service. Please try again."
		default:
			view.Error = "Sign-in failed. Please try again later."
		}

		slog.Warn("Sign-in failed",
			"kind", string(provider.KindOf(err)),
			"request_id", c.GetString("request_id"),
		)
		renderPage(c, status, "login", view)
		return
	}

	c.Redirect(http.StatusFound, safeNext(form.Next, h.policy.HomeRoute()))
}

// PostLogout handles POST /logout. The local session is gone regardless of
// how the provider call went; a failure is logged, never blocking.
func (h *Handler) PostLogout(c *gin.Context) {
	if err := AuthContext(c).SignOut(c.Request.Context()); err != nil {
		slog.Warn("Provider sign-out reported a failure",
			"error", err,
			"request_id", c.GetString("request_id"),
		)
	}
	c.Redirect(http.StatusFound, h.policy.LoginRoute())
}

// GetDashboard handles GET /dashboard
func (h *Handler) GetDashboard(c *gin.Context) {
	renderPage(c, http.StatusOK, "dashboard", pageView{User: requestUser(c)})
}

// GetProfile handles GET /profile
func (h *Handler) GetProfile(c *gin.Context) {
	renderPage(c, http.StatusOK, "profile", pageView{User: requestUser(c)})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	response := gin.H{"status": "up"}

	if h.storeCheck != nil {
		store := gin.H{"status": "up"}
		if err := h.storeCheck(c.Request.Context()); err != nil {
			store["status"] = "down"
			store["error"] = err.Error()
			response["status"] = "degraded"
		}
		response["session_store"] = store
	}

	c.JSON(http.StatusOK, response)
}

// Home handles GET /, bouncing to the dashboard (which the guard may turn
// into a login redirect).
func (h *Handler) Home(c *gin.Context) {
	c.Redirect(http.StatusFound, h.policy.HomeRoute())
}

func requestUser(c *gin.Context) *session.User {
	return c.MustGet(guard.UserKey).(*session.User)
}

// safeNext accepts only local absolute paths as post-login targets so the
// next parameter cannot be turned into an open redirect.
func safeNext(next, fallback string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return fallback
}
