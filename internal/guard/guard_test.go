package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"authgate/internal/authctx"
	"authgate/internal/session"

	"github.com/gin-gonic/gin"
)

func testPolicy() *Policy {
	return NewPolicy("/login", "/dashboard", "/dashboard", "/profile")
}

func authedState() authctx.State {
	return authctx.State{User: &session.User{ID: "user-1", Email: "dev@example.com"}}
}

func TestDecide(t *testing.T) {
	policy := testPolicy()

	tests := []struct {
		name  string
		state authctx.State
		route string
		want  Decision
	}{
		{"dashboard unauthenticated", authctx.State{}, "/dashboard", RedirectToLogin},
		{"profile unauthenticated", authctx.State{}, "/profile", RedirectToLogin},
		{"dashboard subpath unauthenticated", authctx.State{}, "/dashboard/reports", RedirectToLogin},
		{"dashboard authenticated", authedState(), "/dashboard", Render},
		{"profile authenticated", authedState(), "/profile", Render},
		{"loading without user", authctx.State{Loading: true}, "/dashboard", RenderLoading},
		{"loading with user", authctx.State{Loading: true, User: authedState().User}, "/dashboard", RenderLoading},
		{"loading on login", authctx.State{Loading: true}, "/login", RenderLoading},
		{"login unauthenticated", authctx.State{}, "/login", Render},
		{"login authenticated", authedState(), "/login", RedirectToHome},
		{"public route unauthenticated", authctx.State{}, "/health", Render},
		{"dashboard prefix but different route", authctx.State{}, "/dashboards", Render},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Decide(tt.state, tt.route)
			if got != tt.want {
				t.Errorf("Decide(%+v, %q) = %s, want %s", tt.state, tt.route, got, tt.want)
			}
		})
	}
}

// fixedState is a StateSource returning a canned snapshot
type fixedState struct {
	state authctx.State
}

func (f *fixedState) State() authctx.State { return f.state }

func newGuardedRouter(state authctx.State) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Protect(testPolicy(), func(*gin.Context) StateSource {
		return &fixedState{state: state}
	}))
	handler := func(c *gin.Context) {
		c.String(http.StatusOK, "page:%s", c.Request.URL.Path)
	}
	r.GET("/login", handler)
	r.GET("/dashboard", handler)
	r.GET("/profile", handler)
	return r
}

func TestProtectRedirectsUnauthenticated(t *testing.T) {
	r := newGuardedRouter(authctx.State{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?next=%2Fdashboard" {
		t.Errorf("Expected redirect to /login?next=%%2Fdashboard, got %s", loc)
	}
}

func TestProtectPreservesQueryInNext(t *testing.T) {
	r := newGuardedRouter(authctx.State{})

	req := httptest.NewRequest(http.MethodGet, "/profile?tab=security", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?next=%2Fprofile%3Ftab%3Dsecurity" {
		t.Errorf("Unexpected redirect target: %s", loc)
	}
}

func TestProtectRendersForAuthenticated(t *testing.T) {
	r := newGuardedRouter(authedState())

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "page:/dashboard" {
		t.Errorf("Expected the requested page, got %q", w.Body.String())
	}
}

func TestProtectInjectsUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Protect(testPolicy(), func(*gin.Context) StateSource {
		return &fixedState{state: authedState()}
	}))
	r.GET("/dashboard", func(c *gin.Context) {
		user, ok := c.Get(UserKey)
		if !ok {
			t.Error("Expected user to be injected into the request context")
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, user.(*session.User).Email)
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Body.String() != "dev@example.com" {
		t.Errorf("Expected injected user email, got %q", w.Body.String())
	}
}

func TestProtectServesLoadingPlaceholder(t *testing.T) {
	r := newGuardedRouter(authctx.State{Loading: true})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Location") != "" {
		t.Error("Loading state must never redirect")
	}
	if body := w.Body.String(); body == "page:/dashboard" {
		t.Error("Expected the loading placeholder, got the page itself")
	}
}

func TestProtectRedirectsAuthenticatedOffLogin(t *testing.T) {
	r := newGuardedRouter(authedState())

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("Expected redirect to /dashboard, got %s", loc)
	}
}
