package web

import (
	"authgate/internal/guard"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires middleware, origin binding, the route guard and the page
// handlers into the gin engine.
func NewRouter(h *Handler, origins *Origins, policy *guard.Policy, corsOrigins []string) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.GET("/health", h.Health)

	// Pages run behind origin binding and the route guard; the guard also
	// owns the login-route inversion (authenticated visitors bounce home).
	pages := r.Group("/")
	pages.Use(origins.Middleware())
	pages.Use(guard.Protect(policy, origins.stateSource))
	{
		pages.GET("/", h.Home)
		pages.GET("/login", h.GetLogin)
		pages.POST("/login", h.PostLogin)
		pages.POST("/logout", h.PostLogout)
		pages.GET("/dashboard", h.GetDashboard)
		pages.GET("/profile", h.GetProfile)
	}

	return r
}
