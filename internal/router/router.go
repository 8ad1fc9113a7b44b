// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-lease/internal/handler"
	"github.com/iliyamo/seat-lease/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterLease mounts the lease actions under /v1/lease.  Every action
// sits behind JWT authentication (a bad credential must never reach a
// handler) and, when provided, the rate limiter.
func RegisterLease(e *echo.Echo, h *handler.LeaseHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/lease")
	g.Use(middleware.JWTAuth(jwtSecret))
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/start", h.Start)
	g.POST("/sync", h.Sync)
	g.POST("/interrupt", h.Interrupt)
	g.POST("/pause", h.Pause)
	g.POST("/confirm", h.Confirm)
}
