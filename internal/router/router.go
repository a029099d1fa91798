// Package router wires handlers, middleware and routes onto the Echo
// instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devfloor/waitline/internal/handler"
	"github.com/devfloor/waitline/internal/middleware"
	"github.com/devfloor/waitline/internal/model"
)

// Handlers bundles everything Register needs.
type Handlers struct {
	Auth        *handler.AuthHandler
	Reservation *handler.ReservationHandler
	Waiting     *handler.WaitingHandler
	Staff       *handler.StaffHandler

	JWTSecret string
	RateLimit echo.MiddlewareFunc // nil disables rate limiting
}

// Register mounts all routes.  Unauthenticated surface: health,
// metrics, auth, slot browsing.  Everything else requires a bearer
// token; staff operations additionally require the OWNER role.
func Register(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)

	// Public browse: availability is readable without a session so
	// clients can show open slots before login.
	e.GET("/v1/stores/:id/slots", h.Reservation.ListSlots)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(h.JWTSecret))
	v1.Use(middleware.RequireRole(model.RoleOwner, model.RoleCustomer))
	if h.RateLimit != nil {
		v1.Use(h.RateLimit)
	}

	v1.GET("/me", h.Auth.Me)
	v1.GET("/me/reservations", h.Reservation.ListMine)

	v1.POST("/stores/:id/reservations", h.Reservation.Reserve)
	v1.DELETE("/reservations/:id", h.Reservation.Cancel)

	v1.POST("/stores/:id/waitings", h.Waiting.Register)
	v1.GET("/stores/:id/waitings/me", h.Waiting.Position)
	v1.DELETE("/stores/:id/waitings/:entryId", h.Waiting.Cancel)

	staff := v1.Group("", middleware.RequireRole(model.RoleOwner))
	staff.POST("/stores", h.Staff.CreateStore)
	staff.PATCH("/stores/:id/waitings/:entryId/status", h.Staff.UpdateStatus)
}
