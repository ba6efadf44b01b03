package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/handler"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/middleware"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
)

// RegisterBookings registers the ledger endpoints under /v1.  Every route
// needs a valid JWT.  limiter guards the writes; pass a pass-through
// middleware to disable it.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, a *handler.AvailabilityHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	patient := middleware.RequireRole(model.RolePatient)
	either := middleware.RequireRole(model.RolePatient, model.RoleDoctor)
	doctor := middleware.RequireRole(model.RoleDoctor)

	g.POST("/bookings", b.Create, patient, limiter)
	g.GET("/bookings", b.List, either)
	g.GET("/bookings/:id", b.Get, either)
	g.PATCH("/bookings/:id/cancel", b.Cancel, either, limiter)
	g.POST("/bookings/:id/review", b.Review, patient, limiter)

	g.PUT("/availability", a.Replace, doctor, limiter)
}
