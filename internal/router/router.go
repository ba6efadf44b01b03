// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/handler"
)

// RegisterOps registers the unauthenticated operational endpoints:
// liveness, readiness and Prometheus metrics from gatherer.
func RegisterOps(e *echo.Echo, db *sql.DB, gatherer prometheus.Gatherer) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// RegisterPublic registers the free-slot reads.  No token is needed so
// patients can browse before signing in.
func RegisterPublic(e *echo.Echo, a *handler.AvailabilityHandler) {
	e.GET("/v1/availability/:doctorId", a.FreeSlots)
	e.GET("/v1/availability/:doctorId/weekly", a.Weekly)
}
