// Package handler holds the echo HTTP handlers.  Handlers bind and
// check request shape, call one service method and render the result;
// business rules live in the service package.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/schedule"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/service"
)

// actorFrom reads the caller placed in the context by JWTAuth.
func actorFrom(c echo.Context) (service.Actor, error) {
	uid, ok := c.Get("user_id").(uint64)
	if !ok || uid == 0 {
		return service.Actor{}, errors.New("invalid user_id in context")
	}
	role, _ := c.Get("role").(string)
	return service.Actor{UserID: uid, Role: role}, nil
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "message": msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "authentication required"})
}

// writeError renders a service error.  Internal errors were already
// logged by the service and are shown without detail.
func writeError(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		c.Logger().Errorf("unclassified error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal error"})
	}
	status := http.StatusInternalServerError
	switch se.Kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindConflict:
		status = http.StatusConflict
	}
	return c.JSON(status, echo.Map{"error": se.Code, "message": se.Message})
}

// appointmentJSON renders an appointment with its day as YYYY-MM-DD and
// the slot start as HH:MM for display.
func appointmentJSON(a *model.Appointment) echo.Map {
	m := echo.Map{
		"id":              a.ID,
		"doctor_id":       a.DoctorID,
		"patient_user_id": a.PatientUserID,
		"date":            a.Date.UTC().Format(schedule.DateLayout),
		"start_minute":    a.StartMinute,
		"start_time":      clock(a.StartMinute),
		"status":          a.Status,
		"serial_number":   a.SerialNumber,
		"created_at":      a.CreatedAt,
		"updated_at":      a.UpdatedAt,
	}
	if a.Rating != nil {
		m["rating"] = *a.Rating
	}
	if a.Review != nil {
		m["review"] = *a.Review
	}
	if a.ReviewedAt != nil {
		m["reviewed_at"] = *a.ReviewedAt
	}
	return m
}

func clock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
