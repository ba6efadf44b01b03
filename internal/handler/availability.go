package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/service"
)

// AvailabilityHandler serves free slots to anyone and lets doctors
// replace their weekly template.
type AvailabilityHandler struct {
	Availability *service.AvailabilityService
}

// NewAvailabilityHandler panics when svc is nil.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	if svc == nil {
		panic("nil service passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Availability: svc}
}

// FreeSlots handles GET /v1/availability/:doctorId?date=YYYY-MM-DD.
func (h *AvailabilityHandler) FreeSlots(c echo.Context) error {
	doctorID, ok := parseID(c, "doctorId")
	if !ok {
		return badRequest(c, "invalid doctor id")
	}
	date := strings.TrimSpace(c.QueryParam("date"))
	if date == "" {
		return badRequest(c, "date query parameter is required")
	}
	slots, err := h.Availability.FreeSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]echo.Map, 0, len(slots))
	for _, s := range slots {
		items = append(items, echo.Map{
			"start_minute": s.StartMinute,
			"end_minute":   s.EndMinute,
			"slot_minutes": s.SlotMinutes,
			"start_time":   clock(s.StartMinute),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"doctor_id": doctorID, "date": date, "items": items})
}

// Weekly handles GET /v1/availability/:doctorId/weekly.
func (h *AvailabilityHandler) Weekly(c echo.Context) error {
	doctorID, ok := parseID(c, "doctorId")
	if !ok {
		return badRequest(c, "invalid doctor id")
	}
	rows, err := h.Availability.Weekly(c.Request().Context(), doctorID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"doctor_id": doctorID, "items": rows})
}

// Replace handles PUT /v1/availability.  The calling doctor's whole
// weekly template is swapped for the submitted slots.
func (h *AvailabilityHandler) Replace(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		Slots []struct {
			Weekday     *int   `json:"weekday"`
			StartMinute *int   `json:"start_minute"`
			EndMinute   *int   `json:"end_minute"`
			SlotMinutes int    `json:"slot_minutes"`
			Timezone    string `json:"timezone"`
		} `json:"slots"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	rows := make([]model.WeeklyAvailability, 0, len(body.Slots))
	for _, s := range body.Slots {
		if s.Weekday == nil || s.StartMinute == nil || s.EndMinute == nil {
			return badRequest(c, "each slot needs weekday, start_minute and end_minute")
		}
		rows = append(rows, model.WeeklyAvailability{
			Weekday:     *s.Weekday,
			StartMinute: *s.StartMinute,
			EndMinute:   *s.EndMinute,
			SlotMinutes: s.SlotMinutes,
			Timezone:    s.Timezone,
		})
	}
	if err := h.Availability.Replace(c.Request().Context(), actor, rows); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
