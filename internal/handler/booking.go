package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/service"
)

// BookingHandler exposes the appointment ledger.  Routes are mounted
// behind JWTAuth and a role check; ownership of individual appointments
// is decided by the service.
type BookingHandler struct {
	Bookings *service.BookingService
}

// NewBookingHandler panics when svc is nil.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: svc}
}

// Create handles POST /v1/bookings.  The body names the doctor, the day
// and the slot start; the patient is the caller.  Responds 201 with the
// new appointment and its serial number.
func (h *BookingHandler) Create(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		DoctorID    uint64 `json:"doctor_id"`
		Date        string `json:"date"`
		StartMinute *int   `json:"start_minute"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.DoctorID == 0 || body.Date == "" || body.StartMinute == nil {
		return badRequest(c, "doctor_id, date and start_minute are required")
	}

	appt, err := h.Bookings.Book(c.Request().Context(), service.BookRequest{
		DoctorID:      body.DoctorID,
		PatientUserID: actor.UserID,
		Date:          body.Date,
		StartMinute:   *body.StartMinute,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"appointment_id": appt.ID,
		"serial_number":  appt.SerialNumber,
		"appointment":    appointmentJSON(appt),
	})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid appointment id")
	}
	appt, err := h.Bookings.Get(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": appointmentJSON(appt)})
}

// List handles GET /v1/bookings?date=YYYY-MM-DD.  Patients see their own
// appointments; doctors see their ledger, with last_serial when a date
// is given.
func (h *BookingHandler) List(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	ledger, err := h.Bookings.List(c.Request().Context(), actor, c.QueryParam("date"))
	if err != nil {
		return writeError(c, err)
	}
	items := make([]echo.Map, 0, len(ledger.Items))
	for i := range ledger.Items {
		items = append(items, appointmentJSON(&ledger.Items[i]))
	}
	resp := echo.Map{"items": items}
	if ledger.LastSerial != nil {
		resp["last_serial"] = *ledger.LastSerial
	}
	return c.JSON(http.StatusOK, resp)
}

// Cancel handles PATCH /v1/bookings/:id/cancel for the patient or the
// owning doctor.
func (h *BookingHandler) Cancel(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid appointment id")
	}
	appt, err := h.Bookings.Cancel(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": appointmentJSON(appt)})
}

// Review handles POST /v1/bookings/:id/review.  Body: {"rating": 1..5,
// "review": "optional text"}.
func (h *BookingHandler) Review(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid appointment id")
	}
	var body struct {
		Rating *int    `json:"rating"`
		Review *string `json:"review"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Rating == nil {
		return badRequest(c, "rating is required")
	}

	res, err := h.Bookings.Review(c.Request().Context(), service.ReviewRequest{
		AppointmentID: id,
		PatientUserID: actor.UserID,
		Rating:        *body.Rating,
		Review:        body.Review,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":     "review recorded",
		"appointment": appointmentJSON(res.Appointment),
		"doctor": echo.Map{
			"id":            res.Appointment.DoctorID,
			"avg_rating":    res.AvgRating,
			"total_reviews": res.TotalReviews,
		},
	})
}
