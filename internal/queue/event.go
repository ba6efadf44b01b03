// Package queue defines the appointment events exchanged over RabbitMQ
// together with the publisher and the log consumer.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
)

// AppointmentQueue is the durable queue every appointment event is
// routed to through the default exchange.
const AppointmentQueue = "appointment.events"

// Event types.
const (
	EventBooked    = "appointment.booked"
	EventCancelled = "appointment.cancelled"
	EventReviewed  = "appointment.reviewed"
)

// AppointmentEvent is published after a booking, cancellation or review
// commits.  It carries enough of the ledger row for downstream
// consumers to log or notify without querying the database.
type AppointmentEvent struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	AppointmentID uint64 `json:"appointment_id"`
	DoctorID      uint64 `json:"doctor_id"`
	PatientUserID uint64 `json:"patient_user_id"`
	Date          string `json:"date"`
	StartMinute   int    `json:"start_minute"`
	SerialNumber  uint32 `json:"serial_number"`
	Status        string `json:"status"`
	Rating        *uint8 `json:"rating,omitempty"`
	ActorUserID   uint64 `json:"actor_user_id"`
	OccurredAt    string `json:"occurred_at"`
}

// NewAppointmentEvent snapshots a into an event of the given type.
func NewAppointmentEvent(eventType string, a *model.Appointment, actorUserID uint64, at time.Time) AppointmentEvent {
	return AppointmentEvent{
		EventID:       uuid.NewString(),
		Type:          eventType,
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		PatientUserID: a.PatientUserID,
		Date:          a.Date.UTC().Format("2006-01-02"),
		StartMinute:   a.StartMinute,
		SerialNumber:  a.SerialNumber,
		Status:        a.Status,
		Rating:        a.Rating,
		ActorUserID:   actorUserID,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
