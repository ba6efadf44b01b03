package model

import "time"

// Appointment statuses.  An appointment is created BOOKED, may be
// CANCELLED by the patient or the doctor, and becomes COMPLETED when the
// patient submits a review after the visit.
const (
	StatusBooked    = "BOOKED"
	StatusCancelled = "CANCELLED"
	StatusCompleted = "COMPLETED"
)

// Appointment records one patient's booking of one slot on a concrete
// day.  Rows are never deleted; cancellation is a status change so that
// serial numbers remain a continuous audit trail.
//
// Fields:
//
//	ID            – primary key identifier.
//	DoctorID      – doctor whose ledger holds the booking.
//	PatientUserID – authenticated user who booked.
//	Date          – calendar day at UTC midnight.
//	StartMinute   – minute of day the slot begins.
//	Status        – BOOKED, CANCELLED or COMPLETED.
//	SerialNumber  – queue position for (DoctorID, Date), starting at 1.
//	Rating        – 1..5 once reviewed.
//	Review        – optional free text submitted with the rating.
//	ReviewedAt    – when the rating was submitted.
type Appointment struct {
	ID            uint64     `json:"id"`
	DoctorID      uint64     `json:"doctor_id"`
	PatientUserID uint64     `json:"patient_user_id"`
	Date          time.Time  `json:"-"`
	StartMinute   int        `json:"start_minute"`
	Status        string     `json:"status"`
	SerialNumber  uint32     `json:"serial_number"`
	Rating        *uint8     `json:"rating,omitempty"`
	Review        *string    `json:"review,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// StartsAt returns the absolute UTC instant the appointment begins.
func (a Appointment) StartsAt() time.Time {
	return a.Date.Add(time.Duration(a.StartMinute) * time.Minute)
}

// IsActive reports whether the appointment still occupies its slot.
func (a Appointment) IsActive() bool {
	return a.Status != StatusCancelled
}
