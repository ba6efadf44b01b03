package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/metrics"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/queue"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/repository"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/schedule"
)

// maxReviewLength bounds the free-text review.
const maxReviewLength = 2000

// Actor is the authenticated caller as established by the auth
// middleware.
type Actor struct {
	UserID uint64
	Role   string
}

// BookingService owns every write to the appointment ledger and the day
// counters: booking, cancellation and review.
type BookingService struct {
	Deps
}

// NewBookingService panics when a required dependency is missing.
func NewBookingService(d Deps) *BookingService {
	d.check("NewBookingService")
	return &BookingService{Deps: d}
}

// BookRequest asks for one slot.  Date is a YYYY-MM-DD calendar day.
type BookRequest struct {
	DoctorID      uint64
	PatientUserID uint64
	Date          string
	StartMinute   int
}

// Book creates a BOOKED appointment and assigns the next serial number
// of the doctor's day.  Availability, conflict check, counter advance and
// insert run in one transaction; nothing is visible unless all succeed.
// Two concurrent requests for the same slot yield one appointment and
// one ErrSlotAlreadyBooked, whichever check catches the loser.
func (s *BookingService) Book(ctx context.Context, req BookRequest) (*model.Appointment, error) {
	date, err := s.validateBook(req)
	if err != nil {
		s.Metrics.ObserveBooking(metrics.OutcomeRejected)
		return nil, err
	}

	var appt *model.Appointment
	err = s.runTx(ctx, "book", func(tx *sql.Tx) error {
		rows, err := s.Availability.ListByDoctorWeekdayTx(ctx, tx, req.DoctorID, int(date.Weekday()))
		if err != nil {
			return err
		}
		if !schedule.Contains(rows, date, req.StartMinute) {
			return ErrSlotNotAvailable
		}
		if _, taken, err := s.Appointments.ActiveIDForUpdateTx(ctx, tx, req.DoctorID, date, req.StartMinute); err != nil {
			return err
		} else if taken {
			return ErrSlotAlreadyBooked
		}
		serial, err := s.Counters.NextSerialTx(ctx, tx, req.DoctorID, date)
		if err != nil {
			return err
		}
		a := &model.Appointment{
			DoctorID:      req.DoctorID,
			PatientUserID: req.PatientUserID,
			Date:          date,
			StartMinute:   req.StartMinute,
			Status:        model.StatusBooked,
			SerialNumber:  serial,
		}
		if err := s.Appointments.CreateTx(ctx, tx, a); err != nil {
			if repository.IsDuplicateKey(err) {
				return ErrSlotAlreadyBooked
			}
			return err
		}
		appt = a
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotAlreadyBooked):
			s.Metrics.ObserveBooking(metrics.OutcomeAlreadyBooked)
		case errors.Is(err, ErrSlotNotAvailable):
			s.Metrics.ObserveBooking(metrics.OutcomeNotAvailable)
		default:
			s.Metrics.ObserveBooking(metrics.OutcomeError)
		}
		return nil, s.fail("book", err)
	}

	s.Metrics.ObserveBooking(metrics.OutcomeBooked)
	s.Metrics.ObserveTransition(model.StatusBooked)
	s.afterCommit(ctx, queue.EventBooked, appt, req.PatientUserID)
	s.Log.WithAppointment(appt.ID, appt.DoctorID, req.Date, appt.StartMinute).
		WithField("serial_number", appt.SerialNumber).Info("appointment booked")
	return appt, nil
}

func (s *BookingService) validateBook(req BookRequest) (time.Time, error) {
	if req.DoctorID == 0 {
		return time.Time{}, validationf("doctor_id is required")
	}
	if req.PatientUserID == 0 {
		return time.Time{}, validationf("patient is required")
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		return time.Time{}, validationf("date must be YYYY-MM-DD")
	}
	if req.StartMinute < 0 || req.StartMinute >= schedule.MinutesPerDay {
		return time.Time{}, validationf("start_minute must be within 0..%d", schedule.MinutesPerDay-1)
	}
	startsAt := date.Add(time.Duration(req.StartMinute) * time.Minute)
	if !startsAt.After(s.Now()) {
		return time.Time{}, validationf("cannot book a slot that has already started")
	}
	return date, nil
}

// afterCommit runs the side effects of a committed ledger change.
func (s *BookingService) afterCommit(ctx context.Context, eventType string, a *model.Appointment, actor uint64) {
	if err := s.Cache.Invalidate(ctx, a.DoctorID, a.Date); err != nil {
		s.Log.WithComponent("cache").WithError(err).Warn("free-slot invalidation failed")
	}
	s.publish(ctx, queue.NewAppointmentEvent(eventType, a, actor, s.Now()))
}

// authorize lets the booking patient or the owning doctor through.
func (s *BookingService) authorize(ctx context.Context, actor Actor, a *model.Appointment) error {
	switch actor.Role {
	case model.RolePatient:
		if a.PatientUserID == actor.UserID {
			return nil
		}
	case model.RoleDoctor:
		d, err := s.Doctors.GetByUserID(ctx, actor.UserID)
		if errors.Is(err, repository.ErrDoctorNotFound) {
			return errForbidden
		}
		if err != nil {
			return err
		}
		if d.ID == a.DoctorID {
			return nil
		}
	}
	return errForbidden
}

// Get returns an appointment to its patient or its doctor.
func (s *BookingService) Get(ctx context.Context, actor Actor, id uint64) (*model.Appointment, error) {
	a, err := s.Appointments.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("get", err)
	}
	if err := s.authorize(ctx, actor, a); err != nil {
		return nil, s.fail("get", err)
	}
	return a, nil
}

// Ledger is a list of appointments.  LastSerial is set for a doctor's
// single-day listing and reports the last serial issued that day,
// including serials of cancelled appointments.
type Ledger struct {
	Items      []model.Appointment `json:"items"`
	LastSerial *uint32             `json:"last_serial,omitempty"`
}

// List returns the caller's appointments: a patient's own bookings or a
// doctor's ledger.  date may be empty for all days.
func (s *BookingService) List(ctx context.Context, actor Actor, date string) (*Ledger, error) {
	var f repository.ListFilter
	if strings.TrimSpace(date) != "" {
		d, err := schedule.ParseDate(date)
		if err != nil {
			return nil, validationf("date must be YYYY-MM-DD")
		}
		f.Date = &d
	}
	switch actor.Role {
	case model.RolePatient:
		items, err := s.Appointments.ListByPatient(ctx, actor.UserID, f)
		if err != nil {
			return nil, s.fail("list", err)
		}
		return &Ledger{Items: items}, nil
	case model.RoleDoctor:
		d, err := s.Doctors.GetByUserID(ctx, actor.UserID)
		if errors.Is(err, repository.ErrDoctorNotFound) {
			return nil, errNotADoctor
		}
		if err != nil {
			return nil, s.fail("list", err)
		}
		items, err := s.Appointments.ListByDoctor(ctx, d.ID, f)
		if err != nil {
			return nil, s.fail("list", err)
		}
		out := &Ledger{Items: items}
		if f.Date != nil {
			last, err := s.Counters.Current(ctx, d.ID, *f.Date)
			if err != nil {
				return nil, s.fail("list", err)
			}
			out.LastSerial = &last
		}
		return out, nil
	}
	return nil, errForbidden
}

// Cancel moves a BOOKED appointment to CANCELLED.  Only the patient or
// the owning doctor may cancel.  The serial is not reused and the day
// counter is not touched; the slot becomes bookable again.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, id uint64) (*model.Appointment, error) {
	current, err := s.Appointments.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("cancel", err)
	}
	if err := s.authorize(ctx, actor, current); err != nil {
		return nil, s.fail("cancel", err)
	}

	var appt *model.Appointment
	err = s.runTx(ctx, "cancel", func(tx *sql.Tx) error {
		a, err := s.Appointments.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if a.Status != model.StatusBooked {
			return ErrInvalidStatus
		}
		if err := s.Appointments.UpdateStatusTx(ctx, tx, id, model.StatusCancelled); err != nil {
			return err
		}
		a.Status = model.StatusCancelled
		a.UpdatedAt = s.Now().UTC()
		appt = a
		return nil
	})
	if err != nil {
		return nil, s.fail("cancel", err)
	}

	s.Metrics.ObserveTransition(model.StatusCancelled)
	s.afterCommit(ctx, queue.EventCancelled, appt, actor.UserID)
	s.Log.WithAppointment(appt.ID, appt.DoctorID, appt.Date.Format(schedule.DateLayout), appt.StartMinute).
		WithField("actor_user_id", actor.UserID).Info("appointment cancelled")
	return appt, nil
}

// ReviewRequest carries a patient's rating of a past appointment.
type ReviewRequest struct {
	AppointmentID uint64
	PatientUserID uint64
	Rating        int
	Review        *string
}

// ReviewResult is the reviewed appointment with the doctor's new
// aggregate.
type ReviewResult struct {
	Appointment  *model.Appointment
	AvgRating    float64
	TotalReviews uint32
}

// Review records a rating, completes the appointment and recomputes the
// doctor's average from every rated appointment.  The full rescan runs
// under the doctor row lock, so concurrent reviews of one doctor each
// see all previously committed ratings.
func (s *BookingService) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, validationf("rating must be between 1 and 5")
	}
	review := req.Review
	if review != nil {
		trimmed := strings.TrimSpace(*review)
		if len(trimmed) > maxReviewLength {
			return nil, validationf("review must be at most %d characters", maxReviewLength)
		}
		if trimmed == "" {
			review = nil
		} else {
			review = &trimmed
		}
	}

	a, err := s.Appointments.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, s.fail("review", err)
	}
	if a.PatientUserID != req.PatientUserID {
		return nil, errForbidden
	}
	if a.Rating != nil {
		return nil, errAlreadyReviewed
	}
	if !a.IsActive() {
		return nil, errReviewCancelled
	}
	now := s.Now()
	if !a.StartsAt().Before(now) {
		return nil, validationf("appointment has not taken place yet")
	}

	rating := uint8(req.Rating)
	var avg float64
	var total uint32
	err = s.runTx(ctx, "review", func(tx *sql.Tx) error {
		if err := s.Doctors.LockTx(ctx, tx, a.DoctorID); err != nil {
			return err
		}
		applied, err := s.Appointments.SetReviewTx(ctx, tx, a.ID, rating, review, now)
		if err != nil {
			return err
		}
		if !applied {
			cur, err := s.Appointments.GetForUpdateTx(ctx, tx, a.ID)
			if err != nil {
				return err
			}
			if cur.Rating == nil && !cur.IsActive() {
				return errReviewCancelled
			}
			return errAlreadyReviewed
		}
		avg, total, err = s.Appointments.RatingStatsTx(ctx, tx, a.DoctorID)
		if err != nil {
			return err
		}
		return s.Doctors.UpdateRatingTx(ctx, tx, a.DoctorID, avg, total)
	})
	if err != nil {
		return nil, s.fail("review", err)
	}

	reviewedAt := now.UTC()
	a.Rating = &rating
	a.Review = review
	a.ReviewedAt = &reviewedAt
	a.Status = model.StatusCompleted
	s.Metrics.ObserveTransition(model.StatusCompleted)
	s.publish(ctx, queue.NewAppointmentEvent(queue.EventReviewed, a, req.PatientUserID, now))
	s.Log.WithAppointment(a.ID, a.DoctorID, a.Date.Format(schedule.DateLayout), a.StartMinute).
		WithField("avg_rating", avg).WithField("total_reviews", total).Info("appointment reviewed")
	return &ReviewResult{Appointment: a, AvgRating: avg, TotalReviews: total}, nil
}
