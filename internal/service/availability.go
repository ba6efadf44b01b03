package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/repository"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/schedule"
)

// AvailabilityService serves free slots and manages doctors' weekly
// templates.
type AvailabilityService struct {
	Deps
}

// NewAvailabilityService panics when a required dependency is missing.
func NewAvailabilityService(d Deps) *AvailabilityService {
	d.check("NewAvailabilityService")
	return &AvailabilityService{Deps: d}
}

// FreeSlots returns the doctor's slots on date that no active
// appointment occupies, ordered by start minute.  The read is not
// transactional; a slot listed here may still be refused by Book.
func (s *AvailabilityService) FreeSlots(ctx context.Context, doctorID uint64, date string) ([]model.Slot, error) {
	day, err := schedule.ParseDate(date)
	if err != nil {
		return nil, validationf("date is required as YYYY-MM-DD")
	}
	if _, err := s.Doctors.GetByID(ctx, doctorID); err != nil {
		return nil, s.fail("free_slots", err)
	}
	if slots, hit := s.Cache.Get(ctx, doctorID, day); hit {
		s.Metrics.ObserveCache(true)
		return slots, nil
	}
	if s.Cache != nil {
		s.Metrics.ObserveCache(false)
	}
	stamp := s.Cache.Stamp(ctx, doctorID, day)

	rows, err := s.Availability.ListByDoctorWeekday(ctx, doctorID, int(day.Weekday()))
	if err != nil {
		return nil, s.fail("free_slots", err)
	}
	taken, err := s.Appointments.ActiveStartMinutes(ctx, doctorID, day)
	if err != nil {
		return nil, s.fail("free_slots", err)
	}
	free := schedule.Free(schedule.Generate(rows, day), taken)
	if _, err := s.Cache.Set(ctx, doctorID, day, stamp, free); err != nil {
		s.Log.WithComponent("cache").WithError(err).Warn("free-slot cache write failed")
	}
	return free, nil
}

// Weekly returns the doctor's recurring template.
func (s *AvailabilityService) Weekly(ctx context.Context, doctorID uint64) ([]model.WeeklyAvailability, error) {
	if _, err := s.Doctors.GetByID(ctx, doctorID); err != nil {
		return nil, s.fail("weekly", err)
	}
	rows, err := s.Availability.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, s.fail("weekly", err)
	}
	return rows, nil
}

// Replace swaps the calling doctor's whole weekly template for rows.
// Concurrent slot reads see the old template or the new one, never a
// partial mix.  Existing appointments are left alone even if the new
// template no longer covers them.
func (s *AvailabilityService) Replace(ctx context.Context, actor Actor, rows []model.WeeklyAvailability) error {
	normalized, err := schedule.NormalizeTemplate(rows, s.DefaultSlotMinutes)
	if err != nil {
		return validationf("%s", err.Error())
	}
	if actor.Role != model.RoleDoctor {
		return errNotADoctor
	}
	doctor, err := s.Doctors.GetByUserID(ctx, actor.UserID)
	if errors.Is(err, repository.ErrDoctorNotFound) {
		return errNotADoctor
	}
	if err != nil {
		return s.fail("replace_availability", err)
	}

	err = s.runTx(ctx, "replace_availability", func(tx *sql.Tx) error {
		return s.Availability.ReplaceTx(ctx, tx, doctor.ID, normalized)
	})
	if err != nil {
		return s.fail("replace_availability", err)
	}
	if err := s.Cache.InvalidateDoctor(ctx, doctor.ID); err != nil {
		s.Log.WithComponent("cache").WithError(err).Warn("free-slot invalidation failed")
	}
	s.Log.WithComponent("availability").WithField("doctor_id", doctor.ID).WithField("rows", len(normalized)).Info("weekly availability replaced")
	return nil
}
