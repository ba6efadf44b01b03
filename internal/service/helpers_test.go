package service

import (
	"context"
	"database/sql/driver"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/logging"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/metrics"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/queue"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/repository"
)

const (
	doctorID     = 7
	doctorUserID = 70
	patientID    = 100
	mondayStr    = "2025-03-03"
)

var (
	monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	// Saturday morning before the Monday under test.
	clock = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AppointmentEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.AppointmentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func newDeps(t *testing.T) (Deps, sqlmock.Sqlmock, *recordingPublisher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	prev := retryBackoff
	retryBackoff = func(int) time.Duration { return 0 }
	t.Cleanup(func() { retryBackoff = prev })

	pub := &recordingPublisher{}
	return Deps{
		DB:                 db,
		Availability:       repository.NewAvailabilityRepo(db),
		Appointments:       repository.NewAppointmentRepo(db),
		Counters:           repository.NewDayCounterRepo(db),
		Doctors:            repository.NewDoctorRepo(db),
		Events:             pub,
		Metrics:            metrics.NewSchedulerMetrics(prometheus.NewRegistry()),
		Log:                logging.Discard(),
		MaxRetries:         3,
		DefaultSlotMinutes: 30,
		Now:                func() time.Time { return clock },
	}, mock, pub
}

func qm(s string) string { return regexp.QuoteMeta(s) }

func mondayAvailability() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "doctor_id", "weekday", "start_minute", "end_minute", "slot_minutes", "timezone"}).
		AddRow(1, doctorID, 1, 540, 600, 20, "UTC")
}

var appointmentCols = []string{"id", "doctor_id", "patient_user_id", "appt_date", "start_minute", "status", "serial_number",
	"rating", "review", "reviewed_at", "created_at", "updated_at"}

func appointmentValues(a model.Appointment) []driver.Value {
	var rating, review, reviewedAt driver.Value
	if a.Rating != nil {
		rating = int64(*a.Rating)
	}
	if a.Review != nil {
		review = *a.Review
	}
	if a.ReviewedAt != nil {
		reviewedAt = *a.ReviewedAt
	}
	return []driver.Value{int64(a.ID), int64(a.DoctorID), int64(a.PatientUserID), a.Date, int64(a.StartMinute), a.Status, int64(a.SerialNumber),
		rating, review, reviewedAt, clock, clock}
}

func appointmentRows(list ...model.Appointment) *sqlmock.Rows {
	rows := sqlmock.NewRows(appointmentCols)
	for _, a := range list {
		rows.AddRow(appointmentValues(a)...)
	}
	return rows
}

func booked(id uint64, start int, serial uint32) model.Appointment {
	return model.Appointment{
		ID: id, DoctorID: doctorID, PatientUserID: patientID, Date: monday,
		StartMinute: start, Status: model.StatusBooked, SerialNumber: serial,
	}
}

func doctorRows(id, userID uint64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "name", "avg_rating", "total_reviews", "updated_at"}).
		AddRow(int64(id), int64(userID), "Dr. Rahimi", 0.0, 0, clock)
}

// expectBookingTx queues the statements of one successful booking.
func expectBookingTx(mock sqlmock.Sqlmock, id uint64, start int, serial uint32) {
	mock.ExpectBegin()
	mock.ExpectQuery(qm("FROM weekly_availability")).WithArgs(doctorID, 1).WillReturnRows(mondayAvailability())
	mock.ExpectQuery(qm("SELECT id FROM appointments")).WithArgs(doctorID, mondayStr, start).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(qm("INSERT INTO day_counters")).WithArgs(doctorID, mondayStr).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(qm("SELECT next_serial FROM day_counters")).WithArgs(doctorID, mondayStr).
		WillReturnRows(sqlmock.NewRows([]string{"next_serial"}).AddRow(serial))
	mock.ExpectExec(qm("INSERT INTO appointments")).WithArgs(doctorID, patientID, mondayStr, start, model.StatusBooked, serial).
		WillReturnResult(sqlmock.NewResult(int64(id), 1))
	mock.ExpectQuery(qm("FROM appointments WHERE id = ?")).WithArgs(id).WillReturnRows(appointmentRows(booked(id, start, serial)))
	mock.ExpectCommit()
}
