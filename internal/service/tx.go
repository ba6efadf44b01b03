package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/cache"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/logging"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/metrics"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/queue"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/repository"
)

// EventPublisher delivers committed appointment events.  *queue.Publisher
// satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AppointmentEvent) error
}

// Deps bundles what the services need.  DB, the repositories and Log are
// required; Cache, Events and Metrics may be nil.
type Deps struct {
	DB           *sql.DB
	Availability *repository.AvailabilityRepo
	Appointments *repository.AppointmentRepo
	Counters     *repository.DayCounterRepo
	Doctors      *repository.DoctorRepo
	Cache        *cache.FreeSlots
	Events       EventPublisher
	Metrics      *metrics.SchedulerMetrics
	Log          *logging.Logger

	MaxRetries         int
	DefaultSlotMinutes int
	Now                func() time.Time
}

func (d *Deps) check(name string) {
	if d.DB == nil || d.Availability == nil || d.Appointments == nil || d.Counters == nil || d.Doctors == nil || d.Log == nil {
		panic("nil dependency passed to " + name)
	}
	if d.MaxRetries < 1 {
		d.MaxRetries = 1
	}
	if d.DefaultSlotMinutes <= 0 {
		d.DefaultSlotMinutes = 30
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// retryBackoff is the pause before the n-th replay of a transaction.
var retryBackoff = func(n int) time.Duration { return time.Duration(n*n) * 5 * time.Millisecond }

// runTx executes fn in a transaction and commits it.  A transaction
// aborted by deadlock or lock wait timeout is replayed from the start up
// to MaxRetries attempts in total; any other error is returned as is.
// The transaction is always rolled back unless commit succeeded.
func (d *Deps) runTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	start := time.Now()
	defer func() { d.Metrics.ObserveTx(op, time.Since(start).Seconds()) }()

	var err error
	for attempt := 1; attempt <= d.MaxRetries; attempt++ {
		err = d.tryTx(ctx, fn)
		if err == nil || !repository.IsRetryable(err) {
			return err
		}
		d.Metrics.ObserveRetry(op)
		d.Log.WithComponent("tx").WithError(err).WithField("operation", op).WithField("attempt", attempt).Warn("transaction aborted by lock contention")
		if attempt == d.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff(attempt)):
		}
	}
	return err
}

func (d *Deps) tryTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// fail turns any error into a *Error.  Foreign errors become opaque
// internal errors and are logged with the operation name.
func (d *Deps) fail(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, repository.ErrAppointmentNotFound):
		return errAppointmentNotFound
	case errors.Is(err, repository.ErrDoctorNotFound):
		return errDoctorNotFound
	}
	d.Log.WithComponent("service").WithError(err).WithField("operation", op).Error("operation failed")
	return internal(err)
}

// publish sends ev and logs a failure.  The ledger has already
// committed, so a lost event never fails the request.
func (d *Deps) publish(ctx context.Context, ev queue.AppointmentEvent) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(ctx, ev); err != nil {
		d.Log.WithComponent("events").WithError(err).WithField("type", ev.Type).WithField("appointment_id", ev.AppointmentID).Warn("publish failed")
	}
}
