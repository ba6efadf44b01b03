package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
)

// AppointmentRepo is the booking ledger.  It reads and writes the
// appointments table.  The table carries a generated column active_slot
// that is NULL for cancelled rows and 1 otherwise; the unique index over
// (doctor_id, appt_date, start_minute, active_slot) therefore allows at
// most one non-cancelled booking per slot.  Dates are bound as
// YYYY-MM-DD strings and stored as DATE.
type AppointmentRepo struct {
	db *sql.DB
}

// NewAppointmentRepo returns an AppointmentRepo bound to db.
func NewAppointmentRepo(db *sql.DB) *AppointmentRepo { return &AppointmentRepo{db: db} }

const appointmentColumns = `id, doctor_id, patient_user_id, appt_date, start_minute, status, serial_number,
                      rating, review, reviewed_at, created_at, updated_at`

// dateArg formats a UTC-midnight day for binding to a DATE column.
func dateArg(d time.Time) string { return d.UTC().Format("2006-01-02") }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(s rowScanner) (*model.Appointment, error) {
	var (
		a          model.Appointment
		rating     sql.NullInt16
		review     sql.NullString
		reviewedAt sql.NullTime
	)
	if err := s.Scan(&a.ID, &a.DoctorID, &a.PatientUserID, &a.Date, &a.StartMinute, &a.Status, &a.SerialNumber,
		&rating, &review, &reviewedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Date = a.Date.UTC()
	if rating.Valid {
		v := uint8(rating.Int16)
		a.Rating = &v
	}
	if review.Valid {
		v := review.String
		a.Review = &v
	}
	if reviewedAt.Valid {
		v := reviewedAt.Time.UTC()
		a.ReviewedAt = &v
	}
	return &a, nil
}

// CreateTx inserts a BOOKED appointment inside tx and reloads it so the
// generated ID and timestamps are populated.  A duplicate-key error is
// returned unchanged; callers test it with IsDuplicateKey.
func (r *AppointmentRepo) CreateTx(ctx context.Context, tx *sql.Tx, a *model.Appointment) error {
	const q = `INSERT INTO appointments (doctor_id, patient_user_id, appt_date, start_minute, status, serial_number)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, a.DoctorID, a.PatientUserID, dateArg(a.Date), a.StartMinute, a.Status, a.SerialNumber)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanAppointment(tx.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*a = *created
	return nil
}

// ActiveIDForUpdateTx locks and returns the ID of the non-cancelled
// appointment occupying the slot.  found is false when the slot is free.
func (r *AppointmentRepo) ActiveIDForUpdateTx(ctx context.Context, tx *sql.Tx, doctorID uint64, date time.Time, startMinute int) (id uint64, found bool, err error) {
	const q = `SELECT id FROM appointments
               WHERE doctor_id = ? AND appt_date = ? AND start_minute = ? AND status <> 'CANCELLED'
               FOR UPDATE`
	err = tx.QueryRowContext(ctx, q, doctorID, dateArg(date), startMinute).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// ActiveStartMinutes returns the start minutes of every non-cancelled
// appointment of the doctor on date.
func (r *AppointmentRepo) ActiveStartMinutes(ctx context.Context, doctorID uint64, date time.Time) (map[int]struct{}, error) {
	const q = `SELECT start_minute FROM appointments
               WHERE doctor_id = ? AND appt_date = ? AND status <> 'CANCELLED'`
	rows, err := r.db.QueryContext(ctx, q, doctorID, dateArg(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	taken := make(map[int]struct{})
	for rows.Next() {
		var m int
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		taken[m] = struct{}{}
	}
	return taken, rows.Err()
}

// GetByID loads a single appointment.  ErrAppointmentNotFound is
// returned when the ID is unknown.
func (r *AppointmentRepo) GetByID(ctx context.Context, id uint64) (*model.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	return a, err
}

// GetForUpdateTx loads and row-locks an appointment inside tx.
func (r *AppointmentRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Appointment, error) {
	a, err := scanAppointment(tx.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	return a, err
}

// UpdateStatusTx moves an appointment to status.  It does not check the
// current status; callers lock the row first with GetForUpdateTx.
func (r *AppointmentRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx, `UPDATE appointments SET status = ? WHERE id = ?`, status, id)
	return err
}

// SetReviewTx records the rating and marks a BOOKED appointment
// COMPLETED.  A row that was reviewed or cancelled concurrently is left
// untouched and applied is false; callers re-read it to tell which.
func (r *AppointmentRepo) SetReviewTx(ctx context.Context, tx *sql.Tx, id uint64, rating uint8, review *string, at time.Time) (applied bool, err error) {
	const q = `UPDATE appointments
               SET rating = ?, review = ?, reviewed_at = ?, status = 'COMPLETED'
               WHERE id = ? AND rating IS NULL AND status = 'BOOKED'`
	var rv sql.NullString
	if review != nil {
		rv = sql.NullString{String: *review, Valid: true}
	}
	res, err := tx.ExecContext(ctx, q, rating, rv, at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RatingStatsTx scans every rated appointment of the doctor and returns
// the average rating and the number of ratings.
func (r *AppointmentRepo) RatingStatsTx(ctx context.Context, tx *sql.Tx, doctorID uint64) (avg float64, count uint32, err error) {
	const q = `SELECT COALESCE(SUM(rating), 0), COUNT(rating) FROM appointments
               WHERE doctor_id = ? AND rating IS NOT NULL`
	var sum int64
	if err := tx.QueryRowContext(ctx, q, doctorID).Scan(&sum, &count); err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

// ListFilter narrows ListByPatient and ListByDoctor to a single day when
// Date is non-nil.
type ListFilter struct {
	Date *time.Time
}

// ListByPatient returns the patient's appointments, newest day first.
func (r *AppointmentRepo) ListByPatient(ctx context.Context, patientUserID uint64, f ListFilter) ([]model.Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE patient_user_id = ?`
	args := []any{patientUserID}
	if f.Date != nil {
		q += ` AND appt_date = ?`
		args = append(args, dateArg(*f.Date))
	}
	q += ` ORDER BY appt_date DESC, start_minute`
	return r.list(ctx, q, args...)
}

// ListByDoctor returns the doctor's ledger ordered by day and serial.
func (r *AppointmentRepo) ListByDoctor(ctx context.Context, doctorID uint64, f ListFilter) ([]model.Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE doctor_id = ?`
	args := []any{doctorID}
	if f.Date != nil {
		q += ` AND appt_date = ?`
		args = append(args, dateArg(*f.Date))
	}
	q += ` ORDER BY appt_date, serial_number`
	return r.list(ctx, q, args...)
}

func (r *AppointmentRepo) list(ctx context.Context, q string, args ...any) ([]model.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
