package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
)

// AvailabilityRepo persists doctors' weekly availability templates in the
// weekly_availability table.  A doctor's rows are only ever replaced as
// a whole; there is no per-row update.
type AvailabilityRepo struct {
	db *sql.DB
}

// NewAvailabilityRepo returns an AvailabilityRepo bound to db.
func NewAvailabilityRepo(db *sql.DB) *AvailabilityRepo { return &AvailabilityRepo{db: db} }

const availabilityColumns = `id, doctor_id, weekday, start_minute, end_minute, slot_minutes, timezone`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ListByDoctor returns the doctor's full weekly template ordered by
// weekday and start minute.
func (r *AvailabilityRepo) ListByDoctor(ctx context.Context, doctorID uint64) ([]model.WeeklyAvailability, error) {
	const q = `SELECT ` + availabilityColumns + ` FROM weekly_availability
               WHERE doctor_id = ? ORDER BY weekday, start_minute`
	return listAvailability(ctx, r.db, q, doctorID)
}

// ListByDoctorWeekday returns the rows of one weekday outside any
// transaction.  Used by the free-slot read path.
func (r *AvailabilityRepo) ListByDoctorWeekday(ctx context.Context, doctorID uint64, weekday int) ([]model.WeeklyAvailability, error) {
	return listAvailability(ctx, r.db, availabilityByWeekdayQ, doctorID, weekday)
}

// ListByDoctorWeekdayTx is ListByDoctorWeekday inside the booking
// transaction.
func (r *AvailabilityRepo) ListByDoctorWeekdayTx(ctx context.Context, tx *sql.Tx, doctorID uint64, weekday int) ([]model.WeeklyAvailability, error) {
	return listAvailability(ctx, tx, availabilityByWeekdayQ, doctorID, weekday)
}

const availabilityByWeekdayQ = `SELECT ` + availabilityColumns + ` FROM weekly_availability
               WHERE doctor_id = ? AND weekday = ? ORDER BY start_minute`

func listAvailability(ctx context.Context, q queryer, query string, args ...any) ([]model.WeeklyAvailability, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.WeeklyAvailability{}
	for rows.Next() {
		var a model.WeeklyAvailability
		if err := rows.Scan(&a.ID, &a.DoctorID, &a.Weekday, &a.StartMinute, &a.EndMinute, &a.SlotMinutes, &a.Timezone); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReplaceTx deletes every row of the doctor and inserts rows in a single
// multi-row statement.  The caller owns the transaction, so readers see
// either the old template or the new one, never a mix.
func (r *AvailabilityRepo) ReplaceTx(ctx context.Context, tx *sql.Tx, doctorID uint64, rows []model.WeeklyAvailability) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_availability WHERE doctor_id = ?`, doctorID); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO weekly_availability (doctor_id, weekday, start_minute, end_minute, slot_minutes, timezone) VALUES `)
	args := make([]any, 0, len(rows)*6)
	for i, a := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, doctorID, a.Weekday, a.StartMinute, a.EndMinute, a.SlotMinutes, a.Timezone)
	}
	_, err := tx.ExecContext(ctx, b.String(), args...)
	return err
}
