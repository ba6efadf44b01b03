package repository

import (
	"context"
	"database/sql"
	"time"
)

// DayCounterRepo hands out serial numbers from the day_counters table,
// one row per (doctor_id, counter_date).  It is a sequence generator
// only; the ledger stays the source of truth for bookings.
type DayCounterRepo struct {
	db *sql.DB
}

// NewDayCounterRepo returns a DayCounterRepo bound to db.
func NewDayCounterRepo(db *sql.DB) *DayCounterRepo { return &DayCounterRepo{db: db} }

// NextSerialTx advances the counter for (doctorID, date) and returns the
// new value: 1 when no row existed, the stored value plus one otherwise.
// The upsert holds an exclusive lock on the counter row until tx ends,
// so concurrent bookings for the same doctor and day are serialized here
// while other days and doctors are untouched.  Rolling back tx leaves
// the counter unchanged.
func (r *DayCounterRepo) NextSerialTx(ctx context.Context, tx *sql.Tx, doctorID uint64, date time.Time) (uint32, error) {
	const upsert = `INSERT INTO day_counters (doctor_id, counter_date, next_serial) VALUES (?, ?, 1)
                    ON DUPLICATE KEY UPDATE next_serial = next_serial + 1`
	if _, err := tx.ExecContext(ctx, upsert, doctorID, dateArg(date)); err != nil {
		return 0, err
	}
	var serial uint32
	err := tx.QueryRowContext(ctx,
		`SELECT next_serial FROM day_counters WHERE doctor_id = ? AND counter_date = ?`,
		doctorID, dateArg(date)).Scan(&serial)
	return serial, err
}

// Current returns the last serial issued for (doctorID, date), or 0 when
// nothing was booked that day.
func (r *DayCounterRepo) Current(ctx context.Context, doctorID uint64, date time.Time) (uint32, error) {
	var serial uint32
	err := r.db.QueryRowContext(ctx,
		`SELECT next_serial FROM day_counters WHERE doctor_id = ? AND counter_date = ?`,
		doctorID, dateArg(date)).Scan(&serial)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return serial, err
}
