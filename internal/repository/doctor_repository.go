package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
)

// DoctorRepo reads doctor records owned by the profile service and
// writes the rating aggregate columns back to them.
type DoctorRepo struct {
	db *sql.DB
}

// NewDoctorRepo returns a DoctorRepo bound to db.
func NewDoctorRepo(db *sql.DB) *DoctorRepo { return &DoctorRepo{db: db} }

const doctorColumns = `id, user_id, name, avg_rating, total_reviews, updated_at`

func scanDoctor(s rowScanner) (*model.Doctor, error) {
	var d model.Doctor
	err := s.Scan(&d.ID, &d.UserID, &d.Name, &d.AvgRating, &d.TotalReviews, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByID loads a doctor by primary key.
func (r *DoctorRepo) GetByID(ctx context.Context, id uint64) (*model.Doctor, error) {
	return scanDoctor(r.db.QueryRowContext(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = ?`, id))
}

// GetByUserID resolves the doctor record of an authenticated user.
func (r *DoctorRepo) GetByUserID(ctx context.Context, userID uint64) (*model.Doctor, error) {
	return scanDoctor(r.db.QueryRowContext(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE user_id = ?`, userID))
}

// LockTx takes a row lock on the doctor so concurrent reviews of the
// same doctor recompute the aggregate one after another.
func (r *DoctorRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	var got uint64
	err := tx.QueryRowContext(ctx, `SELECT id FROM doctors WHERE id = ? FOR UPDATE`, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDoctorNotFound
	}
	return err
}

// UpdateRatingTx stores a freshly computed aggregate.
func (r *DoctorRepo) UpdateRatingTx(ctx context.Context, tx *sql.Tx, id uint64, avg float64, total uint32) error {
	_, err := tx.ExecContext(ctx, `UPDATE doctors SET avg_rating = ?, total_reviews = ? WHERE id = ?`, avg, total, id)
	return err
}
