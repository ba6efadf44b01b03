package model

import "time"

// Doctor is the slice of the doctor profile the scheduler reads and
// writes.  The profile itself lives elsewhere; AvgRating and
// TotalReviews are maintained by the review aggregator.
type Doctor struct {
	ID           uint64    `json:"id"`
	UserID       uint64    `json:"user_id"`
	Name         string    `json:"name"`
	AvgRating    float64   `json:"avg_rating"`
	TotalReviews uint32    `json:"total_reviews"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Roles carried in the access token's role claim.
const (
	RolePatient = "PATIENT"
	RoleDoctor  = "DOCTOR"
)
