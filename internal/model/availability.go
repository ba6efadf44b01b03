package model

// WeeklyAvailability is one recurring open interval in a doctor's weekly
// template.  Weekday follows time.Weekday (0 = Sunday).  Minutes are
// counted from midnight, so StartMinute 540 means 09:00.
type WeeklyAvailability struct {
	ID          uint64 `json:"id"`
	DoctorID    uint64 `json:"doctor_id"`
	Weekday     int    `json:"weekday"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	SlotMinutes int    `json:"slot_minutes"`
	Timezone    string `json:"timezone"`
}

// Slot is a bookable window derived from the weekly template for a
// specific date.  It is computed on demand and never persisted.
type Slot struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
	SlotMinutes int `json:"slot_minutes"`
}
