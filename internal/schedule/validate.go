package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // templates may name zones the host lacks

	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
)

// DefaultTimezone is stored when a template row names no timezone.
const DefaultTimezone = "UTC"

// NormalizeTemplate validates a replacement weekly template and fills in
// defaults.  defaultSlot is used for rows that omit SlotMinutes.  The
// first problem found is returned as an error suitable for showing to
// the doctor.
func NormalizeTemplate(rows []model.WeeklyAvailability, defaultSlot int) ([]model.WeeklyAvailability, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("slots must not be empty")
	}
	out := make([]model.WeeklyAvailability, 0, len(rows))
	for i, r := range rows {
		if r.Weekday < 0 || r.Weekday > 6 {
			return nil, fmt.Errorf("slots[%d]: weekday must be between 0 and 6", i)
		}
		if r.StartMinute < 0 || r.EndMinute > MinutesPerDay {
			return nil, fmt.Errorf("slots[%d]: minutes must be within 0..%d", i, MinutesPerDay)
		}
		if r.StartMinute >= r.EndMinute {
			return nil, fmt.Errorf("slots[%d]: start_minute must be before end_minute", i)
		}
		if r.SlotMinutes == 0 {
			r.SlotMinutes = defaultSlot
		}
		if r.SlotMinutes <= 0 {
			return nil, fmt.Errorf("slots[%d]: slot_minutes must be positive", i)
		}
		r.Timezone = strings.TrimSpace(r.Timezone)
		if r.Timezone == "" {
			r.Timezone = DefaultTimezone
		}
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			return nil, fmt.Errorf("slots[%d]: unknown timezone %q", i, r.Timezone)
		}
		out = append(out, r)
	}
	if err := checkOverlap(out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkOverlap rejects two intervals on the same weekday that share any
// minute, since they would yield colliding slot start times.
func checkOverlap(rows []model.WeeklyAvailability) error {
	sorted := make([]model.WeeklyAvailability, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Weekday != sorted[j].Weekday {
			return sorted[i].Weekday < sorted[j].Weekday
		}
		return sorted[i].StartMinute < sorted[j].StartMinute
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Weekday == cur.Weekday && cur.StartMinute < prev.EndMinute {
			return fmt.Errorf("intervals %d-%d and %d-%d overlap on weekday %d",
				prev.StartMinute, prev.EndMinute, cur.StartMinute, cur.EndMinute, cur.Weekday)
		}
	}
	return nil
}
