// Package schedule turns a doctor's weekly availability template into
// concrete bookable slots for a calendar day.  Everything here is pure:
// the read path and the booking transaction both call Generate, so the
// slots a patient is shown are exactly the slots the ledger accepts.
package schedule

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
)

// MinutesPerDay bounds every minute-of-day value.
const MinutesPerDay = 24 * 60

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned by ParseDate for anything that is not a
// real YYYY-MM-DD calendar day.
var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

// ParseDate parses a YYYY-MM-DD string into UTC midnight of that day.
// The caller's local calendar date is taken at face value; weekday
// derivation always uses the UTC value.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// NormalizeDate truncates t to UTC midnight of its UTC calendar day.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Generate returns the slots the template yields on date, ordered by
// start minute.  Only rows whose weekday matches date are used.  Each row
// contributes windows of SlotMinutes starting at StartMinute for as long
// as the window end stays within EndMinute.
func Generate(rows []model.WeeklyAvailability, date time.Time) []model.Slot {
	weekday := int(NormalizeDate(date).Weekday())
	var out []model.Slot
	for _, r := range rows {
		if r.Weekday != weekday || r.SlotMinutes <= 0 {
			continue
		}
		for start := r.StartMinute; start+r.SlotMinutes <= r.EndMinute; start += r.SlotMinutes {
			out = append(out, model.Slot{
				StartMinute: start,
				EndMinute:   start + r.SlotMinutes,
				SlotMinutes: r.SlotMinutes,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartMinute != out[j].StartMinute {
			return out[i].StartMinute < out[j].StartMinute
		}
		return out[i].EndMinute < out[j].EndMinute
	})
	return out
}

// Contains reports whether startMinute begins one of the slots Generate
// yields for date.
func Contains(rows []model.WeeklyAvailability, date time.Time, startMinute int) bool {
	for _, s := range Generate(rows, date) {
		if s.StartMinute == startMinute {
			return true
		}
	}
	return false
}

// Free removes every slot whose start minute is in taken.
func Free(slots []model.Slot, taken map[int]struct{}) []model.Slot {
	out := make([]model.Slot, 0, len(slots))
	for _, s := range slots {
		if _, busy := taken[s.StartMinute]; busy {
			continue
		}
		out = append(out, s)
	}
	return out
}
