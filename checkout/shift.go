package checkout

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"
)

// AllShifts is the catalog sentinel meaning "any shift"; it is never offered.
const AllShifts = "all"

var ErrBadShift = errors.New("shift must look like HH:MM-HH:MM")

// Shift is a pickup window, in minutes after midnight.
type Shift struct {
	Label string
	Start int
	End   int
}

// ParseShift reads "HH:MM-HH:MM".
func ParseShift(label string) (Shift, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(label), "-")
	if !ok {
		return Shift{}, fmt.Errorf("%w: %q", ErrBadShift, label)
	}
	start, err := clockMinutes(from)
	if err != nil {
		return Shift{}, fmt.Errorf("%w: %q", ErrBadShift, label)
	}
	end, err := clockMinutes(to)
	if err != nil || end <= start {
		return Shift{}, fmt.Errorf("%w: %q", ErrBadShift, label)
	}
	return Shift{Label: label, Start: start, End: end}, nil
}

func clockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// StartOn returns the shift's start on the calendar day of day.
func (s Shift) StartOn(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, s.Start/60, s.Start%60, 0, 0, day.Location())
}

// FilterShifts drops the "all" sentinel, blanks, duplicates and entries that
// do not parse, keeping catalog order.
func FilterShifts(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, AllShifts) || slices.Contains(out, s) {
			continue
		}
		if _, err := ParseShift(s); err != nil {
			log.Printf("[Checkout] skipping shift: %v", err)
			continue
		}
		out = append(out, s)
	}
	return out
}

// AutoSelectShift picks the shift to preselect. A stored choice still on
// offer wins. Otherwise the shift whose start is nearest to now without
// being ahead of it is chosen, which makes the last shift of the day the
// answer once its start has passed; before the first shift starts, the
// first shift is chosen.
func AutoSelectShift(shifts []string, stored string, now time.Time) string {
	if stored != "" && slices.Contains(shifts, stored) {
		return stored
	}

	var parsed []Shift
	for _, s := range shifts {
		if sh, err := ParseShift(s); err == nil {
			parsed = append(parsed, sh)
		}
	}
	if len(parsed) == 0 {
		return ""
	}
	slices.SortStableFunc(parsed, func(a, b Shift) int { return a.Start - b.Start })

	minute := now.Hour()*60 + now.Minute()
	choice := parsed[0]
	for _, sh := range parsed {
		if sh.Start <= minute {
			choice = sh
		}
	}
	return choice.Label
}
