package workflow

import (
	"fmt"
	"sort"
)

// Interval is a weekly half-open time range [Start, End) in minutes since midnight.
type Interval struct {
	Day   int
	Start int
	End   int
}

// ParseClock converts "HH:MM" into minutes since midnight. Only ASCII digits are accepted.
func ParseClock(raw string) (int, error) {
	if len(raw) != 5 || raw[2] != ':' {
		return 0, fmt.Errorf("time %q must be HH:MM", raw)
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, fmt.Errorf("time %q must be HH:MM", raw)
		}
	}
	h := int(raw[0]-'0')*10 + int(raw[1]-'0')
	if h > 23 {
		return 0, fmt.Errorf("time %q has an invalid hour", raw)
	}
	m := int(raw[3]-'0')*10 + int(raw[4]-'0')
	if m > 59 {
		return 0, fmt.Errorf("time %q has invalid minutes", raw)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NewInterval parses day/start/end into a validated Interval.
func NewInterval(day int, start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	iv := Interval{Day: day, Start: s, End: e}
	return iv, iv.Validate()
}

// Validate rejects days outside 0..6 and empty or inverted ranges.
func (iv Interval) Validate() error {
	if iv.Day < 0 || iv.Day > 6 {
		return fmt.Errorf("day of week %d out of range 0..6", iv.Day)
	}
	if iv.Start < 0 || iv.End > 24*60 {
		return fmt.Errorf("interval %s-%s outside the day", FormatClock(iv.Start), FormatClock(iv.End))
	}
	if iv.Start >= iv.End {
		return fmt.Errorf("start %s must be before end %s", FormatClock(iv.Start), FormatClock(iv.End))
	}
	return nil
}

// Overlaps is the half-open overlap test. Intervals on different days never overlap;
// touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Day == b.Day && a.Start < b.End && b.Start < a.End
}

// FindConflicts returns the indexes of every existing interval overlapping candidate,
// ordered by start time.
func FindConflicts(candidate Interval, existing []Interval) []int {
	var hits []int
	for i, iv := range existing {
		if Overlaps(candidate, iv) {
			hits = append(hits, i)
		}
	}
	sort.SliceStable(hits, func(x, y int) bool {
		return existing[hits[x]].Start < existing[hits[y]].Start
	})
	return hits
}
