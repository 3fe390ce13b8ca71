package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidTimeOfDay = errors.New("model: invalid time of day")

// TimeOfDay is a wall-clock hour and minute. Out-of-range components are
// clamped on construction, so every TimeOfDay value is valid.
type TimeOfDay struct {
	hour   int
	minute int
}

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{hour: clamp(hour, 0, 23), minute: clamp(minute, 0, 59)}
}

func (t TimeOfDay) Hour() int   { return t.hour }
func (t TimeOfDay) Minute() int { return t.minute }

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.hour*60 + t.minute }

func (t TimeOfDay) Compare(o TimeOfDay) int {
	switch {
	case t.Minutes() < o.Minutes():
		return -1
	case t.Minutes() > o.Minutes():
		return 1
	default:
		return 0
	}
}

func (t TimeOfDay) Before(o TimeOfDay) bool { return t.Compare(o) < 0 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.hour, t.minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimeOfDay accepts "H:MM", "HH:MM" and "HHMM". Syntactically valid but
// out-of-range values are clamped like NewTimeOfDay.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	s := strings.TrimSpace(raw)
	var hs, ms string
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hs, ms = s[:i], s[i+1:]
	} else if len(s) == 4 {
		hs, ms = s[:2], s[2:]
	} else {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || hs == "" {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || len(ms) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	return NewTimeOfDay(h, m), nil
}

// ParseTimes parses a comma separated list of times, sorted and deduplicated.
func ParseTimes(raw string) ([]TimeOfDay, error) {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]TimeOfDay, 0, len(parts))
	for _, p := range parts {
		tod, err := ParseTimeOfDay(p)
		if err != nil {
			return nil, err
		}
		out = append(out, tod)
	}
	return SortTimes(out), nil
}

// SortTimes returns a sorted copy of times without duplicates.
func SortTimes(times []TimeOfDay) []TimeOfDay {
	out := make([]TimeOfDay, len(times))
	copy(out, times)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	uniq := out[:0]
	for _, t := range out {
		if len(uniq) > 0 && uniq[len(uniq)-1] == t {
			continue
		}
		uniq = append(uniq, t)
	}
	return uniq
}

// EarliestTime reports the smallest time in the list.
func EarliestTime(times []TimeOfDay) (TimeOfDay, bool) {
	if len(times) == 0 {
		return TimeOfDay{}, false
	}
	min := times[0]
	for _, t := range times[1:] {
		if t.Before(min) {
			min = t
		}
	}
	return min, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
