package model

import (
	"fmt"
	"strings"
	"time"
)

// Weekday uses ISO 8601 numbering: Monday=1 through Sunday=7. All schedule
// fields and the persisted JSON use this numbering; time.Weekday (Sunday=0)
// is only seen through WeekdayOf and Weekday.Time.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func WeekdayOf(d time.Weekday) Weekday {
	if d == time.Sunday {
		return Sunday
	}
	return Weekday(d)
}

func (d Weekday) Time() time.Weekday {
	if d == Sunday {
		return time.Sunday
	}
	return time.Weekday(d)
}

func (d Weekday) IsValid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.IsValid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// ParseWeekday accepts English day names and their common abbreviations.
func ParseWeekday(raw string) (Weekday, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
	case strings.HasPrefix("monday", s) && len(s) >= 2:
		return Monday, nil
	case strings.HasPrefix("tuesday", s) && len(s) >= 2:
		return Tuesday, nil
	case strings.HasPrefix("wednesday", s) && len(s) >= 2:
		return Wednesday, nil
	case strings.HasPrefix("thursday", s) && len(s) >= 2:
		return Thursday, nil
	case strings.HasPrefix("friday", s) && len(s) >= 2:
		return Friday, nil
	case strings.HasPrefix("saturday", s) && len(s) >= 2:
		return Saturday, nil
	case strings.HasPrefix("sunday", s) && len(s) >= 2:
		return Sunday, nil
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidSchedule, raw)
}
