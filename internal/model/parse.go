package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSchedule turns a compact schedule expression into a Schedule. Dates
// are interpreted in now's location; now also anchors "every N days" when no
// start date is given.
//
//	daily | weekdays | weekends
//	weekly mon,wed [every N]
//	monthly 1,15,31 [every N]
//	monthly first|second|third|fourth|fifth|last <weekday> [every N]
//	annual|yearly MM-DD [every N]
//	every N days [from YYYY-MM-DD]
//	once YYYY-MM-DD
func ParseSchedule(expr string, now time.Time) (Schedule, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(expr)))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty schedule expression", ErrInvalidSchedule)
	}
	head, args := fields[0], fields[1:]

	var s Schedule
	var err error
	switch head {
	case "daily":
		s = NewWeekly([]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}, 1)
	case "weekdays":
		s = NewWeekly([]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}, 1)
	case "weekends":
		s = NewWeekly([]Weekday{Saturday, Sunday}, 1)
	case "weekly":
		s, err = parseWeekly(args)
	case "monthly":
		s, err = parseMonthly(args)
	case "annual", "yearly":
		s, err = parseAnnual(args)
	case "every":
		s, err = parseEveryDays(args, now)
	case "once":
		s, err = parseOnce(args, now)
	default:
		return nil, fmt.Errorf("%w: unknown schedule %q", ErrInvalidSchedule, head)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseWeekly(args []string) (Schedule, error) {
	rest, interval, err := splitEvery(args)
	if err != nil {
		return nil, err
	}
	if len(rest) != 1 {
		return nil, fmt.Errorf("%w: weekly expects a day list, e.g. weekly mon,thu", ErrInvalidSchedule)
	}
	var days []Weekday
	for _, part := range strings.Split(rest[0], ",") {
		d, err := ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return NewWeekly(days, interval), nil
}

func parseMonthly(args []string) (Schedule, error) {
	rest, interval, err := splitEvery(args)
	if err != nil {
		return nil, err
	}
	switch len(rest) {
	case 1:
		var days []int
		for _, part := range strings.Split(rest[0], ",") {
			d, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || d < 1 || d > 31 {
				return nil, fmt.Errorf("%w: day of month %q", ErrInvalidSchedule, part)
			}
			days = append(days, d)
		}
		return NewMonthlyByDate(days, interval), nil
	case 2:
		week, err := parseWeekOfMonth(rest[0])
		if err != nil {
			return nil, err
		}
		wd, err := ParseWeekday(rest[1])
		if err != nil {
			return nil, err
		}
		return NewMonthlyRelative(week, wd, interval), nil
	default:
		return nil, fmt.Errorf("%w: monthly expects days (1,15) or a relative day (last fri)", ErrInvalidSchedule)
	}
}

func parseAnnual(args []string) (Schedule, error) {
	rest, interval, err := splitEvery(args)
	if err != nil {
		return nil, err
	}
	if len(rest) != 1 {
		return nil, fmt.Errorf("%w: annual expects MM-DD", ErrInvalidSchedule)
	}
	parts := strings.Split(rest[0], "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: annual date %q", ErrInvalidSchedule, rest[0])
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return nil, fmt.Errorf("%w: annual date %q", ErrInvalidSchedule, rest[0])
	}
	return NewAnnual(time.Month(month), day, interval), nil
}

func parseEveryDays(args []string, now time.Time) (Schedule, error) {
	if len(args) < 2 || (args[1] != "days" && args[1] != "day") {
		return nil, fmt.Errorf("%w: expected every N days", ErrInvalidSchedule)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return nil, fmt.Errorf("%w: interval %q", ErrInvalidSchedule, args[0])
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case len(args) == 2:
	case len(args) == 4 && args[2] == "from":
		start, err = time.ParseInLocation("2006-01-02", args[3], now.Location())
		if err != nil {
			return nil, fmt.Errorf("%w: start date %q", ErrInvalidSchedule, args[3])
		}
	default:
		return nil, fmt.Errorf("%w: expected every N days [from YYYY-MM-DD]", ErrInvalidSchedule)
	}
	return NewCustomIntervalDays(n, start), nil
}

func parseOnce(args []string, now time.Time) (Schedule, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: once expects YYYY-MM-DD", ErrInvalidSchedule)
	}
	at, err := time.ParseInLocation("2006-01-02", args[0], now.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidSchedule, args[0])
	}
	return NewOneTime(at), nil
}

// splitEvery strips a trailing "every N" and returns the interval (1 if
// absent).
func splitEvery(args []string) ([]string, int, error) {
	n := len(args)
	if n >= 2 && args[n-2] == "every" {
		v, err := strconv.Atoi(args[n-1])
		if err != nil || v < 1 {
			return nil, 0, fmt.Errorf("%w: interval %q", ErrInvalidSchedule, args[n-1])
		}
		return args[:n-2], v, nil
	}
	return args, 1, nil
}

func parseWeekOfMonth(raw string) (int, error) {
	switch raw {
	case "first", "1st", "1":
		return 1, nil
	case "second", "2nd", "2":
		return 2, nil
	case "third", "3rd", "3":
		return 3, nil
	case "fourth", "4th", "4":
		return 4, nil
	case "fifth", "5th", "5":
		return 5, nil
	case "last", "-1":
		return LastWeek, nil
	default:
		return 0, fmt.Errorf("%w: week of month %q", ErrInvalidSchedule, raw)
	}
}
