// Package validate checks a candidate alarm against the alarms that already
// exist. An empty title is the only hard error; everything else is an
// advisory warning that never blocks a save.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sandeepkv93/alarmd/internal/model"
)

const DefaultMaxTitleLength = 100

type ErrorKind string

const ErrorEmptyTitle ErrorKind = "empty_title"

type WarningKind string

const (
	WarningDuplicateAlarm   WarningKind = "duplicate_alarm"
	WarningSameTimeConflict WarningKind = "same_time_conflict"
	WarningMonthlyDay31     WarningKind = "monthly_day_31"
)

type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

type Warning struct {
	Kind       WarningKind
	Message    string
	AlarmID    string
	AlarmTitle string
	Time       *model.TimeOfDay
}

func (w Warning) String() string { return w.Message }

type Result struct {
	// Title is the sanitized title that should be persisted.
	Title    string
	Errors   []ValidationError
	Warnings []Warning
}

func (r Result) OK() bool { return len(r.Errors) == 0 }

// Err joins the hard errors, or returns nil when there are none.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Candidate is the alarm being created or edited.
type Candidate struct {
	Title    string
	Cycle    model.CycleType
	Schedule model.Schedule
	Times    []model.TimeOfDay
	Category model.Category
}

func (c Candidate) cycle() model.CycleType {
	if c.Cycle != "" {
		return c.Cycle
	}
	return model.CycleOf(c.Schedule)
}

type Validator struct {
	maxTitle int
}

func New(maxTitleLength int) *Validator {
	if maxTitleLength <= 0 {
		maxTitleLength = DefaultMaxTitleLength
	}
	return &Validator{maxTitle: maxTitleLength}
}

// Validate never mutates its inputs. excludingID names the alarm being
// edited so it is not compared against itself.
func (v *Validator) Validate(c Candidate, existing []model.Alarm, excludingID string) Result {
	title := SanitizeTitle(c.Title, v.maxTitle)
	res := Result{Title: title}
	if title == "" {
		res.Errors = append(res.Errors, ValidationError{Kind: ErrorEmptyTitle, Message: "title must not be empty"})
		return res
	}

	cycle := c.cycle()
	earliest, hasTimes := model.EarliestTime(c.Times)

	for _, other := range existing {
		if excludingID != "" && other.ID == excludingID {
			continue
		}
		otherCycle := other.CycleType()
		sameIdentity := strings.EqualFold(strings.TrimSpace(other.Title), title) && otherCycle == cycle

		if sameIdentity && hasTimes {
			if otherEarliest, ok := model.EarliestTime(other.Times); ok && otherEarliest == earliest {
				res.Warnings = append(res.Warnings, Warning{
					Kind:       WarningDuplicateAlarm,
					Message:    fmt.Sprintf("An alarm named %q already rings %s at %s", other.Title, otherCycle, earliest),
					AlarmID:    other.ID,
					AlarmTitle: other.Title,
					Time:       &earliest,
				})
			}
			continue
		}
		if sameIdentity {
			continue
		}

		shared, ok := firstSharedTime(c.Times, other.Times)
		if !ok || !Overlaps(c.Schedule, other.Schedule) {
			continue
		}
		res.Warnings = append(res.Warnings, Warning{
			Kind:       WarningSameTimeConflict,
			Message:    fmt.Sprintf("%q also rings at %s on the same days", other.Title, shared),
			AlarmID:    other.ID,
			AlarmTitle: other.Title,
			Time:       &shared,
		})
	}

	if cycle == model.CycleMonthly {
		if day, ok := lateMonthDay(c.Schedule); ok {
			res.Warnings = append(res.Warnings, Warning{
				Kind:    WarningMonthlyDay31,
				Message: fmt.Sprintf("Some months have no day %d; the alarm rings on the last day of those months instead", day),
			})
		}
	}
	return res
}

// Overlaps reports whether two schedules can land on the same day. Only
// same-variant pairs are compared; any other pairing reports false.
func Overlaps(a, b model.Schedule) bool {
	switch x := a.(type) {
	case model.Weekly:
		y, ok := b.(model.Weekly)
		return ok && intersects(x.Days, y.Days)
	case model.MonthlyByDate:
		y, ok := b.(model.MonthlyByDate)
		return ok && intersects(x.Days, y.Days)
	case model.Annual:
		y, ok := b.(model.Annual)
		return ok && x.Month == y.Month && x.Day == y.Day
	default:
		return false
	}
}

func intersects[T comparable](a, b []T) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}

// firstSharedTime returns the earliest time present in both lists.
func firstSharedTime(a, b []model.TimeOfDay) (model.TimeOfDay, bool) {
	var best model.TimeOfDay
	found := false
	for _, t := range a {
		if slices.Contains(b, t) && (!found || t.Before(best)) {
			best = t
			found = true
		}
	}
	return best, found
}

// lateMonthDay returns the largest selected day of month above 28.
func lateMonthDay(s model.Schedule) (int, bool) {
	m, ok := s.(model.MonthlyByDate)
	if !ok {
		return 0, false
	}
	late := 0
	for _, d := range m.Days {
		if d > 28 && d > late {
			late = d
		}
	}
	return late, late > 0
}

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// SanitizeTitle strips control characters other than newline and tab,
// collapses runs of three or more newlines to two, trims surrounding
// whitespace and truncates to maxLen runes.
func SanitizeTitle(raw string, maxLen int) string {
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "")
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	cleaned = excessNewlines.ReplaceAllString(cleaned, "\n\n")
	cleaned = strings.TrimSpace(cleaned)

	if maxLen > 0 && utf8.RuneCountInString(cleaned) > maxLen {
		cleaned = strings.TrimSpace(string([]rune(cleaned)[:maxLen]))
	}
	return cleaned
}
