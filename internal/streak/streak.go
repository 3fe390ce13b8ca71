// Package streak counts consecutive completions in an alarm's history.
// Skipped records are transparent; snoozes and misses break a streak.
package streak

import (
	"sort"

	"github.com/sandeepkv93/alarmd/internal/model"
)

// Current counts completions walking back from the most recent record until
// a snooze or a miss.
func Current(history []model.CompletionRecord) int {
	records := sorted(history)
	count := 0
	for i := len(records) - 1; i >= 0; i-- {
		switch records[i].Action {
		case model.ActionCompleted:
			count++
		case model.ActionSkipped:
		default:
			return count
		}
	}
	return count
}

// Longest returns the longest run of completions ever reached.
func Longest(history []model.CompletionRecord) int {
	best, run := 0, 0
	for _, r := range sorted(history) {
		switch r.Action {
		case model.ActionCompleted:
			run++
			best = max(best, run)
		case model.ActionSkipped:
		default:
			run = 0
		}
	}
	return best
}

type Summary struct {
	Current   int
	Longest   int
	Completed int
	Snoozed   int
	Skipped   int
	Missed    int
	// CompletionRate is Completed / (Completed + Missed), or 0 when neither
	// has happened.
	CompletionRate float64
}

func Summarize(history []model.CompletionRecord) Summary {
	s := Summary{Current: Current(history), Longest: Longest(history)}
	for _, r := range history {
		switch r.Action {
		case model.ActionCompleted:
			s.Completed++
		case model.ActionSnoozed:
			s.Snoozed++
		case model.ActionSkipped:
			s.Skipped++
		case model.ActionMissed:
			s.Missed++
		}
	}
	if total := s.Completed + s.Missed; total > 0 {
		s.CompletionRate = float64(s.Completed) / float64(total)
	}
	return s
}

// sorted returns an ascending copy; records with equal timestamps keep their
// input order.
func sorted(history []model.CompletionRecord) []model.CompletionRecord {
	out := make([]model.CompletionRecord, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}
