package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestScheduleCodecCarriesDiscriminator(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		s        Schedule
		wantType string
	}{
		{NewWeekly([]Weekday{Monday, Thursday}, 2), `"type":"weekly"`},
		{NewMonthlyByDate([]int{1, 31}, 1), `"type":"monthly_by_date"`},
		{NewMonthlyRelative(LastWeek, Friday, 1), `"type":"monthly_relative"`},
		{NewAnnual(time.February, 29, 1), `"type":"annual"`},
		{NewCustomIntervalDays(7, start), `"type":"custom_interval_days"`},
		{NewOneTime(start), `"type":"one_time"`},
	}
	for _, tc := range cases {
		raw, err := MarshalSchedule(tc.s)
		if err != nil {
			t.Fatalf("marshal %s: %v", tc.s.Kind(), err)
		}
		if !strings.Contains(string(raw), tc.wantType) {
			t.Fatalf("missing discriminator in %s", raw)
		}
		back, err := UnmarshalSchedule(raw)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if back.Kind() != tc.s.Kind() || back.Describe() != tc.s.Describe() {
			t.Fatalf("decoded %s as %s (%s)", tc.s.Describe(), back.Kind(), back.Describe())
		}
	}
}

func TestUnmarshalScheduleUnknownType(t *testing.T) {
	_, err := UnmarshalSchedule([]byte(`{"type":"lunar","phase":"full"}`))
	if !errors.Is(err, ErrUnknownScheduleType) {
		t.Fatalf("expected ErrUnknownScheduleType, got %v", err)
	}
}

func TestUnmarshalScheduleRejectsInvalidPayload(t *testing.T) {
	_, err := UnmarshalSchedule([]byte(`{"type":"weekly","days":[],"interval":1}`))
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
	if _, err := UnmarshalSchedule([]byte(`{"type":"one_time"}`)); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule for missing date, got %v", err)
	}
}
