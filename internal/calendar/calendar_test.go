package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/sandeepkv93/alarmd/internal/model"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestNowUsesInjectedClock(t *testing.T) {
	loc := newYork(t)
	fixed := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	cal := New(loc, clocktesting.NewFakeClock(fixed))

	now := cal.Now()
	assert.True(t, now.Equal(fixed))
	assert.Equal(t, loc, now.Location())
	assert.Equal(t, 10, now.Hour())
}

func TestNewDefaults(t *testing.T) {
	cal := New(nil, nil)
	assert.Equal(t, time.UTC, cal.Location())
	assert.WithinDuration(t, time.Now(), cal.Now(), time.Second)
}

func TestLoad(t *testing.T) {
	cal, err := Load("Europe/Berlin", nil)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cal.Location().String())

	_, err = Load("Mars/Olympus_Mons", nil)
	require.Error(t, err)

	local, err := Load("Local", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Local, local.Location())
}

func TestWeekdayIsISO(t *testing.T) {
	cal := New(time.UTC, nil)
	assert.Equal(t, model.Monday, cal.Weekday(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, model.Sunday, cal.Weekday(time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)))
}

func TestWeekdayFollowsLocation(t *testing.T) {
	cal := New(newYork(t), nil)
	// Monday 02:00 UTC is still Sunday evening in New York.
	assert.Equal(t, model.Sunday, cal.Weekday(time.Date(2024, 1, 8, 2, 0, 0, 0, time.UTC)))
}

func TestDaysInMonth(t *testing.T) {
	cal := New(time.UTC, nil)
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cal.DaysInMonth(tc.year, tc.month), "%d-%02d", tc.year, tc.month)
	}
	assert.True(t, cal.IsLeapYear(2024))
	assert.False(t, cal.IsLeapYear(2025))
}

func TestAddMonthsClampsDown(t *testing.T) {
	cal := New(time.UTC, nil)
	jan31 := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC), cal.AddMonths(jan31, 1))
	assert.Equal(t, time.Date(2023, 2, 28, 10, 0, 0, 0, time.UTC), cal.AddMonths(time.Date(2023, 1, 31, 10, 0, 0, 0, time.UTC), 1))
	assert.Equal(t, time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC), cal.AddMonths(jan31, 2))
	assert.Equal(t, time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC), cal.AddMonths(jan31, 12))
	assert.Equal(t, time.Date(2023, 11, 30, 10, 0, 0, 0, time.UTC), cal.AddMonths(jan31, -2))
}

func TestAddYearsLeapDay(t *testing.T) {
	cal := New(time.UTC, nil)
	leap := time.Date(2024, 2, 29, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 28, 7, 0, 0, 0, time.UTC), cal.AddYears(leap, 1))
	assert.Equal(t, time.Date(2028, 2, 29, 7, 0, 0, 0, time.UTC), cal.AddYears(leap, 4))
}

func TestAddDaysKeepsWallClockAcrossDST(t *testing.T) {
	loc := newYork(t)
	cal := New(loc, nil)

	// 2024-03-10 is 23 hours long in New York, 2024-11-03 is 25.
	spring := time.Date(2024, 3, 9, 9, 0, 0, 0, loc)
	next := cal.AddDays(spring, 1)
	assert.Equal(t, time.Date(2024, 3, 10, 9, 0, 0, 0, loc), next)
	assert.Equal(t, 23*time.Hour, next.Sub(spring))

	fall := time.Date(2024, 11, 2, 9, 0, 0, 0, loc)
	next = cal.AddDays(fall, 1)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 25*time.Hour, next.Sub(fall))
}

func TestStartOfWeekIsMonday(t *testing.T) {
	cal := New(time.UTC, nil)
	cases := map[time.Time]time.Time{
		time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC):  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC):  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 7, 23, 0, 0, 0, time.UTC): time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC):  time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		assert.Equal(t, want, cal.StartOfWeek(in), in.String())
	}
}

func TestDateRejectsOutOfRange(t *testing.T) {
	cal := New(time.UTC, nil)
	nine := model.NewTimeOfDay(9, 0)

	got, err := cal.Date(2024, time.February, 29, nine)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), got)

	for _, tc := range []struct {
		y int
		m time.Month
		d int
	}{
		{2023, time.February, 29},
		{2024, time.April, 31},
		{2024, 13, 1},
		{2024, time.January, 0},
		{10000, time.January, 1},
	} {
		_, err := cal.Date(tc.y, tc.m, tc.d, nine)
		require.ErrorIs(t, err, ErrInvalidDate)
	}
}

func TestSetTime(t *testing.T) {
	loc := newYork(t)
	cal := New(loc, nil)
	got, err := cal.SetTime(time.Date(2024, 7, 4, 23, 59, 0, 0, loc), model.NewTimeOfDay(6, 30))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 4, 6, 30, 0, 0, loc), got)
}

func TestDaysBetween(t *testing.T) {
	loc := newYork(t)
	cal := New(loc, nil)

	a := time.Date(2024, 3, 9, 23, 0, 0, 0, loc)
	b := time.Date(2024, 3, 11, 0, 30, 0, 0, loc)
	assert.Equal(t, 2, cal.DaysBetween(a, b))
	assert.Equal(t, -2, cal.DaysBetween(b, a))
	assert.Equal(t, 0, cal.DaysBetween(a, a.Add(30*time.Minute)))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 69, New(time.UTC, nil).DaysBetween(start, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)))
}
