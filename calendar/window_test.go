package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Evanston 2025: notice 2025-04-09, last-file 2025-05-21.
// Window: 2025-03-26 through 2025-07-05, inclusive.

func TestActiveTownships_WindowBoundaries(t *testing.T) {
	cases := []struct {
		date   Date
		active bool
		label  string
	}{
		{NewDate(2025, time.March, 25), false, "day before window opens"},
		{NewDate(2025, time.March, 26), true, "14 days before notice"},
		{NewDate(2025, time.April, 9), true, "notice date"},
		{NewDate(2025, time.May, 21), true, "last-file date"},
		{NewDate(2025, time.July, 5), true, "45 days after last-file"},
		{NewDate(2025, time.July, 6), false, "day after window closes"},
	}

	for _, tc := range cases {
		active := ActiveTownships(tc.date)
		_, ok := active["evanston"]
		assert.Equal(t, tc.active, ok, "%s (%s)", tc.label, tc.date)
	}
}

func TestActiveTownships_KeysExistInTable(t *testing.T) {
	// Invariant: the window is derived from the table, so every active key
	// must resolve through DeadlineFor.
	active := ActiveTownships(NewDate(2025, time.April, 15))
	assert.NotEmpty(t, active)
	for key := range active {
		_, ok := DeadlineFor(key)
		assert.True(t, ok, "active key %q should exist in the deadline table", key)
	}
}

func TestActiveTownships_SkipsEntriesMissingDates(t *testing.T) {
	// GIVEN: a table with entries missing one or both dates
	// WHEN: computing the active set on a date inside the valid entry's window
	// THEN: only the complete entry appears

	table := map[string]Deadline{
		"complete":   {NoticeDate: NewDate(2025, time.April, 9), LastFileDate: NewDate(2025, time.May, 21)},
		"no-notice":  {LastFileDate: NewDate(2025, time.May, 21)},
		"no-lastfile": {NoticeDate: NewDate(2025, time.April, 9)},
		"empty":      {},
	}

	active := activeTownships(table, NewDate(2025, time.April, 15))
	assert.Equal(t, map[string]struct{}{"complete": {}}, active)
}

func TestInReassessmentSeason(t *testing.T) {
	for _, year := range []int{2024, 2025, 2031} {
		for m := time.January; m <= time.December; m++ {
			want := m <= time.August
			got := InReassessmentSeason(NewDate(year, m, 15))
			assert.Equal(t, want, got, "%d-%02d", year, m)
		}
	}
}

func TestUpcomingDeadlines_SortedAndBounded(t *testing.T) {
	// Evanston last-files 2025-05-21, New Trier 2025-05-28.
	upcoming := UpcomingDeadlines(NewDate(2025, time.May, 15), 14)

	var names []string
	for _, d := range upcoming {
		names = append(names, d.Township)
	}
	assert.Equal(t, []string{"evanston", "new trier"}, names)

	// Inclusive at the cutoff edge.
	upcoming = UpcomingDeadlines(NewDate(2025, time.May, 21), 0)
	assert.Len(t, upcoming, 1)
	assert.Equal(t, "evanston", upcoming[0].Township)
}

func TestDateArithmetic_DayResolution(t *testing.T) {
	// Time-of-day is ignored in comparisons.
	morning := DateOf(time.Date(2025, time.May, 21, 6, 30, 0, 0, time.UTC))
	night := DateOf(time.Date(2025, time.May, 21, 23, 59, 0, 0, time.UTC))
	assert.True(t, morning.Equal(night))

	assert.Equal(t, 14, DaysBetween(NewDate(2025, time.March, 26), NewDate(2025, time.April, 9)))
	assert.Equal(t, -14, DaysBetween(NewDate(2025, time.April, 9), NewDate(2025, time.March, 26)))
}
