package calendar

import (
	"sort"
	"time"
)

// =============================================================================
// ACTIVE-WINDOW CALCULATOR
// =============================================================================
// Monitoring starts shortly before notices go out (users want lead time to
// gather comparables) and keeps running well past the filing deadline (Board
// of Review decisions and result scraping lag the Assessor's close).

const (
	// noticeLeadDays is how long before the notice date a township becomes
	// worth watching.
	noticeLeadDays = 14

	// lastFileTrailDays is how long after the last-file date a township stays
	// in the monitoring set.
	lastFileTrailDays = 45
)

// InReassessmentSeason reports whether scheduled monitoring work should run at
// all. The Assessor's cycle is dormant in the fall: January through August is
// on, September through December is off, for any year.
func InReassessmentSeason(d Date) bool {
	m := d.Month()
	return m >= time.January && m <= time.August
}

// ActiveTownships returns the set of township keys inside their monitoring
// window on the given date: noticeDate-14d through lastFileDate+45d,
// inclusive on both ends, compared at day resolution.
//
// Every key in the result exists in the deadline table; the window is always
// derived from the table, never stored.
func ActiveTownships(d Date) map[string]struct{} {
	return activeTownships(deadlines, d)
}

// activeTownships is the table-parameterized core, split out for testing.
func activeTownships(table map[string]Deadline, d Date) map[string]struct{} {
	active := make(map[string]struct{})
	for key, dl := range table {
		// Defensive: curated data should always carry both dates.
		if dl.NoticeDate.IsZero() || dl.LastFileDate.IsZero() {
			continue
		}
		start := dl.NoticeDate.AddDays(-noticeLeadDays)
		end := dl.LastFileDate.AddDays(lastFileTrailDays)
		if d.AfterOrEqual(start) && d.BeforeOrEqual(end) {
			active[key] = struct{}{}
		}
	}
	return active
}

// UpcomingDeadlines returns deadlines whose last-file date falls within the
// next `within` days of d (inclusive), sorted by last-file date. Feeds the
// reminder job: "Evanston closes in 10 days, you have an unfiled draft."
func UpcomingDeadlines(d Date, within int) []Deadline {
	cutoff := d.AddDays(within)
	var out []Deadline
	for key, dl := range deadlines {
		if dl.LastFileDate.IsZero() {
			continue
		}
		if dl.LastFileDate.AfterOrEqual(d) && dl.LastFileDate.BeforeOrEqual(cutoff) {
			dl.Township = key
			out = append(out, dl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastFileDate.Equal(out[j].LastFileDate) {
			return out[i].Township < out[j].Township
		}
		return out[i].LastFileDate.Before(out[j].LastFileDate)
	})
	return out
}
