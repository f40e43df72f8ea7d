/*
Package calendar tracks Cook County assessment deadlines per township.

PURPOSE:
  The County Assessor opens appeal filing per township: a reassessment notice
  is mailed on the notice date and appeals are accepted until the last-file
  date. This package holds the curated deadline table and answers two
  questions for the rest of the system:
  - What are the deadlines for a given township name? (calendar.go)
  - Which townships should monitoring jobs look at today? (window.go)

LOOKUP SEMANTICS:
  Township names arrive from county parcel data in inconsistent shapes
  ("Evanston", "evanston township", " EVANSTON "). DeadlineFor normalizes
  before lookup. An unknown township is NOT an error: plenty of PINs fall
  outside the curated set, so absence is reported with ok=false.

DATA:
  The table is a static reference dataset, immutable at runtime. It is
  refreshed by a manual data update when the Assessor publishes the next
  cycle's calendar.

SEE ALSO:
  - window.go: Active-window and season computation
  - api/cron.go: Deadline reminder job built on this table
*/
package calendar

import (
	"sort"
	"strings"
	"time"
)

// CalendarURL points at the Assessor's official appeal calendar. Returned with
// every deadline so notices can link users to the source of truth.
const CalendarURL = "https://www.cookcountyassessor.com/assessment-calendar-and-deadlines"

// Deadline holds the appeal dates for one township.
type Deadline struct {
	Township     string // normalized key, e.g. "evanston"
	NoticeDate   Date   // reassessment notices mailed
	LastFileDate Date   // last day the Assessor accepts an appeal
	CalendarURL  string
}

// =============================================================================
// DEADLINE TABLE
// =============================================================================

// deadlines is keyed by normalized township name.
var deadlines = map[string]Deadline{
	"barrington":   entry(2025, time.February, 18, 2025, time.April, 1),
	"berwyn":       entry(2025, time.July, 2, 2025, time.August, 13),
	"cicero":       entry(2025, time.June, 11, 2025, time.July, 23),
	"elk grove":    entry(2025, time.March, 5, 2025, time.April, 16),
	"evanston":     entry(2025, time.April, 9, 2025, time.May, 21),
	"hanover":      entry(2025, time.February, 4, 2025, time.March, 18),
	"lake view":    entry(2025, time.July, 16, 2025, time.August, 27),
	"lemont":       entry(2025, time.May, 28, 2025, time.July, 9),
	"leyden":       entry(2025, time.April, 23, 2025, time.June, 4),
	"maine":        entry(2025, time.March, 19, 2025, time.April, 30),
	"new trier":    entry(2025, time.April, 16, 2025, time.May, 28),
	"niles":        entry(2025, time.May, 7, 2025, time.June, 18),
	"norwood park": entry(2025, time.June, 4, 2025, time.July, 16),
	"oak park":     entry(2025, time.June, 25, 2025, time.August, 6),
	"palatine":     entry(2025, time.February, 25, 2025, time.April, 8),
	"river forest": entry(2025, time.July, 9, 2025, time.August, 20),
	"schaumburg":   entry(2025, time.March, 12, 2025, time.April, 23),
	"wheeling":     entry(2025, time.May, 14, 2025, time.June, 25),
}

func entry(ny int, nm time.Month, nd, ly int, lm time.Month, ld int) Deadline {
	return Deadline{
		NoticeDate:   NewDate(ny, nm, nd),
		LastFileDate: NewDate(ly, lm, ld),
		CalendarURL:  CalendarURL,
	}
}

// =============================================================================
// NORMALIZATION & LOOKUP
// =============================================================================

// Normalize reduces a township name to its table key: trimmed, lowercased,
// with one trailing "township" token stripped.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if strings.HasSuffix(n, "township") {
		n = strings.TrimSpace(strings.TrimSuffix(n, "township"))
	}
	return n
}

// DeadlineFor looks up the deadline for a township name in any input shape.
// ok=false for empty input or townships outside the curated set.
func DeadlineFor(name string) (Deadline, bool) {
	key := Normalize(name)
	if key == "" {
		return Deadline{}, false
	}
	d, ok := deadlines[key]
	if !ok {
		return Deadline{}, false
	}
	d.Township = key
	return d, true
}

// Townships returns all known township keys, sorted.
func Townships() []string {
	keys := make([]string, 0, len(deadlines))
	for k := range deadlines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
