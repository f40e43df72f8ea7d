package appeal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusGates(t *testing.T) {
	cases := []struct {
		status     Status
		submitted  bool
		changeable bool
	}{
		{StatusDraft, false, true},
		{StatusPendingFiling, false, true},
		{StatusFiled, true, false},
		{StatusUnderReview, true, false},
		{StatusHearingScheduled, true, false},
		{StatusDecisionPending, true, false},
		{StatusApproved, true, false},
		{StatusPartiallyApproved, true, false},
		{StatusDenied, true, false},
		{StatusWithdrawn, true, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.submitted, Submitted(tc.status), "Submitted(%s)", tc.status)
		assert.Equal(t, tc.changeable, PropertyChangeable(tc.status), "PropertyChangeable(%s)", tc.status)
	}
}

func TestStatusGates_NotComplements(t *testing.T) {
	// The two gates are independent membership checks. A status outside both
	// sets is neither submitted nor changeable - it does not default into
	// either bucket.
	bogus := Status("ARCHIVED")
	assert.False(t, Submitted(bogus))
	assert.False(t, PropertyChangeable(bogus))
	assert.False(t, Known(bogus))
}

func TestKnown_CoversAllEnumeratedStatuses(t *testing.T) {
	for _, s := range []Status{
		StatusDraft, StatusPendingFiling, StatusFiled, StatusUnderReview,
		StatusHearingScheduled, StatusDecisionPending, StatusApproved,
		StatusPartiallyApproved, StatusDenied, StatusWithdrawn,
	} {
		assert.True(t, Known(s), "Known(%s)", s)
	}
}
