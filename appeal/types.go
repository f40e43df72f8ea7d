/*
Package appeal holds the appeal domain model and the status gate.

PURPOSE:
  An appeal moves from DRAFT through the county's filing pipeline to a
  terminal decision. Two small predicates answer the questions the rest of
  the system actually asks:
  - Submitted: has this appeal been handed to the county? (drives display
    and monitoring)
  - PropertyChangeable: may the owning property reference still be swapped?
    (drives mutation guards in the API layer)

GATE DESIGN:
  The two predicates are independent set-membership checks, NOT complements
  of each other. A status outside both sets would be neither submitted nor
  changeable, and callers must not derive one predicate by negating the
  other. Enforcement happens at call sites (handlers reject the mutation
  before touching the store); the gate itself is pure.

SEE ALSO:
  - api/handlers.go: UpdateAppealProperty uses PropertyChangeable
  - store/sqlite: persistence of Appeal and Comparable rows
*/
package appeal

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusPendingFiling     Status = "PENDING_FILING"
	StatusFiled             Status = "FILED"
	StatusUnderReview       Status = "UNDER_REVIEW"
	StatusHearingScheduled  Status = "HEARING_SCHEDULED"
	StatusDecisionPending   Status = "DECISION_PENDING"
	StatusApproved          Status = "APPROVED"
	StatusPartiallyApproved Status = "PARTIALLY_APPROVED"
	StatusDenied            Status = "DENIED"
	StatusWithdrawn         Status = "WITHDRAWN"
)

// submittedStatuses covers every state at or past the county hand-off,
// including terminal decisions.
var submittedStatuses = map[Status]struct{}{
	StatusFiled:             {},
	StatusUnderReview:       {},
	StatusHearingScheduled:  {},
	StatusDecisionPending:   {},
	StatusApproved:          {},
	StatusPartiallyApproved: {},
	StatusDenied:            {},
	StatusWithdrawn:         {},
}

// changeableStatuses covers the pre-filing states where the property
// reference may still be edited.
var changeableStatuses = map[Status]struct{}{
	StatusDraft:         {},
	StatusPendingFiling: {},
}

// Submitted reports whether the appeal has been handed to the county.
func Submitted(s Status) bool {
	_, ok := submittedStatuses[s]
	return ok
}

// PropertyChangeable reports whether the owning property reference may still
// be changed. Independent of Submitted; do not derive one from the other.
func PropertyChangeable(s Status) bool {
	_, ok := changeableStatuses[s]
	return ok
}

// Known reports whether s is one of the enumerated statuses. Used for input
// validation only; the gates above stay pure membership checks.
func Known(s Status) bool {
	return Submitted(s) || PropertyChangeable(s)
}

// =============================================================================
// ENTITIES
// =============================================================================

// Appeal is a property-tax appeal for one property and tax year.
type Appeal struct {
	ID         string
	UserID     string
	PropertyID string
	PIN        string // 14-digit Cook County parcel identifier
	Township   string
	TaxYear    int
	Status     Status
	FiledAt    *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Comparable is a comparable property used as appeal evidence.
type Comparable struct {
	ID            string
	AppealID      string
	PIN           string
	Address       string
	AssessedValue decimal.Decimal
	Latitude      float64
	Longitude     float64
	CreatedAt     time.Time
}
