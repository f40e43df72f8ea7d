/*
Package billing implements the deferred-fee billing decisions:
performance-fee eligibility and the collections dunning sequence.

PURPOSE:
  OverTaxed bills two ways. Subscription plans invoice up front; the
  performance plan defers its fee until the county actually grants a tax
  reduction, then charges a percentage of realized savings. Both flows share
  the invoice model here, and overdue invoices of either kind feed the
  dunning sequencer.

DESIGN PRINCIPLES:
  1. Decisions are pure: eligibility and tier selection take explicit inputs
     (profile, clock, counters) and return verdicts. All I/O - savings
     lookup, invoice insert, email dispatch - happens behind collaborator
     interfaces invoked by the caller.
  2. Money is decimal.Decimal, never float64.
  3. Negative outcomes ("not eligible", "not overdue enough") are values with
     a reason string; errors are reserved for collaborator failures.

SEE ALSO:
  - dunning.go: Notice tiers and the sequencer
  - performance.go: Performance-fee eligibility
  - savings: the savings-computation collaborator
*/
package billing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PLANS & PAYMENT OPTIONS
// =============================================================================

// Plan is a user's billing plan.
type Plan string

const (
	// PlanUpfront3Yr: flat fee paid up front covering a 3-year reassessment
	// cycle; a performance fee may apply once the window elapses.
	PlanUpfront3Yr Plan = "UPFRONT_3YR"

	// PlanInstallment: no upfront fee; the performance fee is invoiced on the
	// first realized tax reduction.
	PlanInstallment Plan = "INSTALLMENT"
)

// PaymentOption is the recommended way to settle a performance-fee invoice.
type PaymentOption string

const (
	PaymentOptionFull         PaymentOption = "PAY_IN_FULL"
	PaymentOptionInstallments PaymentOption = "MONTHLY_INSTALLMENTS"
)

// =============================================================================
// INVOICE
// =============================================================================

type InvoiceStatus string

const (
	InvoicePending       InvoiceStatus = "PENDING"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceVoid          InvoiceStatus = "VOID"
	InvoiceUncollectible InvoiceStatus = "UNCOLLECTIBLE"
)

type InvoiceKind string

const (
	KindSubscription   InvoiceKind = "SUBSCRIPTION"
	KindPerformanceFee InvoiceKind = "PERFORMANCE_FEE"
)

// Invoice is a billing document. The dunning sequencer is the sole writer of
// CollectionLettersSent increments; the counter only ever moves up by one per
// successful send.
type Invoice struct {
	ID      string
	UserID  string
	Kind    InvoiceKind
	TaxYear int
	Amount  decimal.Decimal
	Status  InvoiceStatus

	IssuedAt time.Time
	DueDate  time.Time

	CollectionLettersSent      int
	LastCollectionLetterSentAt *time.Time

	CreatedAt time.Time
}

// DaysOverdue returns the whole number of days the invoice is past due at
// now, floor-rounded. Negative when the due date is still ahead.
func (i Invoice) DaysOverdue(now time.Time) int {
	return int(math.Floor(now.Sub(i.DueDate).Hours() / 24))
}

// Overdue reports whether the invoice is unpaid and past its due date.
func (i Invoice) Overdue(now time.Time) bool {
	return i.Status == InvoicePending && now.After(i.DueDate)
}

// CollectionNotice is one dispatched dunning notice. Rows are append-only;
// they are the audit trail behind the counter on the invoice.
type CollectionNotice struct {
	ID        string
	InvoiceID string
	Tier      NoticeTier
	SentAt    time.Time
	CreatedAt time.Time
}
