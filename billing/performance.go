/*
performance.go - Performance-fee eligibility decision

PURPOSE:
  Users on deferred plans owe a performance fee only once a condition is
  crossed: upfront-plan users after their 3-year window elapses with realized
  savings, installment users on their first realized tax reduction. This file
  decides; it never creates the invoice. The caller invokes the invoice
  collaborator only on should=true, and the store's per-user-per-tax-year
  unique constraint makes creation idempotent even under overlapping runs.

FAILURE SEMANTICS:
  A savings-lookup failure surfaces as a SavingsLookupError, distinguishable
  from a normal should=false, so the cron wrapper logs it as an error entry
  rather than a skip.
*/
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// upfrontWindowYears is how long the upfront plan's flat fee covers before a
// performance fee may be charged.
const upfrontWindowYears = 3

// performanceFeeRate is the share of first-year realized savings charged as
// the performance fee.
var performanceFeeRate = decimal.NewFromFloat(0.30)

// =============================================================================
// COLLABORATORS
// =============================================================================

// SavingsBreakdown describes realized tax savings for a user, computed by the
// savings collaborator. This package treats it as opaque input.
type SavingsBreakdown struct {
	TaxYear          int
	AssessedBefore   decimal.Decimal
	AssessedAfter    decimal.Decimal
	FirstYearSavings decimal.Decimal
	ProjectedTotal   decimal.Decimal // across the triennial cycle
}

// SavingsResult pairs a breakdown with the recommended payment option.
type SavingsResult struct {
	Breakdown     SavingsBreakdown
	PaymentOption PaymentOption
}

// SavingsSource supplies realized savings on demand. A nil result means no
// qualifying reduction has been recorded yet; errors mean the lookup itself
// failed.
type SavingsSource interface {
	SavingsForUser(ctx context.Context, userID string) (*SavingsResult, error)
}

// =============================================================================
// DECISION
// =============================================================================

// BillingProfile is the per-user state the decision reads. Callers load it
// from the store and pass it in; the decision itself is pure.
type BillingProfile struct {
	UserID                 string
	Plan                   Plan
	PlanStartedAt          time.Time
	PerformanceFeeInvoiced bool
}

// Decision is the verdict. Computed fresh per invocation and never persisted
// directly; the resulting invoice row is.
type Decision struct {
	Should        bool
	Reason        string
	Savings       *SavingsBreakdown
	PaymentOption PaymentOption
}

// ShouldCreatePerformanceInvoice decides whether a deferred performance-fee
// invoice should be created for the user now. Idempotent: the same profile,
// savings state, and clock yield the same verdict.
func ShouldCreatePerformanceInvoice(ctx context.Context, profile BillingProfile, src SavingsSource, now time.Time) (Decision, error) {
	if profile.PerformanceFeeInvoiced {
		return Decision{Should: false, Reason: "performance fee already invoiced"}, nil
	}

	res, err := src.SavingsForUser(ctx, profile.UserID)
	if err != nil {
		return Decision{}, &SavingsLookupError{UserID: profile.UserID, Err: err}
	}
	if res == nil || !res.Breakdown.FirstYearSavings.IsPositive() {
		return Decision{Should: false, Reason: "no qualifying tax reduction yet"}, nil
	}

	switch profile.Plan {
	case PlanUpfront3Yr:
		windowEnd := profile.PlanStartedAt.AddDate(upfrontWindowYears, 0, 0)
		if now.Before(windowEnd) {
			return Decision{Should: false, Reason: "inside 3-year upfront window"}, nil
		}
		return eligible(res), nil

	case PlanInstallment:
		// First realized reduction triggers the fee for installment users.
		return eligible(res), nil

	default:
		return Decision{Should: false, Reason: "plan is not performance-fee billed"}, nil
	}
}

func eligible(res *SavingsResult) Decision {
	breakdown := res.Breakdown
	return Decision{
		Should:        true,
		Savings:       &breakdown,
		PaymentOption: res.PaymentOption,
	}
}

// PerformanceFeeAmount computes the invoice amount for a breakdown: a fixed
// share of first-year realized savings, rounded to cents.
func PerformanceFeeAmount(b SavingsBreakdown) decimal.Decimal {
	return b.FirstYearSavings.Mul(performanceFeeRate).Round(2)
}
