/*
Package savings computes realized tax savings from recorded assessment
reductions.

PURPOSE:
  When the county grants an appeal, the property's assessed value drops. The
  dollar savings is the assessed-value reduction times the local tax rate,
  and a Cook County reduction holds for the remainder of the triennial
  reassessment cycle, so the projected total is three first-year amounts.

  The billing package consumes this through its SavingsSource interface and
  treats the breakdown as opaque; this package owns the arithmetic.

PAYMENT RECOMMENDATION:
  Small fees are friction to pay monthly, large ones are friction to pay at
  once: fees above the installment threshold recommend monthly installments,
  the rest pay in full.
*/
package savings

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/overtaxed/appeal-engine/billing"
)

// cycleYears is the Cook County triennial reassessment cycle: a granted
// reduction holds until the next reassessment.
const cycleYears = 3

// installmentThreshold is the fee size above which monthly installments are
// recommended.
var installmentThreshold = decimal.NewFromInt(250)

// Reduction is one recorded assessment reduction for a user's property.
type Reduction struct {
	ID             string
	UserID         string
	PIN            string
	TaxYear        int
	AssessedBefore decimal.Decimal
	AssessedAfter  decimal.Decimal
	TaxRate        decimal.Decimal // effective local rate, e.g. 0.0932
	RecordedAt     time.Time
}

// FirstYearSavings is the dollar savings the reduction realizes in one year.
func (r Reduction) FirstYearSavings() decimal.Decimal {
	return r.AssessedBefore.Sub(r.AssessedAfter).Mul(r.TaxRate).Round(2)
}

// Store supplies recorded reductions, oldest first.
type Store interface {
	ListReductionsByUser(ctx context.Context, userID string) ([]Reduction, error)
}

// Calculator implements billing.SavingsSource over recorded reductions.
type Calculator struct {
	Store Store
}

var _ billing.SavingsSource = (*Calculator)(nil)

// SavingsForUser returns the breakdown for the user's first qualifying
// reduction, or nil when none has been recorded. Only reductions with a
// positive dollar savings qualify.
func (c *Calculator) SavingsForUser(ctx context.Context, userID string) (*billing.SavingsResult, error) {
	reductions, err := c.Store.ListReductionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, r := range reductions {
		firstYear := r.FirstYearSavings()
		if !firstYear.IsPositive() {
			continue
		}

		breakdown := billing.SavingsBreakdown{
			TaxYear:          r.TaxYear,
			AssessedBefore:   r.AssessedBefore,
			AssessedAfter:    r.AssessedAfter,
			FirstYearSavings: firstYear,
			ProjectedTotal:   firstYear.Mul(decimal.NewFromInt(cycleYears)),
		}
		return &billing.SavingsResult{
			Breakdown:     breakdown,
			PaymentOption: recommendPaymentOption(breakdown),
		}, nil
	}

	return nil, nil
}

func recommendPaymentOption(b billing.SavingsBreakdown) billing.PaymentOption {
	fee := billing.PerformanceFeeAmount(b)
	if fee.GreaterThan(installmentThreshold) {
		return billing.PaymentOptionInstallments
	}
	return billing.PaymentOptionFull
}
