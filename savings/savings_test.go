package savings

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overtaxed/appeal-engine/billing"
)

type fakeStore struct {
	reductions []Reduction
	err        error
}

func (f *fakeStore) ListReductionsByUser(ctx context.Context, userID string) ([]Reduction, error) {
	return f.reductions, f.err
}

func reduction(before, after, rate float64, year int) Reduction {
	return Reduction{
		UserID:         "user-1",
		PIN:            "14211000230000",
		TaxYear:        year,
		AssessedBefore: decimal.NewFromFloat(before),
		AssessedAfter:  decimal.NewFromFloat(after),
		TaxRate:        decimal.NewFromFloat(rate),
	}
}

func TestSavingsForUser_ComputesBreakdown(t *testing.T) {
	// GIVEN: a 6,000 assessed-value reduction at a 9.32% rate
	// WHEN: computing savings
	// THEN: first year = 559.20, projected = 3x across the triennial cycle

	calc := &Calculator{Store: &fakeStore{reductions: []Reduction{
		reduction(42000, 36000, 0.0932, 2025),
	}}}

	res, err := calc.SavingsForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, 2025, res.Breakdown.TaxYear)
	assert.True(t, res.Breakdown.FirstYearSavings.Equal(decimal.NewFromFloat(559.20)),
		"first year = %s", res.Breakdown.FirstYearSavings)
	assert.True(t, res.Breakdown.ProjectedTotal.Equal(decimal.NewFromFloat(1677.60)),
		"projected = %s", res.Breakdown.ProjectedTotal)
}

func TestSavingsForUser_NoReductions(t *testing.T) {
	calc := &Calculator{Store: &fakeStore{}}

	res, err := calc.SavingsForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, res, "no reductions means no result, not an error")
}

func TestSavingsForUser_SkipsNonPositiveReductions(t *testing.T) {
	// An increase or a wash is not a qualifying reduction; the first positive
	// one wins.
	calc := &Calculator{Store: &fakeStore{reductions: []Reduction{
		reduction(36000, 36000, 0.0932, 2022), // wash
		reduction(36000, 38000, 0.0932, 2023), // increase
		reduction(38000, 35000, 0.0932, 2025),
	}}}

	res, err := calc.SavingsForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 2025, res.Breakdown.TaxYear)
}

func TestSavingsForUser_StoreErrorPropagates(t *testing.T) {
	calc := &Calculator{Store: &fakeStore{err: errors.New("db closed")}}

	_, err := calc.SavingsForUser(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestRecommendPaymentOption_Threshold(t *testing.T) {
	// Fee = 30% of first-year savings; above $250 recommends installments.
	small := billing.SavingsBreakdown{FirstYearSavings: decimal.NewFromInt(500)}  // fee 150
	large := billing.SavingsBreakdown{FirstYearSavings: decimal.NewFromInt(1200)} // fee 360

	assert.Equal(t, billing.PaymentOptionFull, recommendPaymentOption(small))
	assert.Equal(t, billing.PaymentOptionInstallments, recommendPaymentOption(large))
}
