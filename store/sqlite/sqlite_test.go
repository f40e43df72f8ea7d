package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overtaxed/appeal-engine/appeal"
	"github.com/overtaxed/appeal-engine/billing"
	"github.com/overtaxed/appeal-engine/savings"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, s *Store, id string, plan billing.Plan) {
	t.Helper()
	require.NoError(t, s.SaveUser(context.Background(), User{
		ID:            id,
		Name:          "Test User " + id,
		Email:         id + "@example.com",
		Plan:          plan,
		PlanStartedAt: time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC),
	}))
}

func pendingInvoice(id, userID string, due time.Time) billing.Invoice {
	return billing.Invoice{
		ID:       id,
		UserID:   userID,
		Kind:     billing.KindSubscription,
		TaxYear:  2025,
		Amount:   decimal.NewFromInt(299),
		Status:   billing.InvoicePending,
		IssuedAt: due.AddDate(0, -1, 0),
		DueDate:  due,
	}
}

// =============================================================================
// DUNNING COUNTER
// =============================================================================

func TestIncrementCollectionLetters_ConditionalUpdate(t *testing.T) {
	// GIVEN: an invoice with 0 letters sent
	// WHEN: two runs race with the same expected count
	// THEN: exactly one increment lands; the loser gets ErrConcurrentModification

	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", billing.PlanUpfront3Yr)

	due := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveInvoice(ctx, pendingInvoice("inv-1", "user-1", due)))

	now := due.AddDate(0, 0, 10)
	require.NoError(t, store.IncrementCollectionLetters(ctx, "inv-1", 0, now))

	err := store.IncrementCollectionLetters(ctx, "inv-1", 0, now)
	assert.ErrorIs(t, err, billing.ErrConcurrentModification)

	inv, err := store.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, 1, inv.CollectionLettersSent)
	require.NotNil(t, inv.LastCollectionLetterSentAt)
	assert.Equal(t, now.UTC(), inv.LastCollectionLetterSentAt.UTC())
}

func TestIncrementCollectionLetters_MissingInvoice(t *testing.T) {
	store := newTestStore(t)
	err := store.IncrementCollectionLetters(context.Background(), "no-such", 0, time.Now())
	assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
}

func TestCollectionNotices_AppendAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", billing.PlanUpfront3Yr)

	due := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveInvoice(ctx, pendingInvoice("inv-1", "user-1", due)))

	for tier := 1; tier <= 2; tier++ {
		require.NoError(t, store.RecordCollectionNotice(ctx, billing.CollectionNotice{
			ID:        fmt.Sprintf("notice-inv-1-%d", tier),
			InvoiceID: "inv-1",
			Tier:      billing.NoticeTier(tier),
			SentAt:    due.AddDate(0, 0, 7*tier),
		}))
	}

	notices, err := store.ListNoticesByInvoice(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, notices, 2)
	assert.Equal(t, billing.NoticeFirstReminder, notices[0].Tier)
	assert.Equal(t, billing.NoticeSecondReminder, notices[1].Tier)
}

// =============================================================================
// PERFORMANCE-FEE UNIQUENESS
// =============================================================================

func TestCreatePerformanceFeeInvoice_UniquePerUserYear(t *testing.T) {
	// The unique index, not cron frequency, prevents double-invoicing.
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", billing.PlanInstallment)

	inv := billing.Invoice{
		ID: "fee-1", UserID: "user-1", TaxYear: 2025,
		Amount: decimal.NewFromFloat(167.76), Status: billing.InvoicePending,
		IssuedAt: time.Now(), DueDate: time.Now().AddDate(0, 1, 0),
	}
	require.NoError(t, store.CreatePerformanceFeeInvoice(ctx, inv))

	dup := inv
	dup.ID = "fee-2"
	err := store.CreatePerformanceFeeInvoice(ctx, dup)
	assert.ErrorIs(t, err, billing.ErrDuplicateInvoice)

	has, err := store.HasPerformanceFeeInvoice(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, has)
}

// =============================================================================
// OVERDUE LISTING
// =============================================================================

func TestListOverdueInvoices(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", billing.PlanUpfront3Yr)

	asOf := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

	overdue := pendingInvoice("inv-overdue", "user-1", asOf.AddDate(0, 0, -10))
	future := pendingInvoice("inv-future", "user-1", asOf.AddDate(0, 0, 10))
	paid := pendingInvoice("inv-paid", "user-1", asOf.AddDate(0, 0, -30))
	paid.Status = billing.InvoicePaid

	for _, inv := range []billing.Invoice{overdue, future, paid} {
		require.NoError(t, store.SaveInvoice(ctx, inv))
	}

	got, err := store.ListOverdueInvoices(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "inv-overdue", got[0].ID)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(299)), "decimal amount survives round trip")
}

// =============================================================================
// APPEALS
// =============================================================================

func TestAppealRoundTripAndStatusUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", billing.PlanUpfront3Yr)

	require.NoError(t, store.SaveProperty(ctx, Property{
		ID: "prop-1", UserID: "user-1", PIN: "14211000230000",
		Address: "1500 Chicago Ave", Township: "evanston",
	}))

	a := appeal.Appeal{
		ID: "ap-1", UserID: "user-1", PropertyID: "prop-1",
		PIN: "14211000230000", Township: "evanston",
		TaxYear: 2025, Status: appeal.StatusDraft,
	}
	require.NoError(t, store.SaveAppeal(ctx, a))

	got, err := store.GetAppeal(ctx, "ap-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, appeal.StatusDraft, got.Status)
	assert.Nil(t, got.FiledAt)

	filedAt := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateAppealStatus(ctx, "ap-1", appeal.StatusFiled, filedAt))

	got, err = store.GetAppeal(ctx, "ap-1")
	require.NoError(t, err)
	assert.Equal(t, appeal.StatusFiled, got.Status)
	require.NotNil(t, got.FiledAt, "filed_at stamped on transition to FILED")
}

func TestGetAppeal_NotFoundIsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetAppeal(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// REDUCTIONS & USERS
// =============================================================================

func TestReductionsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", billing.PlanInstallment)

	r := savings.Reduction{
		ID: "red-1", UserID: "user-1", PIN: "14211000230000", TaxYear: 2025,
		AssessedBefore: decimal.NewFromInt(42000),
		AssessedAfter:  decimal.NewFromInt(36000),
		TaxRate:        decimal.NewFromFloat(0.0932),
		RecordedAt:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.SaveReduction(ctx, r))

	got, err := store.ListReductionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].TaxRate.Equal(r.TaxRate), "tax rate survives round trip")
}

func TestListUsersByPlan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "upfront", billing.PlanUpfront3Yr)
	seedUser(t, store, "installment", billing.PlanInstallment)

	got, err := store.ListUsersByPlan(ctx, billing.PlanInstallment)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "installment", got[0].ID)

	both, err := store.ListUsersByPlan(ctx, billing.PlanUpfront3Yr, billing.PlanInstallment)
	require.NoError(t, err)
	assert.Len(t, both, 2)
}

func TestPropertiesByTownships(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", billing.PlanUpfront3Yr)

	for _, p := range []Property{
		{ID: "p1", UserID: "user-1", PIN: "11111111111111", Address: "a", Township: "evanston"},
		{ID: "p2", UserID: "user-1", PIN: "22222222222222", Address: "b", Township: "maine"},
		{ID: "p3", UserID: "user-1", PIN: "33333333333333", Address: "c", Township: "cicero"},
	} {
		require.NoError(t, store.SaveProperty(ctx, p))
	}

	got, err := store.ListPropertiesByTownships(ctx, []string{"evanston", "cicero"})
	require.NoError(t, err)
	require.Len(t, got, 2)
}
