package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overtaxed/appeal-engine/billing"
)

func (e *testEnv) cronGet(t *testing.T, job, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+"/api/cron/"+job, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestCronAuth_FailsClosedWhenUnconfigured(t *testing.T) {
	// GIVEN: a deploy with no cron secret configured
	// WHEN: a request arrives, even with some token
	// THEN: 503, never 200

	env := newTestEnv(t, time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC))
	srv := httptest.NewServer(NewRouter(env.handler, ""))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/cron/collections", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer anything")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCronAuth_RejectsBadToken(t *testing.T) {
	env := newTestEnv(t, time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC))

	resp := env.cronGet(t, "collections", "wrong-secret")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = env.cronGet(t, "collections", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "missing header rejected")
	resp.Body.Close()
}

// =============================================================================
// COLLECTIONS
// =============================================================================

func TestCronCollections_EndToEnd(t *testing.T) {
	now := time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	env.seedUserAndProperty(t)

	// Invoice 10 days overdue: first reminder territory.
	resp := env.post(t, "/api/admin/invoices", CreateInvoiceRequest{
		ID: "inv-1", UserID: "user-1", Kind: "SUBSCRIPTION",
		TaxYear: 2025, Amount: "299.00", DueDate: "2025-06-05",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.cronGet(t, "collections", testCronSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeBody[RunSummary](t, resp)

	assert.Equal(t, JobCollections, summary.Job)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Details, 1)
	assert.Equal(t, billing.OutcomeSent, summary.Details[0].Outcome)
	require.Len(t, env.mailer.notices, 1)
	assert.Equal(t, billing.NoticeFirstReminder, env.mailer.notices[0])

	// Second pass the same day: tier 2 needs 14 days, so nothing to send.
	resp = env.cronGet(t, "collections", testCronSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary = decodeBody[RunSummary](t, resp)

	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, env.mailer.notices, 1, "no duplicate notice")

	// The run itself is on the audit trail.
	resp = env.get(t, "/api/admin/job-runs?job=collections")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs := decodeBody[[]JobRunDTO](t, resp)
	require.Len(t, runs, 2)
	assert.Equal(t, "completed", runs[0].Status)
}

func TestCronCollections_DispatchFailureLeavesCounter(t *testing.T) {
	now := time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	env.seedUserAndProperty(t)

	resp := env.post(t, "/api/admin/invoices", CreateInvoiceRequest{
		ID: "inv-1", UserID: "user-1", Kind: "SUBSCRIPTION",
		TaxYear: 2025, Amount: "299.00", DueDate: "2025-06-05",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	env.mailer.fail = assert.AnError

	resp = env.cronGet(t, "collections", testCronSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeBody[RunSummary](t, resp)
	assert.Equal(t, 1, summary.Errored)

	// Mail recovers; the same tier goes out on the next run.
	env.mailer.fail = nil

	resp = env.cronGet(t, "collections", testCronSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary = decodeBody[RunSummary](t, resp)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, env.mailer.notices, 1)
	assert.Equal(t, billing.NoticeFirstReminder, env.mailer.notices[0])
}

// =============================================================================
// PERFORMANCE FEES
// =============================================================================

func TestCronPerformanceFees_InvoicesOnce(t *testing.T) {
	now := time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)

	resp := env.post(t, "/api/users", CreateUserRequest{
		ID: "user-1", Name: "Ada", Email: "ada@example.com",
		Plan: "INSTALLMENT", PlanStartedAt: "2025-01-15",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// No reduction yet: a skip, not an invoice.
	resp = env.cronGet(t, "performance-fees", testCronSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeBody[RunSummary](t, resp)
	require.Len(t, summary.Details, 1)
	assert.Equal(t, billing.OutcomeSkipped, summary.Details[0].Outcome)

	resp = env.post(t, "/api/admin/reductions", CreateReductionRequest{
		ID: "red-1", UserID: "user-1", PIN: "14211000230000", TaxYear: 2025,
		AssessedBefore: "42000", AssessedAfter: "36000", TaxRate: "0.0932",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// First reduction triggers the installment-plan fee.
	resp = env.cronGet(t, "performance-fees", testCronSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary = decodeBody[RunSummary](t, resp)
	assert.Equal(t, 1, summary.Succeeded)

	resp = env.get(t, "/api/invoices/fee-user-1-2025")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	inv := decodeBody[InvoiceDTO](t, resp)
	assert.Equal(t, "PERFORMANCE_FEE", inv.Kind)
	assert.Equal(t, "167.76", inv.Amount, "30% of 559.20 first-year savings")

	// Re-running must not double-invoice.
	resp = env.cronGet(t, "performance-fees", testCronSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary = decodeBody[RunSummary](t, resp)
	assert.Equal(t, 1, summary.Skipped)

	invs, err := env.store.ListInvoicesByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, invs, 1)
}

func TestCronPerformanceFees_UpfrontWindowHolds(t *testing.T) {
	// Upfront plan started 2024: still inside the 3-year window in 2025,
	// even with savings on the books.
	now := time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)

	resp := env.post(t, "/api/users", CreateUserRequest{
		ID: "user-1", Name: "Ada", Email: "ada@example.com",
		Plan: "UPFRONT_3YR", PlanStartedAt: "2024-01-15",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/api/admin/reductions", CreateReductionRequest{
		ID: "red-1", UserID: "user-1", PIN: "14211000230000", TaxYear: 2025,
		AssessedBefore: "42000", AssessedAfter: "36000", TaxRate: "0.0932",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.cronGet(t, "performance-fees", testCronSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeBody[RunSummary](t, resp)
	require.Len(t, summary.Details, 1)
	assert.Equal(t, billing.OutcomeSkipped, summary.Details[0].Outcome)
	assert.Contains(t, summary.Details[0].Reason, "window")
}

// =============================================================================
// DEADLINE REMINDERS
// =============================================================================

func TestCronDeadlineReminders_SeasonGate(t *testing.T) {
	env := newTestEnv(t, time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC))
	env.seedUserAndProperty(t)

	resp := env.cronGet(t, "deadline-reminders", testCronSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeBody[RunSummary](t, resp)

	require.Len(t, summary.Details, 1)
	assert.Equal(t, billing.OutcomeSkipped, summary.Details[0].Outcome)
	assert.Contains(t, summary.Details[0].Reason, "season")
	assert.Empty(t, env.mailer.reminders)
}

func TestCronDeadlineReminders_NudgesUnfiledProperties(t *testing.T) {
	// 2025-05-15: evanston's last-file date (May 21) is 6 days out.
	now := time.Date(2025, time.May, 15, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	env.seedUserAndProperty(t)

	resp := env.cronGet(t, "deadline-reminders", testCronSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeBody[RunSummary](t, resp)

	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, env.mailer.reminders, 1)
	assert.Equal(t, "14211000230000", env.mailer.reminders[0])

	// File the appeal; the nudge stops.
	resp = env.post(t, "/api/appeals", CreateAppealRequest{
		ID: "ap-1", PropertyID: "prop-1", TaxYear: 2025,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/api/appeals/ap-1/status", UpdateAppealStatusRequest{Status: "FILED"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.cronGet(t, "deadline-reminders", testCronSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary = decodeBody[RunSummary](t, resp)

	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, env.mailer.reminders, 1, "no reminder once an appeal is submitted")
}
