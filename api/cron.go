/*
cron.go - Scheduled-job implementations and their HTTP triggers

PURPOSE:
  Three recurring jobs keep billing and monitoring current:
  - collections:          advance overdue invoices through the dunning tiers
  - performance-fees:     invoice deferred fees once eligibility is reached
  - deadline-reminders:   nudge users with unfiled appeals near a deadline

  Each job is exposed as a POST endpoint under /api/cron so an external
  scheduler can drive it, and the built-in scheduler (scheduler.go) calls the
  same functions directly.

RUN SEMANTICS:
  A run processes every candidate entity independently: one entity's failure
  is recorded in the run details and the loop continues. Every run writes a
  job_runs row (running, then completed) so operators can audit frequency and
  outcomes. Correctness never depends on run frequency - the dunning counter
  and the performance-fee unique index make overlapping runs safe.

SEASON GATE:
  deadline-reminders exits early outside the reassessment season (September
  through December); the billing jobs run year-round because invoices age
  regardless of the Assessor's calendar.

SEE ALSO:
  - billing/dunning.go: the sequencer behind the collections job
  - billing/performance.go: the eligibility decision
  - calendar/window.go: season and active-window computation
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/overtaxed/appeal-engine/appeal"
	"github.com/overtaxed/appeal-engine/billing"
	"github.com/overtaxed/appeal-engine/calendar"
	"github.com/overtaxed/appeal-engine/store/sqlite"
)

// Job names, used in job_runs rows and run summaries.
const (
	JobCollections       = "collections"
	JobPerformanceFees   = "performance-fees"
	JobDeadlineReminders = "deadline-reminders"
)

// reminderHorizonDays is how far ahead of a last-file date the reminder job
// starts nudging.
const reminderHorizonDays = 14

// performanceFeeTermDays is the payment term on a freshly issued
// performance-fee invoice.
const performanceFeeTermDays = 30

// RunDetail is the per-entity outcome inside a run summary.
type RunDetail struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"` // sent | created | skipped | error
	Reason  string `json:"reason,omitempty"`
}

// RunSummary is the result of one job run, returned by the cron endpoints
// and persisted in aggregate to job_runs.
type RunSummary struct {
	Job       string      `json:"job"`
	RunID     string      `json:"run_id"`
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Skipped   int         `json:"skipped"`
	Errored   int         `json:"errored"`
	Details   []RunDetail `json:"details"`
}

func (s *RunSummary) add(d RunDetail) {
	s.Processed++
	switch d.Outcome {
	case billing.OutcomeError:
		s.Errored++
	case billing.OutcomeSkipped:
		s.Skipped++
	default:
		s.Succeeded++
	}
	s.Details = append(s.Details, d)
}

// =============================================================================
// HTTP TRIGGERS
// =============================================================================

// CronCollections handles POST /api/cron/collections.
func (h *Handler) CronCollections(w http.ResponseWriter, r *http.Request) {
	h.runCronJob(w, r, JobCollections, h.RunCollections)
}

// CronPerformanceFees handles POST /api/cron/performance-fees.
func (h *Handler) CronPerformanceFees(w http.ResponseWriter, r *http.Request) {
	h.runCronJob(w, r, JobPerformanceFees, h.RunPerformanceFees)
}

// CronDeadlineReminders handles POST /api/cron/deadline-reminders.
func (h *Handler) CronDeadlineReminders(w http.ResponseWriter, r *http.Request) {
	h.runCronJob(w, r, JobDeadlineReminders, h.RunDeadlineReminders)
}

func (h *Handler) runCronJob(w http.ResponseWriter, r *http.Request, job string,
	run func(ctx context.Context, now time.Time) (RunSummary, error)) {

	summary, err := h.recordedRun(r.Context(), job, h.now(), run)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s run failed", job), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// recordedRun brackets a job with its job_runs audit row.
func (h *Handler) recordedRun(ctx context.Context, job string, now time.Time,
	run func(ctx context.Context, now time.Time) (RunSummary, error)) (RunSummary, error) {

	// Wall time for the ID: the injected clock may be frozen in tests and
	// consecutive runs still need distinct rows.
	record := sqlite.JobRun{
		ID:        fmt.Sprintf("run-%s-%d", job, time.Now().UnixNano()),
		Job:       job,
		Status:    "running",
		StartedAt: now,
	}
	if err := h.Store.SaveJobRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run record: %w", err)
	}

	summary, err := run(ctx, now)
	summary.Job = job
	summary.RunID = record.ID

	completed := h.now()
	record.CompletedAt = &completed
	record.Processed = summary.Processed
	record.Succeeded = summary.Succeeded
	record.Skipped = summary.Skipped
	record.Errored = summary.Errored

	if err != nil {
		record.Status = "failed"
		record.Error = err.Error()
		h.Store.SaveJobRun(ctx, record)
		return summary, err
	}

	record.Status = "completed"
	if err := h.Store.SaveJobRun(ctx, record); err != nil {
		return summary, fmt.Errorf("update run record: %w", err)
	}
	return summary, nil
}

// =============================================================================
// COLLECTIONS
// =============================================================================

// RunCollections advances every overdue invoice one step through the dunning
// sequence. Per-invoice outcomes land in the summary; only a failure to list
// the candidates fails the run itself.
func (h *Handler) RunCollections(ctx context.Context, now time.Time) (RunSummary, error) {
	var summary RunSummary

	overdue, err := h.Store.ListOverdueInvoices(ctx, now)
	if err != nil {
		return summary, fmt.Errorf("list overdue invoices: %w", err)
	}

	seq := &billing.Sequencer{Store: h.Store, Notifier: h.Mailer}
	for _, inv := range overdue {
		res := seq.Process(ctx, inv, now)
		summary.add(RunDetail{ID: res.InvoiceID, Outcome: res.Outcome, Reason: res.Reason})
	}
	return summary, nil
}

// =============================================================================
// PERFORMANCE FEES
// =============================================================================

// RunPerformanceFees checks every deferred-fee user for eligibility and
// creates the invoice for those who crossed their trigger. The store's
// unique index makes creation idempotent; a duplicate insert from an
// overlapping run is reported as a skip.
func (h *Handler) RunPerformanceFees(ctx context.Context, now time.Time) (RunSummary, error) {
	var summary RunSummary

	users, err := h.Store.ListUsersByPlan(ctx, billing.PlanUpfront3Yr, billing.PlanInstallment)
	if err != nil {
		return summary, fmt.Errorf("list deferred-fee users: %w", err)
	}

	for _, u := range users {
		summary.add(h.processPerformanceFee(ctx, u, now))
	}
	return summary, nil
}

func (h *Handler) processPerformanceFee(ctx context.Context, u sqlite.User, now time.Time) RunDetail {
	invoiced, err := h.Store.HasPerformanceFeeInvoice(ctx, u.ID)
	if err != nil {
		return RunDetail{ID: u.ID, Outcome: billing.OutcomeError, Reason: fmt.Sprintf("invoice lookup failed: %v", err)}
	}

	profile := billing.BillingProfile{
		UserID:                 u.ID,
		Plan:                   u.Plan,
		PlanStartedAt:          u.PlanStartedAt,
		PerformanceFeeInvoiced: invoiced,
	}

	decision, err := billing.ShouldCreatePerformanceInvoice(ctx, profile, h.Savings, now)
	if err != nil {
		// A lookup failure is an error entry, not a quiet skip.
		return RunDetail{ID: u.ID, Outcome: billing.OutcomeError, Reason: err.Error()}
	}
	if !decision.Should {
		return RunDetail{ID: u.ID, Outcome: billing.OutcomeSkipped, Reason: decision.Reason}
	}

	inv := billing.Invoice{
		ID:       fmt.Sprintf("fee-%s-%d", u.ID, decision.Savings.TaxYear),
		UserID:   u.ID,
		Kind:     billing.KindPerformanceFee,
		TaxYear:  decision.Savings.TaxYear,
		Amount:   billing.PerformanceFeeAmount(*decision.Savings),
		Status:   billing.InvoicePending,
		IssuedAt: now,
		DueDate:  now.AddDate(0, 0, performanceFeeTermDays),
	}
	if err := h.Store.CreatePerformanceFeeInvoice(ctx, inv); err != nil {
		if errors.Is(err, billing.ErrDuplicateInvoice) {
			return RunDetail{ID: u.ID, Outcome: billing.OutcomeSkipped, Reason: "performance fee already invoiced by a concurrent run"}
		}
		return RunDetail{ID: u.ID, Outcome: billing.OutcomeError, Reason: fmt.Sprintf("invoice insert failed: %v", err)}
	}

	return RunDetail{ID: u.ID, Outcome: "created",
		Reason: fmt.Sprintf("invoice %s for $%s (%s)", inv.ID, inv.Amount.StringFixed(2), decision.PaymentOption)}
}

// =============================================================================
// DEADLINE REMINDERS
// =============================================================================

// RunDeadlineReminders emails users whose properties sit in a township with a
// last-file date inside the reminder horizon and no submitted appeal for the
// cycle. Outside the reassessment season the job is a recorded no-op.
func (h *Handler) RunDeadlineReminders(ctx context.Context, now time.Time) (RunSummary, error) {
	var summary RunSummary

	today := calendar.DateOf(now)
	if !calendar.InReassessmentSeason(today) {
		summary.add(RunDetail{ID: "season", Outcome: billing.OutcomeSkipped, Reason: "outside reassessment season"})
		return summary, nil
	}

	upcoming := calendar.UpcomingDeadlines(today, reminderHorizonDays)
	if len(upcoming) == 0 {
		return summary, nil
	}

	townships := make([]string, 0, len(upcoming))
	byTownship := make(map[string]calendar.Deadline, len(upcoming))
	for _, d := range upcoming {
		townships = append(townships, d.Township)
		byTownship[d.Township] = d
	}

	props, err := h.Store.ListPropertiesByTownships(ctx, townships)
	if err != nil {
		return summary, fmt.Errorf("list properties: %w", err)
	}

	for _, p := range props {
		deadline := byTownship[p.Township]
		summary.add(h.remindProperty(ctx, p, deadline))
	}
	return summary, nil
}

func (h *Handler) remindProperty(ctx context.Context, p sqlite.Property, d calendar.Deadline) RunDetail {
	taxYear := d.LastFileDate.Year()

	appeals, err := h.Store.ListAppealsByTownshipYear(ctx, p.Township, taxYear)
	if err != nil {
		return RunDetail{ID: p.ID, Outcome: billing.OutcomeError, Reason: fmt.Sprintf("appeal lookup failed: %v", err)}
	}
	for _, a := range appeals {
		if a.PropertyID == p.ID && appeal.Submitted(a.Status) {
			return RunDetail{ID: p.ID, Outcome: billing.OutcomeSkipped, Reason: "appeal already submitted"}
		}
	}

	if err := h.Mailer.SendDeadlineReminder(ctx, p.UserID, p.PIN, d); err != nil {
		return RunDetail{ID: p.ID, Outcome: billing.OutcomeError, Reason: fmt.Sprintf("dispatch failed: %v", err)}
	}
	return RunDetail{ID: p.ID, Outcome: billing.OutcomeSent}
}
