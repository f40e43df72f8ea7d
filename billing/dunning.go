/*
dunning.go - Collections dunning sequencer

PURPOSE:
  Advances an overdue invoice through four escalating notices. The tier is a
  function of two numbers: how many days overdue the invoice is and how many
  notices were already sent. The schedule is an ordered decision list - the
  notice count selects exactly one candidate rule, so tiers can never be
  skipped and a higher tier is never re-derived after a lower one fired.

SCHEDULE:
  Notice 1: >= 7 days overdue, 0 sent   (friendly reminder)
  Notice 2: >= 14 days overdue, 1 sent  (second reminder)
  Notice 3: >= 30 days overdue, 2 sent  (final warning)
  Notice 4: >= 45 days overdue, 3 sent  (collections warning, links ToS)
  Otherwise: nothing to send.

PROGRESSION:
  Strictly monotonic one-way: CollectionLettersSent only increases, by
  exactly 1 per successful dispatch. The increment is a conditional update on
  the prior count, so two overlapping runs cannot both advance the same
  invoice. A failed dispatch leaves the counter untouched and the same tier
  is retried on the next run.

SEE ALSO:
  - api/cron.go: the collections job driving Process over overdue invoices
  - store/sqlite: IncrementCollectionLetters (conditional update)
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// termsOfServiceURL is included in the final notice before the account is
// referred to collections.
const termsOfServiceURL = "https://overtaxed.io/terms"

// =============================================================================
// NOTICE TIERS
// =============================================================================

// NoticeTier is an escalation stage, totally ordered: 1 < 2 < 3 < 4.
type NoticeTier int

const (
	NoticeNone           NoticeTier = 0
	NoticeFirstReminder  NoticeTier = 1
	NoticeSecondReminder NoticeTier = 2
	NoticeFinalWarning   NoticeTier = 3
	NoticeCollections    NoticeTier = 4
)

// MaxNotices is the end of the sequence; past it the sequencer always skips.
const MaxNotices = 4

func (t NoticeTier) String() string {
	switch t {
	case NoticeFirstReminder:
		return "first_reminder"
	case NoticeSecondReminder:
		return "second_reminder"
	case NoticeFinalWarning:
		return "final_warning"
	case NoticeCollections:
		return "collections_warning"
	default:
		return "none"
	}
}

// Subject returns the email subject line for a tier.
func (t NoticeTier) Subject() string {
	switch t {
	case NoticeFirstReminder:
		return "Reminder: your OverTaxed invoice is past due"
	case NoticeSecondReminder:
		return "Second reminder: your OverTaxed invoice remains unpaid"
	case NoticeFinalWarning:
		return "Final warning: unpaid OverTaxed invoice"
	case NoticeCollections:
		return "Action required: account pending referral to collections"
	default:
		return ""
	}
}

// Body renders the escalating message for a tier.
func (t NoticeTier) Body(inv Invoice) string {
	amount := inv.Amount.StringFixed(2)
	due := inv.DueDate.Format("January 2, 2006")

	switch t {
	case NoticeFirstReminder:
		return fmt.Sprintf(
			"Hi there,\n\nJust a friendly reminder that invoice %s for $%s was due on %s. "+
				"If you've already paid, please disregard this note.\n\n- The OverTaxed team",
			inv.ID, amount, due)
	case NoticeSecondReminder:
		return fmt.Sprintf(
			"Hello,\n\nInvoice %s for $%s was due on %s and remains unpaid. "+
				"Please settle it at your earliest convenience to keep your appeal service uninterrupted.\n\n- The OverTaxed team",
			inv.ID, amount, due)
	case NoticeFinalWarning:
		return fmt.Sprintf(
			"Hello,\n\nThis is a final warning: invoice %s for $%s, due %s, is seriously past due. "+
				"Service on your account will be suspended if payment is not received within 14 days.\n\n- OverTaxed Billing",
			inv.ID, amount, due)
	case NoticeCollections:
		return fmt.Sprintf(
			"Hello,\n\nInvoice %s for $%s, due %s, is now more than 45 days past due. "+
				"Per our terms of service (%s), unpaid accounts are referred to a collections agency. "+
				"Pay now to avoid referral.\n\n- OverTaxed Billing",
			inv.ID, amount, due, termsOfServiceURL)
	default:
		return ""
	}
}

// =============================================================================
// TIER SELECTION
// =============================================================================

// tierRule pairs a tier with its overdue threshold and the exact number of
// notices that must already have been sent.
type tierRule struct {
	Tier           NoticeTier
	MinDaysOverdue int
	PriorNotices   int
}

// dunningSchedule is evaluated as an ordered decision list; PriorNotices
// makes at most one rule eligible per invoice state, so a first match is the
// only match and tiers cannot be skipped.
var dunningSchedule = []tierRule{
	{NoticeFirstReminder, 7, 0},
	{NoticeSecondReminder, 14, 1},
	{NoticeFinalWarning, 30, 2},
	{NoticeCollections, 45, 3},
}

// NextNotice selects the notice tier for an invoice given how many days it
// is overdue and how many notices were already sent. ok=false when there is
// nothing to send: insufficiently overdue for the next tier, or already at
// the end of the sequence.
func NextNotice(daysOverdue, lettersSent int) (NoticeTier, bool) {
	for _, rule := range dunningSchedule {
		if lettersSent != rule.PriorNotices {
			continue
		}
		if daysOverdue >= rule.MinDaysOverdue {
			return rule.Tier, true
		}
		// The matching rule's threshold isn't met; no later rule can apply
		// because its PriorNotices differs.
		return NoticeNone, false
	}
	return NoticeNone, false
}

// =============================================================================
// SEQUENCER
// =============================================================================

// Outcome constants for per-invoice run details.
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// NoticeResult is the per-invoice outcome of one sequencer pass.
type NoticeResult struct {
	InvoiceID string
	Outcome   string
	Tier      NoticeTier
	Reason    string
}

// Notifier dispatches a rendered notice. Implementations own transport;
// the sequencer never sends email itself.
type Notifier interface {
	SendCollectionNotice(ctx context.Context, inv Invoice, tier NoticeTier) error
}

// NoticeStore is the persistence the sequencer needs: a conditional counter
// increment and an append-only audit row.
type NoticeStore interface {
	// IncrementCollectionLetters advances the counter from expectedSent to
	// expectedSent+1 and stamps last_collection_letter_sent_at. Returns
	// ErrConcurrentModification when the stored count no longer matches.
	IncrementCollectionLetters(ctx context.Context, invoiceID string, expectedSent int, sentAt time.Time) error

	RecordCollectionNotice(ctx context.Context, n CollectionNotice) error
}

// Sequencer runs the dunning decision and delegates the side effects.
type Sequencer struct {
	Store    NoticeStore
	Notifier Notifier
}

// Process handles one overdue invoice: pick the tier, dispatch, then advance
// the counter. Dispatch failures leave the counter untouched so the tier is
// retried next run; a lost counter race is reported as a skip, since the
// winning run already sent this cycle's notice.
func (s *Sequencer) Process(ctx context.Context, inv Invoice, now time.Time) NoticeResult {
	if inv.Status != InvoicePending {
		return NoticeResult{InvoiceID: inv.ID, Outcome: OutcomeSkipped, Reason: fmt.Sprintf("invoice is %s", inv.Status)}
	}

	daysOverdue := inv.DaysOverdue(now)
	tier, ok := NextNotice(daysOverdue, inv.CollectionLettersSent)
	if !ok {
		reason := fmt.Sprintf("no notice due (%d days overdue, %d sent)", daysOverdue, inv.CollectionLettersSent)
		if inv.CollectionLettersSent >= MaxNotices {
			reason = "dunning sequence exhausted"
		}
		return NoticeResult{InvoiceID: inv.ID, Outcome: OutcomeSkipped, Reason: reason}
	}

	if err := s.Notifier.SendCollectionNotice(ctx, inv, tier); err != nil {
		// Counter untouched; the same tier retries on the next run.
		return NoticeResult{InvoiceID: inv.ID, Outcome: OutcomeError, Tier: tier, Reason: fmt.Sprintf("dispatch failed: %v", err)}
	}

	if err := s.Store.IncrementCollectionLetters(ctx, inv.ID, inv.CollectionLettersSent, now); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			return NoticeResult{InvoiceID: inv.ID, Outcome: OutcomeSkipped, Tier: tier, Reason: "lost counter race to a concurrent run"}
		}
		return NoticeResult{InvoiceID: inv.ID, Outcome: OutcomeError, Tier: tier, Reason: fmt.Sprintf("counter update failed: %v", err)}
	}

	notice := CollectionNotice{
		ID:        fmt.Sprintf("notice-%s-%d", inv.ID, tier),
		InvoiceID: inv.ID,
		Tier:      tier,
		SentAt:    now,
	}
	if err := s.Store.RecordCollectionNotice(ctx, notice); err != nil {
		// The counter is the source of truth; a missing audit row is reported
		// but does not undo the send.
		return NoticeResult{InvoiceID: inv.ID, Outcome: OutcomeSent, Tier: tier, Reason: fmt.Sprintf("audit row failed: %v", err)}
	}

	return NoticeResult{InvoiceID: inv.ID, Outcome: OutcomeSent, Tier: tier}
}
