/*
Package notify dispatches customer email: dunning notices and deadline
reminders.

PURPOSE:
  Decision components return verdicts; this package performs the send. The
  transport is behind the Sender interface so tests and local runs use
  LogSender while production plugs in a real provider.

FAILURE SEMANTICS:
  A send error propagates to the caller untouched - the dunning sequencer
  relies on that to leave its counter alone and retry the tier next run.
*/
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/overtaxed/appeal-engine/billing"
	"github.com/overtaxed/appeal-engine/calendar"
)

// Sender is the raw email transport.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes email to the process log instead of sending. Dev/test.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, body string) error {
	log.Printf("[Mail] to=%s subject=%q (%d bytes)", to, subject, len(body))
	return nil
}

// Directory resolves a user ID to an email address.
type Directory interface {
	UserEmail(ctx context.Context, userID string) (string, error)
}

// Mailer renders and sends product email. Implements billing.Notifier.
type Mailer struct {
	Sender    Sender
	Directory Directory
}

var _ billing.Notifier = (*Mailer)(nil)

// SendCollectionNotice dispatches the dunning notice for a tier.
func (m *Mailer) SendCollectionNotice(ctx context.Context, inv billing.Invoice, tier billing.NoticeTier) error {
	to, err := m.Directory.UserEmail(ctx, inv.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient for invoice %s: %w", inv.ID, err)
	}
	return m.Sender.Send(ctx, to, tier.Subject(), tier.Body(inv))
}

// SendDeadlineReminder tells a user their township's filing window is
// closing.
func (m *Mailer) SendDeadlineReminder(ctx context.Context, userID, pin string, d calendar.Deadline) error {
	to, err := m.Directory.UserEmail(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve recipient for user %s: %w", userID, err)
	}

	subject := fmt.Sprintf("Appeal deadline approaching for %s township", d.Township)
	body := fmt.Sprintf(
		"The Cook County Assessor accepts appeals for %s township until %s. "+
			"Your property (PIN %s) has no filed appeal for this cycle yet.\n\n"+
			"Official calendar: %s\n\n- The OverTaxed team",
		d.Township, d.LastFileDate, pin, d.CalendarURL)

	return m.Sender.Send(ctx, to, subject, body)
}
