/*
Package sqlite provides the SQLite-backed persistence layer.

PURPOSE:
  Implements the storage interfaces consumed by the decision components
  (billing.NoticeStore, savings.Store) plus the CRUD surface behind the API.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  users:                  account + billing plan
  properties:             parcels under management
  appeals:                appeal records with status lifecycle
  comparables:            comparable-property evidence per appeal
  invoices:               billing documents + dunning counter
  collection_notices:     append-only audit of dispatched dunning notices
  assessment_reductions:  granted reductions feeding savings computation
  job_runs:               one row per scheduled job execution

CONCURRENCY DISCIPLINE:
  The dunning counter and the performance-fee invoice are the two
  read-decide-write cycles in the system. Both are guarded at the database,
  not by run frequency:
  - IncrementCollectionLetters is a conditional UPDATE on the prior count
    (compare-and-swap); a losing run gets ErrConcurrentModification.
  - CreatePerformanceFeeInvoice relies on a partial UNIQUE index on
    (user_id, tax_year) for performance-fee rows; a second insert gets
    ErrDuplicateInvoice.

APPEND-ONLY ENFORCEMENT:
  collection_notices never sees UPDATE or DELETE; the counter on invoices is
  the only mutable dunning state and it moves one way.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New(). Versioned migration tooling is
  deliberately out of scope.

SEE ALSO:
  - billing/dunning.go: the sequencer driving the conditional increment
  - api/cron.go: the jobs recorded in job_runs
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/overtaxed/appeal-engine/appeal"
	"github.com/overtaxed/appeal-engine/billing"
	"github.com/overtaxed/appeal-engine/savings"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ billing.NoticeStore = (*Store)(nil)
	_ savings.Store       = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		plan TEXT NOT NULL,
		plan_started_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		pin TEXT NOT NULL UNIQUE,
		address TEXT NOT NULL,
		township TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_properties_user ON properties(user_id);
	CREATE INDEX IF NOT EXISTS idx_properties_township ON properties(township);

	CREATE TABLE IF NOT EXISTS appeals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		property_id TEXT NOT NULL REFERENCES properties(id),
		pin TEXT NOT NULL,
		township TEXT NOT NULL,
		tax_year INTEGER NOT NULL,
		status TEXT NOT NULL,
		filed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_appeals_user ON appeals(user_id);
	CREATE INDEX IF NOT EXISTS idx_appeals_township_year ON appeals(township, tax_year);

	CREATE TABLE IF NOT EXISTS comparables (
		id TEXT PRIMARY KEY,
		appeal_id TEXT NOT NULL REFERENCES appeals(id),
		pin TEXT NOT NULL,
		address TEXT NOT NULL,
		assessed_value TEXT NOT NULL,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comparables_appeal ON comparables(appeal_id);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		kind TEXT NOT NULL,
		tax_year INTEGER NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		issued_at TEXT NOT NULL,
		due_date TEXT NOT NULL,
		collection_letters_sent INTEGER NOT NULL DEFAULT 0,
		last_collection_letter_sent_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_user ON invoices(user_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_status_due ON invoices(status, due_date);

	-- At most one performance-fee invoice per user per tax year. This
	-- constraint, not cron frequency, is what prevents double-invoicing.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_performance_fee
		ON invoices(user_id, tax_year) WHERE kind = 'PERFORMANCE_FEE';

	-- Append-only audit of dispatched dunning notices.
	CREATE TABLE IF NOT EXISTS collection_notices (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id),
		tier INTEGER NOT NULL,
		sent_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notices_invoice ON collection_notices(invoice_id);

	CREATE TABLE IF NOT EXISTS assessment_reductions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		pin TEXT NOT NULL,
		tax_year INTEGER NOT NULL,
		assessed_before TEXT NOT NULL,
		assessed_after TEXT NOT NULL,
		tax_rate TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reductions_user ON assessment_reductions(user_id);

	CREATE TABLE IF NOT EXISTS job_runs (
		id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		status TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		errored INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_job_runs_job ON job_runs(job, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USERS
// =============================================================================

// User is an account record with its billing plan.
type User struct {
	ID            string
	Name          string
	Email         string
	Plan          billing.Plan
	PlanStartedAt time.Time
	CreatedAt     time.Time
}

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, name, email, plan, plan_started_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			plan = excluded.plan,
			plan_started_at = excluded.plan_started_at
	`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, string(u.Plan),
		u.PlanStartedAt.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetUser retrieves a user by ID. Returns nil when not found.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u User
	var plan, planStartedAt, createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, plan, plan_started_at, created_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &plan, &planStartedAt, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u.Plan = billing.Plan(plan)
	u.PlanStartedAt, _ = time.Parse(time.RFC3339, planStartedAt)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// UserEmail returns the email address for a user.
func (s *Store) UserEmail(ctx context.Context, id string) (string, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", billing.ErrUserNotFound
	}
	return u.Email, nil
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx,
		"SELECT id, name, email, plan, plan_started_at, created_at FROM users ORDER BY name")
}

// ListUsersByPlan returns users on the given billing plans.
func (s *Store) ListUsersByPlan(ctx context.Context, plans ...billing.Plan) ([]User, error) {
	if len(plans) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(plans)), ",")

	args := make([]any, len(plans))
	for i, p := range plans {
		args[i] = string(p)
	}

	query := fmt.Sprintf(
		"SELECT id, name, email, plan, plan_started_at, created_at FROM users WHERE plan IN (%s) ORDER BY name",
		placeholders)
	return s.queryUsers(ctx, query, args...)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var plan, planStartedAt, createdAt string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &plan, &planStartedAt, &createdAt); err != nil {
			return nil, err
		}
		u.Plan = billing.Plan(plan)
		u.PlanStartedAt, _ = time.Parse(time.RFC3339, planStartedAt)
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// PROPERTIES
// =============================================================================

// Property is a parcel under management.
type Property struct {
	ID        string
	UserID    string
	PIN       string
	Address   string
	Township  string // normalized township key
	CreatedAt time.Time
}

// SaveProperty inserts or updates a property.
func (s *Store) SaveProperty(ctx context.Context, p Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO properties (id, user_id, pin, address, township, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address,
			township = excluded.township
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.PIN, p.Address, p.Township,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetProperty retrieves a property by ID. Returns nil when not found.
func (s *Store) GetProperty(ctx context.Context, id string) (*Property, error) {
	props, err := s.queryProperties(ctx,
		"SELECT id, user_id, pin, address, township, created_at FROM properties WHERE id = ?", id)
	if err != nil || len(props) == 0 {
		return nil, err
	}
	return &props[0], nil
}

// ListPropertiesByUser returns a user's properties.
func (s *Store) ListPropertiesByUser(ctx context.Context, userID string) ([]Property, error) {
	return s.queryProperties(ctx,
		"SELECT id, user_id, pin, address, township, created_at FROM properties WHERE user_id = ? ORDER BY pin",
		userID)
}

// ListPropertiesByTownships returns properties in any of the given normalized
// township keys.
func (s *Store) ListPropertiesByTownships(ctx context.Context, townships []string) ([]Property, error) {
	if len(townships) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(townships)), ",")

	args := make([]any, len(townships))
	for i, t := range townships {
		args[i] = t
	}

	query := fmt.Sprintf(
		"SELECT id, user_id, pin, address, township, created_at FROM properties WHERE township IN (%s) ORDER BY township, pin",
		placeholders)
	return s.queryProperties(ctx, query, args...)
}

func (s *Store) queryProperties(ctx context.Context, query string, args ...any) ([]Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []Property
	for rows.Next() {
		var p Property
		var createdAt string
		if err := rows.Scan(&p.ID, &p.UserID, &p.PIN, &p.Address, &p.Township, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		props = append(props, p)
	}
	return props, rows.Err()
}

// =============================================================================
// APPEALS
// =============================================================================

// SaveAppeal inserts or updates an appeal.
func (s *Store) SaveAppeal(ctx context.Context, a appeal.Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO appeals (id, user_id, property_id, pin, township, tax_year, status, filed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			property_id = excluded.property_id,
			pin = excluded.pin,
			township = excluded.township,
			status = excluded.status,
			filed_at = excluded.filed_at,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	var filedAt *string
	if a.FiledAt != nil {
		f := a.FiledAt.Format(time.RFC3339)
		filedAt = &f
	}

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.PropertyID, a.PIN, a.Township, a.TaxYear,
		string(a.Status), filedAt, now, now,
	)
	return err
}

// GetAppeal retrieves an appeal by ID. Returns nil when not found.
func (s *Store) GetAppeal(ctx context.Context, id string) (*appeal.Appeal, error) {
	appeals, err := s.queryAppeals(ctx, appealSelect+" WHERE id = ?", id)
	if err != nil || len(appeals) == 0 {
		return nil, err
	}
	return &appeals[0], nil
}

// ListAppealsByUser returns a user's appeals, newest first.
func (s *Store) ListAppealsByUser(ctx context.Context, userID string) ([]appeal.Appeal, error) {
	return s.queryAppeals(ctx, appealSelect+" WHERE user_id = ? ORDER BY created_at DESC, id", userID)
}

// ListAppealsByTownshipYear returns appeals for a township and tax year.
func (s *Store) ListAppealsByTownshipYear(ctx context.Context, township string, taxYear int) ([]appeal.Appeal, error) {
	return s.queryAppeals(ctx, appealSelect+" WHERE township = ? AND tax_year = ?", township, taxYear)
}

// UpdateAppealStatus moves an appeal to a new status, stamping filed_at on
// the transition into FILED.
func (s *Store) UpdateAppealStatus(ctx context.Context, id string, status appeal.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "UPDATE appeals SET status = ?, updated_at = ? WHERE id = ?"
	args := []any{string(status), now.UTC().Format(time.RFC3339), id}
	if status == appeal.StatusFiled {
		query = "UPDATE appeals SET status = ?, filed_at = ?, updated_at = ? WHERE id = ?"
		args = []any{string(status), now.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339), id}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("appeal %s not found", id)
	}
	return nil
}

// UpdateAppealProperty re-points an appeal at a different property. Callers
// must check appeal.PropertyChangeable first; this method assumes the gate
// already passed.
func (s *Store) UpdateAppealProperty(ctx context.Context, id, propertyID, pin, township string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE appeals SET property_id = ?, pin = ?, township = ?, updated_at = ? WHERE id = ?",
		propertyID, pin, township, now.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("appeal %s not found", id)
	}
	return nil
}

const appealSelect = "SELECT id, user_id, property_id, pin, township, tax_year, status, filed_at, created_at, updated_at FROM appeals"

func (s *Store) queryAppeals(ctx context.Context, query string, args ...any) ([]appeal.Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appeals []appeal.Appeal
	for rows.Next() {
		var a appeal.Appeal
		var status, createdAt, updatedAt string
		var filedAt sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.PropertyID, &a.PIN, &a.Township,
			&a.TaxYear, &status, &filedAt, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		a.Status = appeal.Status(status)
		if filedAt.Valid {
			t, _ := time.Parse(time.RFC3339, filedAt.String)
			a.FiledAt = &t
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		appeals = append(appeals, a)
	}
	return appeals, rows.Err()
}

// =============================================================================
// COMPARABLES
// =============================================================================

// SaveComparable inserts or updates a comparable.
func (s *Store) SaveComparable(ctx context.Context, c appeal.Comparable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO comparables (id, appeal_id, pin, address, assessed_value, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address,
			assessed_value = excluded.assessed_value,
			latitude = excluded.latitude,
			longitude = excluded.longitude
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.AppealID, c.PIN, c.Address, c.AssessedValue.String(),
		c.Latitude, c.Longitude,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListComparablesByAppeal returns an appeal's comparables in insertion order.
func (s *Store) ListComparablesByAppeal(ctx context.Context, appealID string) ([]appeal.Comparable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, appeal_id, pin, address, assessed_value, latitude, longitude, created_at FROM comparables WHERE appeal_id = ? ORDER BY created_at, id",
		appealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comps []appeal.Comparable
	for rows.Next() {
		var c appeal.Comparable
		var assessed, createdAt string
		if err := rows.Scan(&c.ID, &c.AppealID, &c.PIN, &c.Address, &assessed,
			&c.Latitude, &c.Longitude, &createdAt); err != nil {
			return nil, err
		}
		c.AssessedValue, _ = decimal.NewFromString(assessed)
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

// UpdateComparableLocation stores geocoded coordinates for a comparable.
func (s *Store) UpdateComparableLocation(ctx context.Context, id string, lat, lng float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE comparables SET latitude = ?, longitude = ? WHERE id = ?", lat, lng, id)
	return err
}

// =============================================================================
// INVOICES
// =============================================================================

// SaveInvoice inserts or updates an invoice. The dunning counter is NOT
// writable through this path; use IncrementCollectionLetters.
func (s *Store) SaveInvoice(ctx context.Context, inv billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO invoices (id, user_id, kind, tax_year, amount, status, issued_at, due_date, collection_letters_sent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			status = excluded.status,
			due_date = excluded.due_date
	`

	_, err := s.db.ExecContext(ctx, query,
		inv.ID, inv.UserID, string(inv.Kind), inv.TaxYear,
		inv.Amount.String(), string(inv.Status),
		inv.IssuedAt.Format(time.RFC3339), inv.DueDate.Format(time.RFC3339),
		inv.CollectionLettersSent,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// CreatePerformanceFeeInvoice inserts a performance-fee invoice, returning
// ErrDuplicateInvoice when one already exists for the user and tax year.
// This insert is the idempotency barrier for the eligibility cron.
func (s *Store) CreatePerformanceFeeInvoice(ctx context.Context, inv billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO invoices (id, user_id, kind, tax_year, amount, status, issued_at, due_date, collection_letters_sent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		inv.ID, inv.UserID, string(billing.KindPerformanceFee), inv.TaxYear,
		inv.Amount.String(), string(inv.Status),
		inv.IssuedAt.Format(time.RFC3339), inv.DueDate.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return billing.ErrDuplicateInvoice
	}
	return err
}

// HasPerformanceFeeInvoice reports whether any performance-fee invoice exists
// for the user.
func (s *Store) HasPerformanceFeeInvoice(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM invoices WHERE user_id = ? AND kind = ?",
		userID, string(billing.KindPerformanceFee),
	).Scan(&count)
	return count > 0, err
}

// GetInvoice retrieves an invoice by ID. Returns nil when not found.
func (s *Store) GetInvoice(ctx context.Context, id string) (*billing.Invoice, error) {
	invs, err := s.queryInvoices(ctx, invoiceSelect+" WHERE id = ?", id)
	if err != nil || len(invs) == 0 {
		return nil, err
	}
	return &invs[0], nil
}

// ListInvoicesByUser returns a user's invoices, newest first.
func (s *Store) ListInvoicesByUser(ctx context.Context, userID string) ([]billing.Invoice, error) {
	return s.queryInvoices(ctx, invoiceSelect+" WHERE user_id = ? ORDER BY issued_at DESC, id", userID)
}

// ListOverdueInvoices returns pending invoices past due at asOf, oldest due
// date first.
func (s *Store) ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]billing.Invoice, error) {
	return s.queryInvoices(ctx,
		invoiceSelect+" WHERE status = ? AND due_date < ? ORDER BY due_date, id",
		string(billing.InvoicePending), asOf.Format(time.RFC3339))
}

// IncrementCollectionLetters advances the dunning counter by exactly one, but
// only when the stored count still matches expectedSent. A mismatch means a
// concurrent run already advanced this invoice; the caller gets
// ErrConcurrentModification and must skip.
func (s *Store) IncrementCollectionLetters(ctx context.Context, invoiceID string, expectedSent int, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET collection_letters_sent = collection_letters_sent + 1,
		    last_collection_letter_sent_at = ?
		WHERE id = ? AND collection_letters_sent = ?`,
		sentAt.UTC().Format(time.RFC3339), invoiceID, expectedSent,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Distinguish a lost race from a missing invoice.
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM invoices WHERE id = ?", invoiceID).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return billing.ErrInvoiceNotFound
	}
	return billing.ErrConcurrentModification
}

// RecordCollectionNotice appends a dispatched-notice audit row.
func (s *Store) RecordCollectionNotice(ctx context.Context, n billing.CollectionNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collection_notices (id, invoice_id, tier, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		n.ID, n.InvoiceID, int(n.Tier),
		n.SentAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListNoticesByInvoice returns the notice audit trail for an invoice.
func (s *Store) ListNoticesByInvoice(ctx context.Context, invoiceID string) ([]billing.CollectionNotice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, invoice_id, tier, sent_at, created_at FROM collection_notices WHERE invoice_id = ? ORDER BY tier",
		invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notices []billing.CollectionNotice
	for rows.Next() {
		var n billing.CollectionNotice
		var tier int
		var sentAt, createdAt string
		if err := rows.Scan(&n.ID, &n.InvoiceID, &tier, &sentAt, &createdAt); err != nil {
			return nil, err
		}
		n.Tier = billing.NoticeTier(tier)
		n.SentAt, _ = time.Parse(time.RFC3339, sentAt)
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

const invoiceSelect = "SELECT id, user_id, kind, tax_year, amount, status, issued_at, due_date, collection_letters_sent, last_collection_letter_sent_at, created_at FROM invoices"

func (s *Store) queryInvoices(ctx context.Context, query string, args ...any) ([]billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []billing.Invoice
	for rows.Next() {
		var inv billing.Invoice
		var kind, amount, status, issuedAt, dueDate, createdAt string
		var lastSent sql.NullString
		if err := rows.Scan(&inv.ID, &inv.UserID, &kind, &inv.TaxYear, &amount, &status,
			&issuedAt, &dueDate, &inv.CollectionLettersSent, &lastSent, &createdAt); err != nil {
			return nil, err
		}
		inv.Kind = billing.InvoiceKind(kind)
		inv.Status = billing.InvoiceStatus(status)
		inv.Amount, _ = decimal.NewFromString(amount)
		inv.IssuedAt, _ = time.Parse(time.RFC3339, issuedAt)
		inv.DueDate, _ = time.Parse(time.RFC3339, dueDate)
		if lastSent.Valid {
			t, _ := time.Parse(time.RFC3339, lastSent.String)
			inv.LastCollectionLetterSentAt = &t
		}
		inv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

// =============================================================================
// ASSESSMENT REDUCTIONS (savings.Store interface)
// =============================================================================

// SaveReduction records a granted assessment reduction.
func (s *Store) SaveReduction(ctx context.Context, r savings.Reduction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO assessment_reductions (id, user_id, pin, tax_year, assessed_before, assessed_after, tax_rate, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.UserID, r.PIN, r.TaxYear,
		r.AssessedBefore.String(), r.AssessedAfter.String(), r.TaxRate.String(),
		r.RecordedAt.Format(time.RFC3339),
	)
	return err
}

// ListReductionsByUser returns a user's reductions, oldest tax year first.
func (s *Store) ListReductionsByUser(ctx context.Context, userID string) ([]savings.Reduction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, pin, tax_year, assessed_before, assessed_after, tax_rate, recorded_at FROM assessment_reductions WHERE user_id = ? ORDER BY tax_year, recorded_at",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reductions []savings.Reduction
	for rows.Next() {
		var r savings.Reduction
		var before, after, rate, recordedAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.PIN, &r.TaxYear, &before, &after, &rate, &recordedAt); err != nil {
			return nil, err
		}
		r.AssessedBefore, _ = decimal.NewFromString(before)
		r.AssessedAfter, _ = decimal.NewFromString(after)
		r.TaxRate, _ = decimal.NewFromString(rate)
		r.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt)
		reductions = append(reductions, r)
	}
	return reductions, rows.Err()
}

// =============================================================================
// JOB RUNS
// =============================================================================

// JobRun records one scheduled-job execution for audit and admin display.
type JobRun struct {
	ID          string
	Job         string
	Status      string // "running", "completed", "failed"
	Processed   int
	Succeeded   int
	Skipped     int
	Errored     int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// SaveJobRun inserts or updates a job run record.
func (s *Store) SaveJobRun(ctx context.Context, r JobRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO job_runs (id, job, status, processed, succeeded, skipped, errored, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			processed = excluded.processed,
			succeeded = excluded.succeeded,
			skipped = excluded.skipped,
			errored = excluded.errored,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	var completedAt *string
	if r.CompletedAt != nil {
		c := r.CompletedAt.Format(time.RFC3339)
		completedAt = &c
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Job, r.Status, r.Processed, r.Succeeded, r.Skipped, r.Errored, r.Error,
		r.StartedAt.Format(time.RFC3339), completedAt,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListJobRuns returns recent runs for a job (all jobs when job is empty),
// newest first.
func (s *Store) ListJobRuns(ctx context.Context, job string, limit int) ([]JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	query := "SELECT id, job, status, processed, succeeded, skipped, errored, error, started_at, completed_at, created_at FROM job_runs"
	var args []any
	if job != "" {
		query += " WHERE job = ?"
		args = append(args, job)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []JobRun
	for rows.Next() {
		var r JobRun
		var startedAt, createdAt string
		var completedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.Job, &r.Status, &r.Processed, &r.Succeeded,
			&r.Skipped, &r.Errored, &r.Error, &startedAt, &completedAt, &createdAt); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if completedAt.Valid {
			t, _ := time.Parse(time.RFC3339, completedAt.String)
			r.CompletedAt = &t
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data. Dev/test only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"collection_notices", "invoices", "assessment_reductions",
		"comparables", "appeals", "properties", "job_runs", "users",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
