/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - cron.go: RunSummary returned by the cron endpoints
*/
package api

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Plan          string `json:"plan"`
	PlanStartedAt string `json:"plan_started_at"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type CreateUserRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Plan          string `json:"plan"`
	PlanStartedAt string `json:"plan_started_at"` // YYYY-MM-DD
}

// SavingsDTO reports realized savings and the recommended payment option.
type SavingsDTO struct {
	TaxYear          int    `json:"tax_year"`
	AssessedBefore   string `json:"assessed_before"`
	AssessedAfter    string `json:"assessed_after"`
	FirstYearSavings string `json:"first_year_savings"`
	ProjectedTotal   string `json:"projected_total"`
	PaymentOption    string `json:"payment_option"`
}

// =============================================================================
// PROPERTIES
// =============================================================================

type PropertyDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	PIN       string `json:"pin"`
	Address   string `json:"address"`
	Township  string `json:"township"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreatePropertyRequest struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	PIN      string `json:"pin"`
	Address  string `json:"address"`
	Township string `json:"township"`
}

// =============================================================================
// APPEALS
// =============================================================================

type AppealDTO struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	PropertyID string `json:"property_id"`
	PIN        string `json:"pin"`
	Township   string `json:"township"`
	TaxYear    int    `json:"tax_year"`
	Status     string `json:"status"`
	Submitted  bool   `json:"submitted"`
	FiledAt    string `json:"filed_at,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

type CreateAppealRequest struct {
	ID         string `json:"id"`
	PropertyID string `json:"property_id"`
	TaxYear    int    `json:"tax_year"`
}

type UpdateAppealStatusRequest struct {
	Status string `json:"status"`
}

type UpdateAppealPropertyRequest struct {
	PropertyID string `json:"property_id"`
}

type ComparableDTO struct {
	ID            string  `json:"id"`
	AppealID      string  `json:"appeal_id"`
	PIN           string  `json:"pin"`
	Address       string  `json:"address"`
	AssessedValue string  `json:"assessed_value"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

type AddComparableRequest struct {
	ID            string `json:"id"`
	PIN           string `json:"pin"`
	Address       string `json:"address"`
	AssessedValue string `json:"assessed_value"`
}

// EnrichResponse reports a geocoding pass over an appeal's comparables.
type EnrichResponse struct {
	Updated     int             `json:"updated"`
	Failed      int             `json:"failed"`
	Comparables []ComparableDTO `json:"comparables"`
}

// =============================================================================
// INVOICES
// =============================================================================

type InvoiceDTO struct {
	ID                    string `json:"id"`
	UserID                string `json:"user_id"`
	Kind                  string `json:"kind"`
	TaxYear               int    `json:"tax_year"`
	Amount                string `json:"amount"`
	Status                string `json:"status"`
	IssuedAt              string `json:"issued_at"`
	DueDate               string `json:"due_date"`
	CollectionLettersSent int    `json:"collection_letters_sent"`
	LastLetterSentAt      string `json:"last_collection_letter_sent_at,omitempty"`
}

type CreateInvoiceRequest struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	TaxYear int    `json:"tax_year"`
	Amount  string `json:"amount"`
	DueDate string `json:"due_date"` // YYYY-MM-DD
}

type NoticeDTO struct {
	ID        string `json:"id"`
	InvoiceID string `json:"invoice_id"`
	Tier      int    `json:"tier"`
	TierName  string `json:"tier_name"`
	SentAt    string `json:"sent_at"`
}

// CreateReductionRequest records a granted assessment reduction.
type CreateReductionRequest struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	PIN            string `json:"pin"`
	TaxYear        int    `json:"tax_year"`
	AssessedBefore string `json:"assessed_before"`
	AssessedAfter  string `json:"assessed_after"`
	TaxRate        string `json:"tax_rate"`
}

// =============================================================================
// TOWNSHIPS
// =============================================================================

type DeadlineDTO struct {
	Township     string `json:"township"`
	NoticeDate   string `json:"notice_date"`
	LastFileDate string `json:"last_file_date"`
	CalendarURL  string `json:"calendar_url"`
}

type ActiveTownshipsDTO struct {
	AsOf     string   `json:"as_of"`
	InSeason bool     `json:"in_season"`
	Active   []string `json:"active"`
}

// =============================================================================
// JOB RUNS
// =============================================================================

type JobRunDTO struct {
	ID          string `json:"id"`
	Job         string `json:"job"`
	Status      string `json:"status"`
	Processed   int    `json:"processed"`
	Succeeded   int    `json:"succeeded"`
	Skipped     int    `json:"skipped"`
	Errored     int    `json:"errored"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}
