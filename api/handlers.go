/*
handlers.go - HTTP handler implementations

PURPOSE:
  Implements the request handlers behind the router. Handlers parse and
  validate input, call the domain packages, and translate results into DTOs.
  Business decisions live in billing/, savings/, calendar/ and appeal/;
  handlers only orchestrate.

MUTATION GUARDS:
  UpdateAppealProperty enforces the property-change gate: once an appeal is
  past PENDING_FILING the property reference is frozen and the handler
  answers 409 Conflict. The gate is checked here, before the store is
  touched.

ERROR MAPPING:
  400 malformed input        404 unknown entity        409 state conflict
  500 store or collaborator failure

SEE ALSO:
  - dto.go: Request/response types
  - cron.go: Scheduled-job handlers sharing this Handler
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/overtaxed/appeal-engine/appeal"
	"github.com/overtaxed/appeal-engine/billing"
	"github.com/overtaxed/appeal-engine/calendar"
	"github.com/overtaxed/appeal-engine/jobs"
	"github.com/overtaxed/appeal-engine/savings"
	"github.com/overtaxed/appeal-engine/store/sqlite"
)

// dateLayout is the wire format for calendar dates in request bodies.
const dateLayout = "2006-01-02"

// Mailer is the outbound email surface the API and jobs need.
type Mailer interface {
	billing.Notifier
	SendDeadlineReminder(ctx context.Context, userID, pin string, d calendar.Deadline) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Savings  billing.SavingsSource
	Mailer   Mailer
	Geocoder jobs.Geocoder

	// Clock overrides time.Now in tests. Nil means real time.
	Clock func() time.Time
}

// NewHandler creates a handler with all dependencies wired.
func NewHandler(store *sqlite.Store, src billing.SavingsSource, mailer Mailer, geocoder jobs.Geocoder) *Handler {
	return &Handler{Store: store, Savings: src, Mailer: mailer, Geocoder: geocoder}
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details ...string) {
	resp := ErrorResponse{Error: msg}
	if len(details) > 0 {
		resp.Details = details[0]
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser handles POST /api/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.ID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "id and email are required")
		return
	}

	plan := billing.Plan(req.Plan)
	if plan != billing.PlanUpfront3Yr && plan != billing.PlanInstallment {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown plan %q", req.Plan))
		return
	}

	started, err := time.Parse(dateLayout, req.PlanStartedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "plan_started_at must be YYYY-MM-DD", err.Error())
		return
	}

	u := sqlite.User{
		ID: req.ID, Name: req.Name, Email: req.Email,
		Plan: plan, PlanStartedAt: started,
	}
	if err := h.Store.SaveUser(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save user", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// GetUser handles GET /api/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Store.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user", err.Error())
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// ListUsers handles GET /api/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users", err.Error())
		return
	}

	out := make([]UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetUserSavings handles GET /api/users/{id}/savings.
func (h *Handler) GetUserSavings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.Savings.SavingsForUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute savings", err.Error())
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "no qualifying tax reduction recorded")
		return
	}

	b := res.Breakdown
	writeJSON(w, http.StatusOK, SavingsDTO{
		TaxYear:          b.TaxYear,
		AssessedBefore:   b.AssessedBefore.StringFixed(2),
		AssessedAfter:    b.AssessedAfter.StringFixed(2),
		FirstYearSavings: b.FirstYearSavings.StringFixed(2),
		ProjectedTotal:   b.ProjectedTotal.StringFixed(2),
		PaymentOption:    string(res.PaymentOption),
	})
}

// ListUserInvoices handles GET /api/users/{id}/invoices.
func (h *Handler) ListUserInvoices(w http.ResponseWriter, r *http.Request) {
	invs, err := h.Store.ListInvoicesByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list invoices", err.Error())
		return
	}

	out := make([]InvoiceDTO, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvoiceDTO(inv))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// PROPERTIES
// =============================================================================

// CreateProperty handles POST /api/properties. The township is normalized at
// the door so every stored key matches the deadline table's shape.
func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	var req CreatePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.ID == "" || req.UserID == "" || req.PIN == "" {
		writeError(w, http.StatusBadRequest, "id, user_id and pin are required")
		return
	}

	u, err := h.Store.GetUser(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user", err.Error())
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	p := sqlite.Property{
		ID: req.ID, UserID: req.UserID, PIN: req.PIN,
		Address:  req.Address,
		Township: calendar.Normalize(req.Township),
	}
	if err := h.Store.SaveProperty(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save property", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toPropertyDTO(p))
}

// GetProperty handles GET /api/properties/{id}.
func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProperty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load property", err.Error())
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}
	writeJSON(w, http.StatusOK, toPropertyDTO(*p))
}

// ListUserProperties handles GET /api/users/{id}/properties.
func (h *Handler) ListUserProperties(w http.ResponseWriter, r *http.Request) {
	props, err := h.Store.ListPropertiesByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list properties", err.Error())
		return
	}

	out := make([]PropertyDTO, 0, len(props))
	for _, p := range props {
		out = append(out, toPropertyDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// APPEALS
// =============================================================================

// CreateAppeal handles POST /api/appeals. New appeals start in DRAFT; owner,
// PIN and township are denormalized from the property.
func (h *Handler) CreateAppeal(w http.ResponseWriter, r *http.Request) {
	var req CreateAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.ID == "" || req.PropertyID == "" || req.TaxYear == 0 {
		writeError(w, http.StatusBadRequest, "id, property_id and tax_year are required")
		return
	}

	p, err := h.Store.GetProperty(r.Context(), req.PropertyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load property", err.Error())
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}

	a := appeal.Appeal{
		ID: req.ID, UserID: p.UserID, PropertyID: p.ID,
		PIN: p.PIN, Township: p.Township,
		TaxYear: req.TaxYear, Status: appeal.StatusDraft,
	}
	if err := h.Store.SaveAppeal(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save appeal", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toAppealDTO(a))
}

// GetAppeal handles GET /api/appeals/{id}.
func (h *Handler) GetAppeal(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAppeal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load appeal", err.Error())
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "appeal not found")
		return
	}
	writeJSON(w, http.StatusOK, toAppealDTO(*a))
}

// ListUserAppeals handles GET /api/users/{id}/appeals.
func (h *Handler) ListUserAppeals(w http.ResponseWriter, r *http.Request) {
	appeals, err := h.Store.ListAppealsByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list appeals", err.Error())
		return
	}

	out := make([]AppealDTO, 0, len(appeals))
	for _, a := range appeals {
		out = append(out, toAppealDTO(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateAppealStatus handles POST /api/appeals/{id}/status.
func (h *Handler) UpdateAppealStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateAppealStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	status := appeal.Status(req.Status)
	if !appeal.Known(status) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
		return
	}

	a, err := h.Store.GetAppeal(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load appeal", err.Error())
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "appeal not found")
		return
	}

	if err := h.Store.UpdateAppealStatus(r.Context(), id, status, h.now()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update status", err.Error())
		return
	}

	a, err = h.Store.GetAppeal(r.Context(), id)
	if err != nil || a == nil {
		writeError(w, http.StatusInternalServerError, "failed to reload appeal")
		return
	}
	writeJSON(w, http.StatusOK, toAppealDTO(*a))
}

// UpdateAppealProperty handles PUT /api/appeals/{id}/property. The property
// reference is frozen once the appeal leaves the pre-filing states.
func (h *Handler) UpdateAppealProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateAppealPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	a, err := h.Store.GetAppeal(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load appeal", err.Error())
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "appeal not found")
		return
	}

	if !appeal.PropertyChangeable(a.Status) {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("appeal is %s; the property can no longer be changed", a.Status))
		return
	}

	p, err := h.Store.GetProperty(r.Context(), req.PropertyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load property", err.Error())
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}
	if p.UserID != a.UserID {
		writeError(w, http.StatusBadRequest, "property belongs to a different user")
		return
	}

	if err := h.Store.UpdateAppealProperty(r.Context(), id, p.ID, p.PIN, p.Township, h.now()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update appeal", err.Error())
		return
	}

	a, err = h.Store.GetAppeal(r.Context(), id)
	if err != nil || a == nil {
		writeError(w, http.StatusInternalServerError, "failed to reload appeal")
		return
	}
	writeJSON(w, http.StatusOK, toAppealDTO(*a))
}

// =============================================================================
// COMPARABLES
// =============================================================================

// AddComparable handles POST /api/appeals/{id}/comparables.
func (h *Handler) AddComparable(w http.ResponseWriter, r *http.Request) {
	appealID := chi.URLParam(r, "id")

	var req AddComparableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	assessed, err := decimal.NewFromString(req.AssessedValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "assessed_value must be a decimal string", err.Error())
		return
	}

	a, err := h.Store.GetAppeal(r.Context(), appealID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load appeal", err.Error())
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "appeal not found")
		return
	}

	c := appeal.Comparable{
		ID: req.ID, AppealID: appealID, PIN: req.PIN,
		Address: req.Address, AssessedValue: assessed,
	}
	if err := h.Store.SaveComparable(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save comparable", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toComparableDTO(c))
}

// ListComparables handles GET /api/appeals/{id}/comparables.
func (h *Handler) ListComparables(w http.ResponseWriter, r *http.Request) {
	comps, err := h.Store.ListComparablesByAppeal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list comparables", err.Error())
		return
	}

	out := make([]ComparableDTO, 0, len(comps))
	for _, c := range comps {
		out = append(out, toComparableDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// EnrichComparables handles POST /api/appeals/{id}/comparables/enrich: geocode
// every comparable on the appeal and persist the coordinates. Per-item
// failures are counted but do not fail the request.
func (h *Handler) EnrichComparables(w http.ResponseWriter, r *http.Request) {
	appealID := chi.URLParam(r, "id")

	comps, err := h.Store.ListComparablesByAppeal(r.Context(), appealID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list comparables", err.Error())
		return
	}

	results := jobs.EnrichComparables(r.Context(), h.Geocoder, comps)

	resp := EnrichResponse{}
	for _, res := range results {
		if res.Err != nil {
			resp.Failed++
			continue
		}
		if err := h.Store.UpdateComparableLocation(r.Context(), res.ComparableID,
			res.Location.Latitude, res.Location.Longitude); err != nil {
			resp.Failed++
			continue
		}
		resp.Updated++
	}

	comps, err = h.Store.ListComparablesByAppeal(r.Context(), appealID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload comparables", err.Error())
		return
	}
	for _, c := range comps {
		resp.Comparables = append(resp.Comparables, toComparableDTO(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// TOWNSHIPS
// =============================================================================

// ListTownships handles GET /api/townships.
func (h *Handler) ListTownships(w http.ResponseWriter, r *http.Request) {
	keys := calendar.Townships()

	out := make([]DeadlineDTO, 0, len(keys))
	for _, key := range keys {
		if d, ok := calendar.DeadlineFor(key); ok {
			out = append(out, toDeadlineDTO(d))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTownshipDeadline handles GET /api/townships/{name}. The name is accepted
// in any input shape; normalization happens inside the lookup.
func (h *Handler) GetTownshipDeadline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	d, ok := calendar.DeadlineFor(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no deadline data for township %q", name))
		return
	}
	writeJSON(w, http.StatusOK, toDeadlineDTO(d))
}

// ActiveTownships handles GET /api/townships/active: which townships are in
// their monitoring window today.
func (h *Handler) ActiveTownships(w http.ResponseWriter, r *http.Request) {
	today := calendar.DateOf(h.now())

	active := calendar.ActiveTownships(today)
	keys := make([]string, 0, len(active))
	for k := range active {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writeJSON(w, http.StatusOK, ActiveTownshipsDTO{
		AsOf:     today.String(),
		InSeason: calendar.InReassessmentSeason(today),
		Active:   keys,
	})
}

// =============================================================================
// INVOICES
// =============================================================================

// GetInvoice handles GET /api/invoices/{id}.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Store.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load invoice", err.Error())
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv))
}

// ListInvoiceNotices handles GET /api/invoices/{id}/notices: the dunning
// audit trail.
func (h *Handler) ListInvoiceNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := h.Store.ListNoticesByInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notices", err.Error())
		return
	}

	out := make([]NoticeDTO, 0, len(notices))
	for _, n := range notices {
		out = append(out, NoticeDTO{
			ID: n.ID, InvoiceID: n.InvoiceID,
			Tier: int(n.Tier), TierName: n.Tier.String(),
			SentAt: n.SentAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// ADMIN
// =============================================================================

// CreateInvoice handles POST /api/admin/invoices: manual invoice entry, used
// for subscription billing and backfills.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	kind := billing.InvoiceKind(req.Kind)
	if kind != billing.KindSubscription && kind != billing.KindPerformanceFee {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown invoice kind %q", req.Kind))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a decimal string", err.Error())
		return
	}

	due, err := time.Parse(dateLayout, req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD", err.Error())
		return
	}

	inv := billing.Invoice{
		ID: req.ID, UserID: req.UserID, Kind: kind, TaxYear: req.TaxYear,
		Amount: amount, Status: billing.InvoicePending,
		IssuedAt: h.now(), DueDate: due,
	}
	if err := h.Store.SaveInvoice(r.Context(), inv); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save invoice", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

// CreateReduction handles POST /api/admin/reductions: record a granted
// assessment reduction. This is what makes a user start showing savings.
func (h *Handler) CreateReduction(w http.ResponseWriter, r *http.Request) {
	var req CreateReductionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	before, err1 := decimal.NewFromString(req.AssessedBefore)
	after, err2 := decimal.NewFromString(req.AssessedAfter)
	rate, err3 := decimal.NewFromString(req.TaxRate)
	if err1 != nil || err2 != nil || err3 != nil {
		writeError(w, http.StatusBadRequest, "assessed_before, assessed_after and tax_rate must be decimal strings")
		return
	}

	red := savings.Reduction{
		ID: req.ID, UserID: req.UserID, PIN: req.PIN, TaxYear: req.TaxYear,
		AssessedBefore: before, AssessedAfter: after, TaxRate: rate,
		RecordedAt: h.now(),
	}
	if err := h.Store.SaveReduction(r.Context(), red); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save reduction", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": red.ID})
}

// ListJobRuns handles GET /api/admin/job-runs?job=collections.
func (h *Handler) ListJobRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListJobRuns(r.Context(), r.URL.Query().Get("job"), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list job runs", err.Error())
		return
	}

	out := make([]JobRunDTO, 0, len(runs))
	for _, run := range runs {
		dto := JobRunDTO{
			ID: run.ID, Job: run.Job, Status: run.Status,
			Processed: run.Processed, Succeeded: run.Succeeded,
			Skipped: run.Skipped, Errored: run.Errored,
			Error:     run.Error,
			StartedAt: run.StartedAt.Format(time.RFC3339),
		}
		if run.CompletedAt != nil {
			dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

// ResetDatabase handles POST /api/admin/reset. Dev only.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset database", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// DTO MAPPING
// =============================================================================

func toUserDTO(u sqlite.User) UserDTO {
	dto := UserDTO{
		ID: u.ID, Name: u.Name, Email: u.Email,
		Plan:          string(u.Plan),
		PlanStartedAt: u.PlanStartedAt.Format(dateLayout),
	}
	if !u.CreatedAt.IsZero() {
		dto.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toPropertyDTO(p sqlite.Property) PropertyDTO {
	dto := PropertyDTO{
		ID: p.ID, UserID: p.UserID, PIN: p.PIN,
		Address: p.Address, Township: p.Township,
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toAppealDTO(a appeal.Appeal) AppealDTO {
	dto := AppealDTO{
		ID: a.ID, UserID: a.UserID, PropertyID: a.PropertyID,
		PIN: a.PIN, Township: a.Township, TaxYear: a.TaxYear,
		Status:    string(a.Status),
		Submitted: appeal.Submitted(a.Status),
	}
	if a.FiledAt != nil {
		dto.FiledAt = a.FiledAt.Format(time.RFC3339)
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = a.CreatedAt.Format(time.RFC3339)
		dto.UpdatedAt = a.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toComparableDTO(c appeal.Comparable) ComparableDTO {
	return ComparableDTO{
		ID: c.ID, AppealID: c.AppealID, PIN: c.PIN,
		Address:       c.Address,
		AssessedValue: c.AssessedValue.StringFixed(2),
		Latitude:      c.Latitude, Longitude: c.Longitude,
	}
}

func toInvoiceDTO(inv billing.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID: inv.ID, UserID: inv.UserID,
		Kind: string(inv.Kind), TaxYear: inv.TaxYear,
		Amount: inv.Amount.StringFixed(2), Status: string(inv.Status),
		IssuedAt: inv.IssuedAt.Format(time.RFC3339),
		DueDate:  inv.DueDate.Format(time.RFC3339),

		CollectionLettersSent: inv.CollectionLettersSent,
	}
	if inv.LastCollectionLetterSentAt != nil {
		dto.LastLetterSentAt = inv.LastCollectionLetterSentAt.Format(time.RFC3339)
	}
	return dto
}

func toDeadlineDTO(d calendar.Deadline) DeadlineDTO {
	return DeadlineDTO{
		Township:     d.Township,
		NoticeDate:   d.NoticeDate.String(),
		LastFileDate: d.LastFileDate.String(),
		CalendarURL:  d.CalendarURL,
	}
}
