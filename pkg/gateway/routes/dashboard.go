package routes

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	gatewayauth "github.com/freightdesk-ai/platform/pkg/gateway/auth"
	"github.com/freightdesk-ai/platform/pkg/gateway/middleware"
	"github.com/freightdesk-ai/platform/pkg/load"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// DashboardHandler serves the ops aggregates the home screen polls. It
// reads the shared tables directly rather than fanning out to every
// service for a handful of counts.
type DashboardHandler struct {
	db          *gorm.DB
	tokenSigner *gatewayauth.JWTManager
}

type OverviewMetrics struct {
	CallsToday          int   `json:"callsToday"`
	CallsInFlight       int   `json:"callsInFlight"`
	CallsFailedToday    int   `json:"callsFailedToday"`
	PendingExtractions  int   `json:"pendingExtractions"`
	ActiveLoads         int   `json:"activeLoads"`
	NeedsCarrier        int   `json:"needsCarrier"`
	InTransit           int   `json:"inTransit"`
	DeliveredThisWeek   int   `json:"deliveredThisWeek"`
	MarginThisWeekCents int64 `json:"marginThisWeekCents"`
}

type PipelineStatus struct {
	ID        string    `json:"id"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
	Details   string    `json:"details"`
}

func NewDashboardHandler(db *gorm.DB, tokenSigner *gatewayauth.JWTManager) *DashboardHandler {
	return &DashboardHandler{db: db, tokenSigner: tokenSigner}
}

func (h *DashboardHandler) Register(r *mux.Router) {
	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(h.tokenSigner))
	protected.HandleFunc("/dashboard/overview", h.handleOverview).Methods(http.MethodGet)
	protected.HandleFunc("/dashboard/pipelines", h.handlePipelines).Methods(http.MethodGet)
	protected.HandleFunc("/dashboard/alerts", h.handleAlerts).Methods(http.MethodGet)
}

func (h *DashboardHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	metrics, err := h.collectMetrics(r, claims.OrgID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to collect overview metrics")
		http.Error(w, "failed to collect overview metrics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, metrics)
}

// handlePipelines reduces the overview counts to a health strip: one row
// per stage of the call-to-load flow.
func (h *DashboardHandler) handlePipelines(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	metrics, err := h.collectMetrics(r, claims.OrgID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to collect pipeline status")
		http.Error(w, "failed to collect pipeline status", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	statuses := []PipelineStatus{
		{
			ID:        "intake",
			Stage:     "Calls ➝ Transcripts",
			Status:    deriveStatus(metrics.CallsFailedToday < 3, metrics.CallsInFlight < 20),
			UpdatedAt: now,
			Details:   formatDetails("%d in flight • %d failed today", metrics.CallsInFlight, metrics.CallsFailedToday),
		},
		{
			ID:        "extraction",
			Stage:     "Transcripts ➝ Load drafts",
			Status:    deriveStatus(metrics.PendingExtractions < 10, metrics.CallsToday >= 0),
			UpdatedAt: now,
			Details:   formatDetails("%d extractions awaiting review", metrics.PendingExtractions),
		},
		{
			ID:        "dispatch",
			Stage:     "Loads ➝ Carriers",
			Status:    deriveStatus(metrics.NeedsCarrier < 10, metrics.ActiveLoads >= metrics.NeedsCarrier),
			UpdatedAt: now,
			Details:   formatDetails("%d loads need a carrier • %d in transit", metrics.NeedsCarrier, metrics.InTransit),
		},
	}

	writeJSON(w, statuses)
}

func (h *DashboardHandler) collectMetrics(r *http.Request, orgID uuid.UUID) (OverviewMetrics, error) {
	metrics := OverviewMetrics{}
	db := h.db.WithContext(r.Context())

	var callsToday sql.NullInt64
	if err := db.Raw(`
		SELECT COUNT(*)
		FROM calls
		WHERE org_id = ? AND DATE(created_at) = CURRENT_DATE
	`, orgID).Scan(&callsToday).Error; err != nil {
		return metrics, err
	}
	metrics.CallsToday = int(callsToday.Int64)

	var inFlight sql.NullInt64
	if err := db.Raw(`
		SELECT COUNT(*)
		FROM calls
		WHERE org_id = ? AND status IN ('processing', 'transcribing', 'extracting')
	`, orgID).Scan(&inFlight).Error; err != nil {
		return metrics, err
	}
	metrics.CallsInFlight = int(inFlight.Int64)

	var failedToday sql.NullInt64
	if err := db.Raw(`
		SELECT COUNT(*)
		FROM calls
		WHERE org_id = ? AND status = 'failed' AND DATE(updated_at) = CURRENT_DATE
	`, orgID).Scan(&failedToday).Error; err != nil {
		return metrics, err
	}
	metrics.CallsFailedToday = int(failedToday.Int64)

	var pending sql.NullInt64
	if err := db.Raw(`
		SELECT COUNT(*)
		FROM call_extractions
		JOIN calls ON calls.id = call_extractions.call_id
		WHERE calls.org_id = ? AND call_extractions.load_id IS NULL
	`, orgID).Scan(&pending).Error; err != nil {
		return metrics, err
	}
	metrics.PendingExtractions = int(pending.Int64)

	var active sql.NullInt64
	if err := db.Raw(`
		SELECT COUNT(*)
		FROM loads
		WHERE org_id = ? AND status NOT IN ('completed', 'cancelled')
	`, orgID).Scan(&active).Error; err != nil {
		return metrics, err
	}
	metrics.ActiveLoads = int(active.Int64)

	// Mirrors load.NeedsCarrier: a quoted load with no carrier attached
	// counts the same as one parked in needs_carrier.
	var needsCarrier sql.NullInt64
	if err := db.Raw(`
		SELECT COUNT(*)
		FROM loads
		WHERE org_id = ? AND carrier_id IS NULL AND status IN ?
	`, orgID, load.NeedsCarrierStatuses()).Scan(&needsCarrier).Error; err != nil {
		return metrics, err
	}
	metrics.NeedsCarrier = int(needsCarrier.Int64)

	var inTransit sql.NullInt64
	if err := db.Raw(`
		SELECT COUNT(*)
		FROM loads
		WHERE org_id = ? AND status = 'in_transit'
	`, orgID).Scan(&inTransit).Error; err != nil {
		return metrics, err
	}
	metrics.InTransit = int(inTransit.Int64)

	var delivered sql.NullInt64
	if err := db.Raw(`
		SELECT COUNT(*)
		FROM loads
		WHERE org_id = ? AND status IN ('delivered', 'completed')
			AND updated_at > NOW() - INTERVAL '7 days'
	`, orgID).Scan(&delivered).Error; err != nil {
		return metrics, err
	}
	metrics.DeliveredThisWeek = int(delivered.Int64)

	var margin sql.NullInt64
	if err := db.Raw(`
		SELECT COALESCE(SUM(shipper_rate_cents - carrier_rate_cents), 0)
		FROM loads
		WHERE org_id = ? AND status IN ('delivered', 'completed')
			AND updated_at > NOW() - INTERVAL '7 days'
	`, orgID).Scan(&margin).Error; err != nil {
		return metrics, err
	}
	metrics.MarginThisWeekCents = margin.Int64

	return metrics, nil
}

type Alert struct {
	ID           string `json:"id"`
	CustomerName string `json:"customerName"`
	SalesRep     string `json:"salesRep"`
	Status       string `json:"status"`
	Message      string `json:"message"`
	UpdatedAt    string `json:"updatedAt"`
}

type AlertSummary struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}

type AlertsResponse struct {
	Summary AlertSummary `json:"summary"`
	Items   []Alert      `json:"items"`
}

// handleAlerts surfaces what needs a human: failed calls plus loads
// sitting without a carrier.
func (h *DashboardHandler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	db := h.db.WithContext(r.Context())

	summary := AlertSummary{}
	if err := db.Raw(`
		SELECT
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS critical,
			SUM(CASE WHEN status IN ('processing', 'transcribing', 'extracting') THEN 1 ELSE 0 END) AS warning,
			SUM(CASE WHEN status = 'completed' AND DATE(updated_at) = CURRENT_DATE THEN 1 ELSE 0 END) AS info
		FROM calls
		WHERE org_id = ? AND updated_at > NOW() - INTERVAL '7 days'
	`, claims.OrgID).Scan(&summary).Error; err != nil {
		logger.Log.WithError(err).Error("failed to summarize alerts")
		http.Error(w, "failed to fetch alerts", http.StatusInternalServerError)
		return
	}

	var rows []struct {
		ID           string `gorm:"column:id"`
		CustomerName string `gorm:"column:customer_name"`
		SalesRep     string `gorm:"column:sales_rep"`
		Status       string `gorm:"column:status"`
		Message      string `gorm:"column:status_message"`
		UpdatedAt    string `gorm:"column:updated_at"`
	}
	if err := db.Raw(`
		SELECT id, customer_name, sales_rep, status, COALESCE(status_message, '') AS status_message,
			TO_CHAR(updated_at, 'YYYY-MM-DD"T"HH24:MI:SSZ') AS updated_at
		FROM calls
		WHERE org_id = ? AND status = 'failed'
		ORDER BY updated_at DESC
		LIMIT 25
	`, claims.OrgID).Scan(&rows).Error; err != nil {
		logger.Log.WithError(err).Error("failed to load alert rows")
		http.Error(w, "failed to fetch alerts", http.StatusInternalServerError)
		return
	}

	items := make([]Alert, 0, len(rows))
	for _, row := range rows {
		items = append(items, Alert{
			ID:           row.ID,
			CustomerName: row.CustomerName,
			SalesRep:     row.SalesRep,
			Status:       row.Status,
			Message:      row.Message,
			UpdatedAt:    row.UpdatedAt,
		})
	}

	writeJSON(w, AlertsResponse{Summary: summary, Items: items})
}

func deriveStatus(conditionA, conditionB bool) string {
	switch {
	case conditionA && conditionB:
		return "healthy"
	case conditionA || conditionB:
		return "degraded"
	default:
		return "failing"
	}
}

func formatDetails(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}
