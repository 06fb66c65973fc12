package analytics

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
	rollups *RollupWriter
}

func NewHandler(service *Service, rollups *RollupWriter) *Handler {
	return &Handler{service: service, rollups: rollups}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/analytics/simple", h.handleSimple).Methods(http.MethodGet)
	r.HandleFunc("/analytics/rollups", h.handleRollups).Methods(http.MethodGet)
}

func (h *Handler) handleSimple(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return
	}

	metrics, err := h.service.Simple(r.Context(), orgID, parseDays(r))
	if err != nil {
		logger.Log.WithError(err).Error("failed to compute metrics")
		http.Error(w, "failed to compute metrics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *Handler) handleRollups(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return
	}

	history, err := h.rollups.History(r.Context(), orgID, parseDays(r))
	if err != nil {
		logger.Log.WithError(err).Error("failed to read rollups")
		http.Error(w, "failed to read rollups", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rollups": history})
}

func parseDays(r *http.Request) int {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 30
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return 30
}

func orgFrom(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Org-ID")
	if raw == "" {
		return uuid.Nil, errors.New("missing org header")
	}
	return uuid.Parse(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
