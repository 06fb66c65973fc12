package carrier

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/carriers", h.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/carriers", h.handleCreate).Methods(http.MethodPost)
	// Registered ahead of the {id} routes so the literal path wins.
	r.HandleFunc("/carriers/recent-searches", h.handleRecentSearches).Methods(http.MethodGet)
	r.HandleFunc("/carriers/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/carriers/{id}", h.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/carriers/{id}", h.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/carriers/{id}/verify", h.handleVerify).Methods(http.MethodPost)
	r.HandleFunc("/shippers", h.handleListShippers).Methods(http.MethodGet)
	r.HandleFunc("/shippers", h.handleCreateShipper).Methods(http.MethodPost)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	result, err := h.service.Search(r.Context(), orgID, query.Get("q"), parseInt(query.Get("page"), 1), parseInt(query.Get("per_page"), 25))
	if err != nil {
		logger.Log.WithError(err).Error("failed to search carriers")
		http.Error(w, "failed to search carriers", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return
	}

	var req models.CreateCarrierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	created, err := h.service.Create(r.Context(), orgID, req)
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		logger.Log.WithError(err).Error("failed to create carrier")
		http.Error(w, "failed to create carrier", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"carrier": created})
}

func (h *Handler) handleRecentSearches(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"searches": h.service.RecentSearches(r.Context(), orgID)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	orgID, carrierID, ok := carrierScope(w, r)
	if !ok {
		return
	}

	carrier, err := h.service.Get(r.Context(), orgID, carrierID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "carrier not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to get carrier")
		http.Error(w, "failed to get carrier", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"carrier": carrier})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	orgID, carrierID, ok := carrierScope(w, r)
	if !ok {
		return
	}

	var req models.UpdateCarrierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	updated, err := h.service.Update(r.Context(), orgID, carrierID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "carrier not found", http.StatusNotFound)
		case IsValidationError(err):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			logger.Log.WithError(err).Error("failed to update carrier")
			http.Error(w, "failed to update carrier", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"carrier": updated})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	orgID, carrierID, ok := carrierScope(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), orgID, carrierID); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "carrier not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to delete carrier")
		http.Error(w, "failed to delete carrier", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	orgID, carrierID, ok := carrierScope(w, r)
	if !ok {
		return
	}

	snapshot, err := h.service.Verify(r.Context(), orgID, carrierID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "carrier not found", http.StatusNotFound)
		case IsValidationError(err), errors.Is(err, ErrNoFMCSARecord):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			logger.Log.WithError(err).Error("fmcsa verification failed")
			http.Error(w, "fmcsa verification failed", http.StatusBadGateway)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"verification": snapshot})
}

func (h *Handler) handleListShippers(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return
	}

	shippers, err := h.service.ListShippers(r.Context(), orgID, parseInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		logger.Log.WithError(err).Error("failed to list shippers")
		http.Error(w, "failed to list shippers", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"shippers": shippers})
}

func (h *Handler) handleCreateShipper(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return
	}

	var req models.CreateShipperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateShipper(r.Context(), orgID, req)
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		logger.Log.WithError(err).Error("failed to create shipper")
		http.Error(w, "failed to create shipper", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"shipper": created})
}

func carrierScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	carrierID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid carrier id", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, carrierID, true
}

func orgFrom(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Org-ID")
	if raw == "" {
		return uuid.Nil, errors.New("missing org header")
	}
	return uuid.Parse(raw)
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
