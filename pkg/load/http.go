package load

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
	r.HandleFunc("/loads", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/loads", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/loads/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/loads/{id}", h.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/loads/{id}", h.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/loads/{id}/status", h.handleStatus).Methods(http.MethodPatch)
	r.HandleFunc("/loads/{id}/history", h.handleHistory).Methods(http.MethodGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	status := query.Get("status")
	if status != "" && !IsValidStatus(status) {
		http.Error(w, "unknown status filter", http.StatusBadRequest)
		return
	}
	pickup, err := ParseDay(query.Get("pickup_date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	delivery, err := ParseDay(query.Get("delivery_date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loads, err := h.service.List(r.Context(), orgID, ListFilter{
		Status:       status,
		PickupDate:   pickup,
		DeliveryDate: delivery,
		Limit:        parseLimit(r, 50),
	})
	if err != nil {
		logger.Log.WithError(err).Error("failed to list loads")
		http.Error(w, "failed to list loads", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"loads": loads})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return
	}

	var req models.CreateLoadRequest
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
		logger.Log.WithError(err).Error("failed to create load")
		http.Error(w, "failed to create load", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	orgID, loadID, ok := loadScope(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Detail(r.Context(), orgID, loadID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "load not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to get load")
		http.Error(w, "failed to get load", http.StatusInternalServerError)
		return
	}

	payload := map[string]interface{}{
		"load":              detail.Load,
		"statusTransitions": detail.Transitions,
		"statusLabel":       DisplayLabel(detail.Load),
		"needsCarrier":      NeedsCarrier(detail.Load),
	}
	if detail.AssociatedCall != nil {
		payload["associatedCall"] = detail.AssociatedCall
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	orgID, loadID, ok := loadScope(w, r)
	if !ok {
		return
	}

	var req models.UpdateLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	updated, err := h.service.Update(r.Context(), orgID, loadID, req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "load not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to update load")
		http.Error(w, "failed to update load", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	orgID, loadID, ok := loadScope(w, r)
	if !ok {
		return
	}

	var req models.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	actor := r.Header.Get("X-User-Email")
	if actor == "" {
		actor = "api"
	}

	updated, err := h.service.UpdateStatus(r.Context(), orgID, loadID, req, actor)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "load not found", http.StatusNotFound)
		case IsTransitionError(err):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
		default:
			logger.Log.WithError(err).Error("failed to update load status")
			http.Error(w, "failed to update load status", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	orgID, loadID, ok := loadScope(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), orgID, loadID); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "load not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to delete load")
		http.Error(w, "failed to delete load", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	orgID, loadID, ok := loadScope(w, r)
	if !ok {
		return
	}

	events, err := h.service.StatusEvents(r.Context(), orgID, loadID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "load not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to list status events")
		http.Error(w, "failed to list status events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func loadScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	loadID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid load id", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, loadID, true
}

func orgFrom(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Org-ID")
	if raw == "" {
		return uuid.Nil, errors.New("missing org header")
	}
	return uuid.Parse(raw)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
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
