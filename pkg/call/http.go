package call

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type Handler struct {
	service   *Service
	maxUpload int64
}

func NewHandler(service *Service, maxUpload int64) *Handler {
	return &Handler{service: service, maxUpload: maxUpload}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/calls/upload", h.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/calls", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/calls/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/calls/{id}", h.handleUpdateContact).Methods(http.MethodPut)
	r.HandleFunc("/calls/{id}/transcribe", h.handleTranscribe).Methods(http.MethodPost)
	r.HandleFunc("/calls/{id}/process", h.handleProcess).Methods(http.MethodPost)
	r.HandleFunc("/calls/{id}/transcript", h.handleTranscript).Methods(http.MethodGet)
	r.HandleFunc("/calls/{id}/insights", h.handleInsights).Methods(http.MethodGet)
	r.HandleFunc("/calls/{id}/fields", h.handleFields).Methods(http.MethodGet)
	r.HandleFunc("/calls/{id}/crm-output", h.handleCRMOutput).Methods(http.MethodGet)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return
	}

	if h.maxUpload > 0 {
		// Slack for the multipart framing around the audio part.
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "audio file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	req := models.UploadCallRequest{
		CustomerName:    r.FormValue("customer_name"),
		CustomerCompany: r.FormValue("customer_company"),
		SalesRep:        r.FormValue("sales_rep"),
		Direction:       r.FormValue("direction"),
		CallDate:        parseCallDate(r.FormValue("call_date")),
	}

	created, err := h.service.Upload(r.Context(), orgID, req, header.Filename, header.Size, file)
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		logger.Log.WithError(err).Error("failed to upload call")
		http.Error(w, "failed to upload call", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"call_id": created.ID, "call": created})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !IsValidStatus(status) {
		http.Error(w, "unknown status filter", http.StatusBadRequest)
		return
	}

	calls, err := h.service.ListCalls(r.Context(), orgID, status, parseLimit(r, 50))
	if err != nil {
		logger.Log.WithError(err).Error("failed to list calls")
		http.Error(w, "failed to list calls", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"calls": calls})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	orgID, callID, ok := callScope(w, r)
	if !ok {
		return
	}

	rec, err := h.service.GetCall(r.Context(), orgID, callID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "call not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to get call")
		http.Error(w, "failed to get call", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"call": rec})
}

func (h *Handler) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	orgID, callID, ok := callScope(w, r)
	if !ok {
		return
	}

	var payload struct {
		CustomerName *string `json:"customer_name"`
		SalesRep     *string `json:"sales_rep"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if payload.CustomerName == nil && payload.SalesRep == nil {
		http.Error(w, "customer_name or sales_rep is required", http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateContact(r.Context(), orgID, callID, payload.CustomerName, payload.SalesRep)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "call not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to update call")
		http.Error(w, "failed to update call", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"call": updated})
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	orgID, callID, ok := callScope(w, r)
	if !ok {
		return
	}

	accepted, err := h.service.StartTranscription(r.Context(), orgID, callID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "call not found", http.StatusNotFound)
		case errors.Is(err, ErrAlreadyProcessing):
			http.Error(w, "transcription already in progress", http.StatusConflict)
		case IsValidationError(err):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			logger.Log.WithError(err).Error("failed to start transcription")
			http.Error(w, "failed to start transcription", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	orgID, callID, ok := callScope(w, r)
	if !ok {
		return
	}

	extraction, err := h.service.Extraction(r.Context(), orgID, callID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "no extraction available for call", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch extraction")
		http.Error(w, "failed to fetch extraction", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, extraction)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	orgID, callID, ok := callScope(w, r)
	if !ok {
		return
	}

	utterances, err := h.service.Transcript(r.Context(), orgID, callID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "call not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch transcript")
		http.Error(w, "failed to fetch transcript", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"utterances": utterances})
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	orgID, callID, ok := callScope(w, r)
	if !ok {
		return
	}

	insights, err := h.service.Insights(r.Context(), orgID, callID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "call not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch insights")
		http.Error(w, "failed to fetch insights", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"insights": insights})
}

func (h *Handler) handleFields(w http.ResponseWriter, r *http.Request) {
	orgID, callID, ok := callScope(w, r)
	if !ok {
		return
	}

	fields, err := h.service.Fields(r.Context(), orgID, callID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "call not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch fields")
		http.Error(w, "failed to fetch fields", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"fields": fields})
}

func (h *Handler) handleCRMOutput(w http.ResponseWriter, r *http.Request) {
	orgID, callID, ok := callScope(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "plain"
	}

	output, err := h.service.CRMOutput(r.Context(), orgID, callID, format)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "call not found", http.StatusNotFound)
		case IsValidationError(err):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			logger.Log.WithError(err).Error("failed to generate crm output")
			http.Error(w, "failed to generate crm output", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"format": format, "output": output})
}

func callScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	orgID, err := orgFrom(r)
	if err != nil {
		http.Error(w, "org context required", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	callID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid call id", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, callID, true
}

func orgFrom(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Org-ID")
	if raw == "" {
		return uuid.Nil, errors.New("missing org header")
	}
	return uuid.Parse(raw)
}

func parseCallDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t
	}
	return time.Time{}
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
