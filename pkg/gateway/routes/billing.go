package routes

import (
	"errors"
	"net/http"

	"github.com/freightdesk-ai/platform/pkg/billing"
	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	gatewayauth "github.com/freightdesk-ai/platform/pkg/gateway/auth"
	"github.com/freightdesk-ai/platform/pkg/gateway/middleware"
	"github.com/gorilla/mux"
)

type BillingHandler struct {
	service     *billing.Service
	tokenSigner *gatewayauth.JWTManager
}

func NewBillingHandler(service *billing.Service, tokenSigner *gatewayauth.JWTManager) *BillingHandler {
	return &BillingHandler{service: service, tokenSigner: tokenSigner}
}

func (h *BillingHandler) Register(r *mux.Router) {
	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(h.tokenSigner))
	protected.HandleFunc("/billing/summary", h.handleSummary).Methods(http.MethodGet)
	protected.HandleFunc("/billing/portal", h.handlePortal).Methods(http.MethodGet)
	protected.HandleFunc("/subscription/downgrade", h.handleDowngrade).Methods(http.MethodPost)
	protected.HandleFunc("/subscription/cancel", h.handleCancel).Methods(http.MethodPost)
}

func (h *BillingHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	summary, err := h.service.Summary(r.Context(), claims.OrgID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to build billing summary")
		http.Error(w, "failed to build billing summary", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *BillingHandler) handlePortal(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	url := h.service.PortalURL(claims.OrgID)
	if url == "" {
		http.Error(w, "billing portal is not configured", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Plan changes are owner-only; the role rides on the signed token.
func (h *BillingHandler) handleDowngrade(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if claims.Role != models.RoleOwner {
		http.Error(w, "only the owner can change the plan", http.StatusForbidden)
		return
	}

	sub, err := h.service.Downgrade(r.Context(), claims.OrgID)
	if err != nil {
		if errors.Is(err, billing.ErrAlreadyOnStarter) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		logger.Log.WithError(err).Error("failed to downgrade subscription")
		http.Error(w, "failed to downgrade subscription", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

func (h *BillingHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if claims.Role != models.RoleOwner {
		http.Error(w, "only the owner can cancel the subscription", http.StatusForbidden)
		return
	}

	sub, err := h.service.Cancel(r.Context(), claims.OrgID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to cancel subscription")
		http.Error(w, "failed to cancel subscription", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, sub)
}
