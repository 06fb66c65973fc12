package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	gatewayauth "github.com/freightdesk-ai/platform/pkg/gateway/auth"
	"github.com/freightdesk-ai/platform/pkg/gateway/middleware"
	"github.com/freightdesk-ai/platform/pkg/team"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const ssoStateCookie = "fd_sso_state"

type AuthHandler struct {
	service     *team.Service
	tokenSigner *gatewayauth.JWTManager
	sso         *gatewayauth.OIDCAuthenticator
}

func NewAuthHandler(service *team.Service, tokenSigner *gatewayauth.JWTManager, sso *gatewayauth.OIDCAuthenticator) *AuthHandler {
	return &AuthHandler{service: service, tokenSigner: tokenSigner, sso: sso}
}

func (h *AuthHandler) Register(r *mux.Router) {
	r.HandleFunc("/auth/bootstrap", h.handleBootstrap).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)

	if h.sso != nil {
		r.HandleFunc("/auth/sso/start", h.handleSSOStart).Methods(http.MethodGet)
		r.HandleFunc("/auth/sso/callback", h.handleSSOCallback).Methods(http.MethodGet)
	}

	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(h.tokenSigner))
	protected.HandleFunc("/auth/me", h.handleMe).Methods(http.MethodGet)
}

func (h *AuthHandler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var req models.BootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	org, user, err := h.service.Bootstrap(r.Context(), req)
	if err != nil {
		if errors.Is(err, team.ErrBootstrapNotAllowed) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		logger.Log.WithError(err).Warn("bootstrap failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.respondWithToken(w, http.StatusCreated, user, org)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		logger.Log.WithError(err).Warn("authentication failed")
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	org, err := h.service.Organization(r.Context(), user.OrgID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load organization during login")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.respondWithToken(w, http.StatusOK, user, org)
}

// handleSSOStart hands the browser to the identity provider. The state
// nonce comes back on the callback and must match the cookie.
func (h *AuthHandler) handleSSOStart(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     ssoStateCookie,
		Value:    state,
		Path:     "/api/v1/auth/sso",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.sso.LoginURL(state), http.StatusFound)
}

func (h *AuthHandler) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(ssoStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}

	identity, err := h.sso.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		logger.Log.WithError(err).Warn("sso exchange failed")
		http.Error(w, "sso exchange failed", http.StatusUnauthorized)
		return
	}

	// The provider vouches for the address; it does not create accounts.
	user, err := h.service.UserByEmail(r.Context(), identity.Email)
	if err != nil {
		logger.Log.WithField("email", identity.Email).Warn("sso login for unknown member")
		http.Error(w, "no account for this address; ask for an invitation", http.StatusForbidden)
		return
	}

	org, err := h.service.Organization(r.Context(), user.OrgID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load organization during sso login")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.respondWithToken(w, http.StatusOK, user, org)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetUser(r.Context(), claims.UserID)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to fetch user in /me")
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	org, err := h.service.Organization(r.Context(), user.OrgID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load organization in /me")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":         user,
		"organization": org,
	})
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, user models.User, org models.Organization) {
	token, expiresAt, err := h.tokenSigner.IssueToken(user)
	if err != nil {
		logger.Log.WithError(err).Error("failed issuing token")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, status, models.AuthResponse{
		Token:        token,
		ExpiresAt:    expiresAt.UTC(),
		User:         user,
		Organization: org,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
