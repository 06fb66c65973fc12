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

type TeamsHandler struct {
	service     *team.Service
	tokenSigner *gatewayauth.JWTManager
}

func NewTeamsHandler(service *team.Service, tokenSigner *gatewayauth.JWTManager) *TeamsHandler {
	return &TeamsHandler{service: service, tokenSigner: tokenSigner}
}

func (h *TeamsHandler) Register(r *mux.Router) {
	// Accepting an invitation is the one teams route without a token;
	// the new member does not have one yet.
	r.HandleFunc("/teams/invite/accept", h.handleAccept).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(h.tokenSigner))
	protected.HandleFunc("/teams/members", h.handleMembers).Methods(http.MethodGet)
	protected.HandleFunc("/teams/invite", h.handleListInvites).Methods(http.MethodGet)
	protected.HandleFunc("/teams/invite", h.handleInvite).Methods(http.MethodPost)
	protected.HandleFunc("/teams/invite", h.handleRevoke).Methods(http.MethodDelete)
}

func (h *TeamsHandler) actor(r *http.Request) (models.User, error) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		return models.User{}, errors.New("no claims on request")
	}
	return h.service.GetUser(r.Context(), claims.UserID)
}

func (h *TeamsHandler) handleMembers(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	members, err := h.service.Members(r.Context(), actor.OrgID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list members")
		http.Error(w, "failed to list members", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

func (h *TeamsHandler) handleListInvites(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	invites, err := h.service.Invitations(r.Context(), actor.OrgID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list invitations")
		http.Error(w, "failed to list invitations", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"invitations": invites})
}

func (h *TeamsHandler) handleInvite(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	inv, err := h.service.Invite(r.Context(), actor, req)
	if err != nil {
		if errors.Is(err, team.ErrForbidden) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		logger.Log.WithError(err).Warn("failed to create invitation")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The only response that carries the raw token; listings blank it.
	respondJSON(w, http.StatusCreated, inv)
}

func (h *TeamsHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	inviteID, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "id query parameter must be a uuid", http.StatusBadRequest)
		return
	}

	if err := h.service.Revoke(r.Context(), actor, inviteID); err != nil {
		switch {
		case errors.Is(err, team.ErrForbidden):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, team.ErrInviteNotFound):
			http.Error(w, "invitation not found", http.StatusNotFound)
		default:
			logger.Log.WithError(err).Error("failed to revoke invitation")
			http.Error(w, "failed to revoke invitation", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamsHandler) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req models.AcceptInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	user, err := h.service.Accept(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, team.ErrInviteNotFound):
			http.Error(w, "invitation not found", http.StatusNotFound)
		case errors.Is(err, team.ErrInviteExpired):
			http.Error(w, err.Error(), http.StatusGone)
		case errors.Is(err, team.ErrInviteNotPending):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, team.ErrEmailAlreadyExists):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			logger.Log.WithError(err).Warn("failed to accept invitation")
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	org, err := h.service.Organization(r.Context(), user.OrgID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load organization after accept")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	token, expiresAt, err := h.tokenSigner.IssueToken(user)
	if err != nil {
		logger.Log.WithError(err).Error("failed issuing token after accept")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, models.AuthResponse{
		Token:        token,
		ExpiresAt:    expiresAt.UTC(),
		User:         user,
		Organization: org,
	})
}
