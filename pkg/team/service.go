package team

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const inviteTTL = 7 * 24 * time.Hour

var (
	ErrBootstrapNotAllowed = errors.New("platform already bootstrapped")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInviteExpired       = errors.New("invitation has expired")
	ErrInviteNotPending    = errors.New("invitation is no longer pending")
	ErrForbidden           = errors.New("insufficient permissions")
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Bootstrap creates the first organization and its owner. Allowed only
// while the users table is empty.
func (s *Service) Bootstrap(ctx context.Context, req models.BootstrapRequest) (models.Organization, models.User, error) {
	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return models.Organization{}, models.User{}, err
	}
	if count > 0 {
		return models.Organization{}, models.User{}, ErrBootstrapNotAllowed
	}
	if strings.TrimSpace(req.OrgName) == "" {
		return models.Organization{}, models.User{}, errors.New("org_name is required")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return models.Organization{}, models.User{}, errors.New("email and password are required")
	}

	org, err := s.repo.CreateOrganization(ctx, strings.TrimSpace(req.OrgName), slugify(req.OrgName))
	if err != nil {
		return models.Organization{}, models.User{}, err
	}

	user, err := s.createUser(ctx, org.ID, req.Email, req.Name, models.RoleOwner, req.Password)
	if err != nil {
		return models.Organization{}, models.User{}, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"org_id": org.ID,
		"slug":   org.Slug,
	}).Info("Brokerage bootstrapped")
	return org, user, nil
}

func (s *Service) createUser(ctx context.Context, orgID uuid.UUID, email, name, role, password string) (models.User, error) {
	if password == "" {
		return models.User{}, errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	return s.repo.CreateUser(ctx, orgID, email, name, role, string(hash))
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}

	hash, err := s.repo.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Service) Organization(ctx context.Context, id uuid.UUID) (models.Organization, error) {
	return s.repo.GetOrganization(ctx, id)
}

// UserByEmail backs SSO sign-in, which vouches for an address but never
// provisions accounts; membership still arrives through invitations.
func (s *Service) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.repo.GetUserByEmail(ctx, email)
}

func (s *Service) Members(ctx context.Context, orgID uuid.UUID) ([]models.User, error) {
	return s.repo.ListMembers(ctx, orgID)
}

// Invite issues a pending invitation. Only owners and admins may
// invite, and nobody can invite another owner.
func (s *Service) Invite(ctx context.Context, actor models.User, req models.InviteRequest) (models.Invitation, error) {
	if actor.Role != models.RoleOwner && actor.Role != models.RoleAdmin {
		return models.Invitation{}, ErrForbidden
	}
	if strings.TrimSpace(req.Email) == "" {
		return models.Invitation{}, errors.New("email is required")
	}
	role := req.Role
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleAdmin && role != models.RoleMember {
		return models.Invitation{}, errors.New("role must be admin or member")
	}

	token, err := newInviteToken()
	if err != nil {
		return models.Invitation{}, err
	}

	created, err := s.repo.CreateInvitation(ctx, models.Invitation{
		OrgID:     actor.OrgID,
		Email:     req.Email,
		Role:      role,
		Token:     token,
		InvitedBy: actor.ID,
		ExpiresAt: time.Now().UTC().Add(inviteTTL),
	})
	if err != nil {
		return models.Invitation{}, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"org_id":    actor.OrgID,
		"invite_id": created.ID,
		"role":      role,
	}).Info("Invitation issued")
	return created, nil
}

func (s *Service) Invitations(ctx context.Context, orgID uuid.UUID) ([]models.Invitation, error) {
	return s.repo.ListInvitations(ctx, orgID)
}

func (s *Service) Revoke(ctx context.Context, actor models.User, inviteID uuid.UUID) error {
	if actor.Role != models.RoleOwner && actor.Role != models.RoleAdmin {
		return ErrForbidden
	}
	revoked, err := s.repo.UpdateInvitationStatus(ctx, actor.OrgID, inviteID, models.InviteStatusRevoked)
	if err != nil {
		return err
	}
	if !revoked {
		return ErrInviteNotFound
	}
	return nil
}

// Accept redeems an invitation token, creating the member account. An
// expired invitation is marked as such on the way out.
func (s *Service) Accept(ctx context.Context, req models.AcceptInviteRequest) (models.User, error) {
	inv, err := s.repo.GetInvitationByToken(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		return models.User{}, err
	}
	if inv.Status != models.InviteStatusPending {
		return models.User{}, ErrInviteNotPending
	}
	if time.Now().UTC().After(inv.ExpiresAt) {
		if _, err := s.repo.UpdateInvitationStatus(ctx, inv.OrgID, inv.ID, models.InviteStatusExpired); err != nil {
			logger.Log.WithError(err).WithField("invite_id", inv.ID).Warn("Failed to expire invitation")
		}
		return models.User{}, ErrInviteExpired
	}

	claimed, err := s.repo.UpdateInvitationStatus(ctx, inv.OrgID, inv.ID, models.InviteStatusAccepted)
	if err != nil {
		return models.User{}, err
	}
	if !claimed {
		return models.User{}, ErrInviteNotPending
	}

	user, err := s.createUser(ctx, inv.OrgID, inv.Email, req.Name, inv.Role, req.Password)
	if err != nil {
		return models.User{}, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"org_id":  inv.OrgID,
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("Invitation accepted")
	return user, nil
}

func newInviteToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// slugify lowercases the org name and squeezes everything that is not a
// letter or digit into single dashes.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
