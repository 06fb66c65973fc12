package team

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrOrgNotFound        = errors.New("organization not found")
	ErrInviteNotFound     = errors.New("invitation not found")
	ErrEmailAlreadyExists = errors.New("email already registered")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type orgModel struct {
	ID        uuid.UUID `gorm:"primaryKey;column:id"`
	Name      string    `gorm:"column:name"`
	Slug      string    `gorm:"column:slug;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (orgModel) TableName() string { return "organizations" }

type userModel struct {
	ID           uuid.UUID `gorm:"primaryKey;column:id"`
	OrgID        uuid.UUID `gorm:"column:org_id;index"`
	Email        string    `gorm:"column:email;uniqueIndex"`
	Name         string    `gorm:"column:name"`
	Role         string    `gorm:"column:role;index"`
	PasswordHash string    `gorm:"column:password_hash"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type invitationModel struct {
	ID        uuid.UUID `gorm:"primaryKey;column:id"`
	OrgID     uuid.UUID `gorm:"column:org_id;index"`
	Email     string    `gorm:"column:email"`
	Role      string    `gorm:"column:role"`
	Token     string    `gorm:"column:token;uniqueIndex"`
	Status    string    `gorm:"column:status;index"`
	InvitedBy uuid.UUID `gorm:"column:invited_by"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (invitationModel) TableName() string { return "invitations" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&orgModel{},
		&userModel{},
		&invitationModel{},
	)
}

func (r *Repository) CreateOrganization(ctx context.Context, name, slug string) (models.Organization, error) {
	row := &orgModel{
		ID:        uuid.New(),
		Name:      name,
		Slug:      strings.ToLower(slug),
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.Organization{}, err
	}
	return models.Organization{ID: row.ID, Name: row.Name, Slug: row.Slug, CreatedAt: row.CreatedAt}, nil
}

func (r *Repository) GetOrganization(ctx context.Context, id uuid.UUID) (models.Organization, error) {
	var row orgModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Organization{}, ErrOrgNotFound
		}
		return models.Organization{}, err
	}
	return models.Organization{ID: row.ID, Name: row.Name, Slug: row.Slug, CreatedAt: row.CreatedAt}, nil
}

func (r *Repository) CreateUser(ctx context.Context, orgID uuid.UUID, email, name, role, passwordHash string) (models.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	var existing int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Where("email = ?", normalized).Count(&existing).Error; err != nil {
		return models.User{}, err
	}
	if existing > 0 {
		return models.User{}, ErrEmailAlreadyExists
	}

	now := time.Now().UTC()
	row := &userModel{
		ID:           uuid.New(),
		OrgID:        orgID,
		Email:        normalized,
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.User{}, err
	}
	return buildUser(row), nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var row userModel
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return buildUser(&row), nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var row userModel
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return buildUser(&row), nil
}

// GetPasswordHash is split from GetUserByEmail so the hash never rides
// along on the user struct.
func (r *Repository) GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	var row userModel
	err := r.db.WithContext(ctx).Select("password_hash").First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return row.PasswordHash, nil
}

func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.User, error) {
	var rows []userModel
	if err := r.db.WithContext(ctx).Where("org_id = ?", orgID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(rows))
	for i := range rows {
		users = append(users, buildUser(&rows[i]))
	}
	return users, nil
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userModel{}).Count(&count).Error
	return count, err
}

func (r *Repository) CountMembers(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userModel{}).Where("org_id = ?", orgID).Count(&count).Error
	return count, err
}

func (r *Repository) CreateInvitation(ctx context.Context, inv models.Invitation) (models.Invitation, error) {
	row := &invitationModel{
		ID:        inv.ID,
		OrgID:     inv.OrgID,
		Email:     strings.ToLower(strings.TrimSpace(inv.Email)),
		Role:      inv.Role,
		Token:     inv.Token,
		Status:    models.InviteStatusPending,
		InvitedBy: inv.InvitedBy,
		ExpiresAt: inv.ExpiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.Invitation{}, err
	}
	return buildInvitation(row), nil
}

func (r *Repository) ListInvitations(ctx context.Context, orgID uuid.UUID) ([]models.Invitation, error) {
	var rows []invitationModel
	if err := r.db.WithContext(ctx).Where("org_id = ?", orgID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	invites := make([]models.Invitation, 0, len(rows))
	for i := range rows {
		inv := buildInvitation(&rows[i])
		// The raw token is only surfaced once, at creation time.
		inv.Token = ""
		invites = append(invites, inv)
	}
	return invites, nil
}

func (r *Repository) GetInvitationByToken(ctx context.Context, token string) (models.Invitation, error) {
	var row invitationModel
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Invitation{}, ErrInviteNotFound
	}
	if err != nil {
		return models.Invitation{}, err
	}
	return buildInvitation(&row), nil
}

// UpdateInvitationStatus flips status only when the invitation is still
// pending, so a revoked invite cannot be accepted afterwards.
func (r *Repository) UpdateInvitationStatus(ctx context.Context, orgID, id uuid.UUID, status string) (bool, error) {
	query := r.db.WithContext(ctx).Model(&invitationModel{}).
		Where("id = ? AND status = ?", id, models.InviteStatusPending)
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	result := query.Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func buildUser(row *userModel) models.User {
	return models.User{
		ID:        row.ID,
		OrgID:     row.OrgID,
		Email:     row.Email,
		Name:      row.Name,
		Role:      row.Role,
		CreatedAt: row.CreatedAt,
	}
}

func buildInvitation(row *invitationModel) models.Invitation {
	return models.Invitation{
		ID:        row.ID,
		OrgID:     row.OrgID,
		Email:     row.Email,
		Role:      row.Role,
		Token:     row.Token,
		Status:    row.Status,
		InvitedBy: row.InvitedBy,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
	}
}
