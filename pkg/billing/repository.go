package billing

import (
	"context"
	"errors"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type subscriptionModel struct {
	OrgID             uuid.UUID `gorm:"primaryKey;column:org_id"`
	Plan              string    `gorm:"column:plan"`
	Status            string    `gorm:"column:status"`
	Seats             int       `gorm:"column:seats"`
	CurrentPeriodEnd  time.Time `gorm:"column:current_period_end"`
	CancelAtPeriodEnd bool      `gorm:"column:cancel_at_period_end"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (subscriptionModel) TableName() string { return "subscriptions" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&subscriptionModel{})
}

// GetSubscription returns the org's subscription, materializing the
// default starter plan on first read so later writes have a row.
func (r *Repository) GetSubscription(ctx context.Context, orgID uuid.UUID) (models.Subscription, error) {
	var row subscriptionModel
	err := r.db.WithContext(ctx).First(&row, "org_id = ?", orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = defaultSubscription(orgID)
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return models.Subscription{}, err
		}
		return buildSubscription(&row), nil
	}
	if err != nil {
		return models.Subscription{}, err
	}
	return buildSubscription(&row), nil
}

func (r *Repository) SetPlan(ctx context.Context, orgID uuid.UUID, plan string, seats int) error {
	return r.db.WithContext(ctx).Model(&subscriptionModel{}).
		Where("org_id = ?", orgID).
		Updates(map[string]interface{}{
			"plan":       plan,
			"seats":      seats,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *Repository) SetCancelAtPeriodEnd(ctx context.Context, orgID uuid.UUID, cancel bool) error {
	return r.db.WithContext(ctx).Model(&subscriptionModel{}).
		Where("org_id = ?", orgID).
		Updates(map[string]interface{}{
			"cancel_at_period_end": cancel,
			"updated_at":           time.Now().UTC(),
		}).Error
}

// Usage counters read sibling service tables directly; all services
// share the one Postgres.

func (r *Repository) CountCallsSince(ctx context.Context, orgID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("calls").
		Where("org_id = ? AND created_at >= ?", orgID, since).
		Count(&count).Error
	return count, err
}

func (r *Repository) CountLoadsSince(ctx context.Context, orgID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("loads").
		Where("org_id = ? AND created_at >= ?", orgID, since).
		Count(&count).Error
	return count, err
}

func defaultSubscription(orgID uuid.UUID) subscriptionModel {
	now := time.Now().UTC()
	return subscriptionModel{
		OrgID:            orgID,
		Plan:             models.PlanStarter,
		Status:           "active",
		Seats:            PlanSeats(models.PlanStarter),
		CurrentPeriodEnd: now.AddDate(0, 1, 0),
		UpdatedAt:        now,
	}
}

func buildSubscription(row *subscriptionModel) models.Subscription {
	return models.Subscription{
		OrgID:             row.OrgID,
		Plan:              row.Plan,
		Status:            row.Status,
		Seats:             row.Seats,
		CurrentPeriodEnd:  row.CurrentPeriodEnd,
		CancelAtPeriodEnd: row.CancelAtPeriodEnd,
		UpdatedAt:         row.UpdatedAt,
	}
}
