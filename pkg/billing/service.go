package billing

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
)

var ErrAlreadyOnStarter = errors.New("already on the starter plan")

// MemberCounter reports how many seats an org occupies. team.Repository
// satisfies it.
type MemberCounter interface {
	CountMembers(ctx context.Context, orgID uuid.UUID) (int64, error)
}

type Service struct {
	repo      *Repository
	members   MemberCounter
	portalURL string
}

func NewService(repo *Repository, members MemberCounter, portalURL string) *Service {
	return &Service{repo: repo, members: members, portalURL: portalURL}
}

// PlanSeats is the seat allowance per plan; zero means unlimited.
func PlanSeats(plan string) int {
	switch plan {
	case models.PlanStarter:
		return 5
	case models.PlanPro:
		return 25
	default:
		return 0
	}
}

// Usage is what the org consumed in the current billing period.
type Usage struct {
	Members         int64 `json:"members"`
	CallsThisPeriod int64 `json:"calls_this_period"`
	LoadsThisPeriod int64 `json:"loads_this_period"`
}

type Summary struct {
	Subscription models.Subscription `json:"subscription"`
	Usage        Usage               `json:"usage"`
}

func (s *Service) Summary(ctx context.Context, orgID uuid.UUID) (Summary, error) {
	sub, err := s.repo.GetSubscription(ctx, orgID)
	if err != nil {
		return Summary{}, err
	}

	periodStart := sub.CurrentPeriodEnd.AddDate(0, -1, 0)
	summary := Summary{Subscription: sub}

	if s.members != nil {
		if count, err := s.members.CountMembers(ctx, orgID); err == nil {
			summary.Usage.Members = count
		} else {
			logger.Log.WithError(err).WithField("org_id", orgID).Warn("Failed to count members")
		}
	}
	if count, err := s.repo.CountCallsSince(ctx, orgID, periodStart); err == nil {
		summary.Usage.CallsThisPeriod = count
	} else {
		logger.Log.WithError(err).WithField("org_id", orgID).Warn("Failed to count calls")
	}
	if count, err := s.repo.CountLoadsSince(ctx, orgID, periodStart); err == nil {
		summary.Usage.LoadsThisPeriod = count
	} else {
		logger.Log.WithError(err).WithField("org_id", orgID).Warn("Failed to count loads")
	}

	return summary, nil
}

// PortalURL links to the hosted billing portal for the org. Payment
// collection itself lives with the provider, not here.
func (s *Service) PortalURL(orgID uuid.UUID) string {
	if s.portalURL == "" {
		return ""
	}
	return fmt.Sprintf("%s?org=%s", s.portalURL, url.QueryEscape(orgID.String()))
}

// Downgrade steps the org's plan down one tier at the operator's
// request. Upgrades go through the portal; downgrades are self-serve.
func (s *Service) Downgrade(ctx context.Context, orgID uuid.UUID) (models.Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, orgID)
	if err != nil {
		return models.Subscription{}, err
	}

	var next string
	switch sub.Plan {
	case models.PlanEnterprise:
		next = models.PlanPro
	case models.PlanPro:
		next = models.PlanStarter
	default:
		return models.Subscription{}, ErrAlreadyOnStarter
	}

	if err := s.repo.SetPlan(ctx, orgID, next, PlanSeats(next)); err != nil {
		return models.Subscription{}, err
	}
	logger.Log.WithFields(map[string]interface{}{
		"org_id": orgID,
		"from":   sub.Plan,
		"to":     next,
	}).Info("Subscription downgraded")
	return s.repo.GetSubscription(ctx, orgID)
}

// Cancel flags the subscription to lapse at period end; service
// continues until then.
func (s *Service) Cancel(ctx context.Context, orgID uuid.UUID) (models.Subscription, error) {
	if _, err := s.repo.GetSubscription(ctx, orgID); err != nil {
		return models.Subscription{}, err
	}
	if err := s.repo.SetCancelAtPeriodEnd(ctx, orgID, true); err != nil {
		return models.Subscription{}, err
	}
	logger.Log.WithField("org_id", orgID).Info("Subscription set to cancel at period end")
	return s.repo.GetSubscription(ctx, orgID)
}
