package billing

import (
	"testing"

	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
)

func TestPlanSeats(t *testing.T) {
	if got := PlanSeats(models.PlanStarter); got != 5 {
		t.Errorf("starter seats = %d, want 5", got)
	}
	if got := PlanSeats(models.PlanPro); got != 25 {
		t.Errorf("pro seats = %d, want 25", got)
	}
	if got := PlanSeats(models.PlanEnterprise); got != 0 {
		t.Errorf("enterprise seats = %d, want 0 (unlimited)", got)
	}
}

func TestPortalURL(t *testing.T) {
	orgID := uuid.New()
	s := NewService(nil, nil, "https://billing.example.com/portal")
	want := "https://billing.example.com/portal?org=" + orgID.String()
	if got := s.PortalURL(orgID); got != want {
		t.Errorf("PortalURL = %q, want %q", got, want)
	}

	empty := NewService(nil, nil, "")
	if got := empty.PortalURL(orgID); got != "" {
		t.Errorf("unconfigured portal should yield empty URL, got %q", got)
	}
}
