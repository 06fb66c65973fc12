package analytics

import (
	"context"
	"time"

	"github.com/freightdesk-ai/platform/pkg/load"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service serves read-only dashboard aggregates straight from the
// service tables. Heavier history questions go through the rollups.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// SimpleMetrics is the dashboard's one-call summary payload.
type SimpleMetrics struct {
	Days               int              `json:"days"`
	Calls              map[string]int64 `json:"calls"`
	PendingExtractions int64            `json:"pendingExtractions"`
	Loads              map[string]int64 `json:"loads"`
	NeedsCarrier       int64            `json:"needsCarrier"`
	MarginCents        int64            `json:"marginCents"`
	PickupsByDay       map[string]int64 `json:"pickupsByDay"`
	DeliveriesByDay    map[string]int64 `json:"deliveriesByDay"`
}

type statusCount struct {
	Status string
	Count  int64
}

type dayCount struct {
	Day   time.Time
	Count int64
}

// Simple aggregates the last N days of calls and loads, plus the
// upcoming N days of pickups and deliveries for the schedule strip.
func (s *Service) Simple(ctx context.Context, orgID uuid.UUID, days int) (SimpleMetrics, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days)
	today := now.Truncate(24 * time.Hour)
	until := today.AddDate(0, 0, days)

	metrics := SimpleMetrics{
		Days:            days,
		Calls:           map[string]int64{},
		Loads:           map[string]int64{},
		PickupsByDay:    map[string]int64{},
		DeliveriesByDay: map[string]int64{},
	}

	var rows []statusCount
	query := s.db.WithContext(ctx).Table("calls").
		Select("status, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("status")
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	if err := query.Find(&rows).Error; err != nil {
		return SimpleMetrics{}, err
	}
	for _, row := range rows {
		metrics.Calls[row.Status] = row.Count
	}

	// Extractions nobody has turned into a load yet.
	pending := s.db.WithContext(ctx).Table("call_extractions").
		Joins("JOIN calls ON calls.id = call_extractions.call_id").
		Where("call_extractions.load_id IS NULL AND calls.created_at >= ?", since)
	if orgID != uuid.Nil {
		pending = pending.Where("calls.org_id = ?", orgID)
	}
	if err := pending.Count(&metrics.PendingExtractions).Error; err != nil {
		return SimpleMetrics{}, err
	}

	rows = rows[:0]
	query = s.db.WithContext(ctx).Table("loads").
		Select("status, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("status")
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	if err := query.Find(&rows).Error; err != nil {
		return SimpleMetrics{}, err
	}
	for _, row := range rows {
		metrics.Loads[row.Status] = row.Count
	}

	// A quoted load without a carrier is waiting on one too, so the
	// count cannot come from the status buckets alone.
	needing := s.db.WithContext(ctx).Table("loads").
		Where("created_at >= ? AND carrier_id IS NULL AND status IN ?", since, load.NeedsCarrierStatuses())
	if orgID != uuid.Nil {
		needing = needing.Where("org_id = ?", orgID)
	}
	if err := needing.Count(&metrics.NeedsCarrier).Error; err != nil {
		return SimpleMetrics{}, err
	}

	margin := s.db.WithContext(ctx).Table("loads").
		Select("COALESCE(SUM(shipper_rate_cents - carrier_rate_cents), 0)").
		Where("created_at >= ? AND status != 'cancelled'", since)
	if orgID != uuid.Nil {
		margin = margin.Where("org_id = ?", orgID)
	}
	if err := margin.Scan(&metrics.MarginCents).Error; err != nil {
		return SimpleMetrics{}, err
	}

	pickups, err := s.countByDay(ctx, orgID, "pickup_date", today, until)
	if err != nil {
		return SimpleMetrics{}, err
	}
	metrics.PickupsByDay = pickups

	deliveries, err := s.countByDay(ctx, orgID, "delivery_date", today, until)
	if err != nil {
		return SimpleMetrics{}, err
	}
	metrics.DeliveriesByDay = deliveries

	return metrics, nil
}

func (s *Service) countByDay(ctx context.Context, orgID uuid.UUID, column string, from, until time.Time) (map[string]int64, error) {
	var rows []dayCount
	query := s.db.WithContext(ctx).Table("loads").
		Select("DATE("+column+") as day, COUNT(*) as count").
		Where(column+" >= ? AND "+column+" < ? AND status != 'cancelled'", from, until).
		Group("DATE(" + column + ")")
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Day.Format("2006-01-02")] = row.Count
	}
	return counts, nil
}
