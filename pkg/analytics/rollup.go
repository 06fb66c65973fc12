package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Daily aggregates are recomputed in place, so re-running a day is
// always safe.

type callRollupModel struct {
	ID        uuid.UUID         `gorm:"primaryKey;column:id"`
	OrgID     uuid.UUID         `gorm:"column:org_id;uniqueIndex:idx_call_rollup_org_day"`
	Day       time.Time         `gorm:"column:day;uniqueIndex:idx_call_rollup_org_day"`
	Counters  datatypes.JSONMap `gorm:"column:counters"`
	UpdatedAt time.Time         `gorm:"column:updated_at"`
}

func (callRollupModel) TableName() string { return "call_rollups" }

type loadRollupModel struct {
	ID        uuid.UUID         `gorm:"primaryKey;column:id"`
	OrgID     uuid.UUID         `gorm:"column:org_id;uniqueIndex:idx_load_rollup_org_day"`
	Day       time.Time         `gorm:"column:day;uniqueIndex:idx_load_rollup_org_day"`
	Counters  datatypes.JSONMap `gorm:"column:counters"`
	UpdatedAt time.Time         `gorm:"column:updated_at"`
}

func (loadRollupModel) TableName() string { return "load_rollups" }

// RollupWriter maintains the per-day aggregate tables the dashboard's
// history views read.
type RollupWriter struct {
	db *gorm.DB
}

func NewRollupWriter(db *gorm.DB) *RollupWriter {
	return &RollupWriter{db: db}
}

func (w *RollupWriter) AutoMigrate() error {
	return w.db.AutoMigrate(&callRollupModel{}, &loadRollupModel{})
}

// Run recomputes yesterday and today on every tick until the context
// ends. Writing both sides of the midnight boundary keeps late events
// counted without tracking watermarks.
func (w *RollupWriter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Log.WithField("interval", interval.String()).Info("Rollup writer started")
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Rollup writer stopped")
			return
		case <-ticker.C:
			today := time.Now().UTC().Truncate(24 * time.Hour)
			for _, day := range []time.Time{today.AddDate(0, 0, -1), today} {
				if err := w.WriteDay(ctx, day); err != nil {
					logger.Log.WithError(err).WithField("day", day.Format("2006-01-02")).Warn("Rollup write failed")
				}
			}
		}
	}
}

// WriteDay recomputes the day's rollups for every org active that day.
func (w *RollupWriter) WriteDay(ctx context.Context, day time.Time) error {
	day = day.UTC().Truncate(24 * time.Hour)
	next := day.AddDate(0, 0, 1)

	orgs, err := w.activeOrgs(ctx, day, next)
	if err != nil {
		return err
	}

	for _, orgID := range orgs {
		if err := w.writeCallRollup(ctx, orgID, day, next); err != nil {
			return err
		}
		if err := w.writeLoadRollup(ctx, orgID, day, next); err != nil {
			return err
		}
	}
	return nil
}

func (w *RollupWriter) activeOrgs(ctx context.Context, day, next time.Time) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]struct{}{}
	for _, table := range []string{"calls", "loads"} {
		var ids []uuid.UUID
		err := w.db.WithContext(ctx).Table(table).
			Distinct("org_id").
			Where("created_at >= ? AND created_at < ?", day, next).
			Pluck("org_id", &ids).Error
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	orgs := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		orgs = append(orgs, id)
	}
	return orgs, nil
}

func (w *RollupWriter) writeCallRollup(ctx context.Context, orgID uuid.UUID, day, next time.Time) error {
	var rows []statusCount
	err := w.db.WithContext(ctx).Table("calls").
		Select("status, COUNT(*) as count").
		Where("org_id = ? AND created_at >= ? AND created_at < ?", orgID, day, next).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return err
	}

	counters := datatypes.JSONMap{}
	for _, row := range rows {
		counters[row.Status] = row.Count
	}

	var existing callRollupModel
	err = w.db.WithContext(ctx).Where("org_id = ? AND day = ?", orgID, day).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return w.db.WithContext(ctx).Create(&callRollupModel{
			ID:        uuid.New(),
			OrgID:     orgID,
			Day:       day,
			Counters:  counters,
			UpdatedAt: time.Now().UTC(),
		}).Error
	}
	if err != nil {
		return err
	}
	return w.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"counters":   counters,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (w *RollupWriter) writeLoadRollup(ctx context.Context, orgID uuid.UUID, day, next time.Time) error {
	var rows []statusCount
	err := w.db.WithContext(ctx).Table("loads").
		Select("status, COUNT(*) as count").
		Where("org_id = ? AND created_at >= ? AND created_at < ?", orgID, day, next).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return err
	}

	var margin int64
	err = w.db.WithContext(ctx).Table("loads").
		Select("COALESCE(SUM(shipper_rate_cents - carrier_rate_cents), 0)").
		Where("org_id = ? AND created_at >= ? AND created_at < ? AND status != 'cancelled'", orgID, day, next).
		Scan(&margin).Error
	if err != nil {
		return err
	}

	counters := datatypes.JSONMap{"margin_cents": margin}
	for _, row := range rows {
		counters[row.Status] = row.Count
	}

	var existing loadRollupModel
	err = w.db.WithContext(ctx).Where("org_id = ? AND day = ?", orgID, day).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return w.db.WithContext(ctx).Create(&loadRollupModel{
			ID:        uuid.New(),
			OrgID:     orgID,
			Day:       day,
			Counters:  counters,
			UpdatedAt: time.Now().UTC(),
		}).Error
	}
	if err != nil {
		return err
	}
	return w.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"counters":   counters,
		"updated_at": time.Now().UTC(),
	}).Error
}

// History returns the org's last N days of rollups, newest first.
func (w *RollupWriter) History(ctx context.Context, orgID uuid.UUID, days int) ([]map[string]interface{}, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	since := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days)

	var callRows []callRollupModel
	query := w.db.WithContext(ctx).Where("day >= ?", since).Order("day DESC")
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	if err := query.Find(&callRows).Error; err != nil {
		return nil, err
	}

	var loadRows []loadRollupModel
	query = w.db.WithContext(ctx).Where("day >= ?", since).Order("day DESC")
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	if err := query.Find(&loadRows).Error; err != nil {
		return nil, err
	}

	loadsByDay := make(map[string]datatypes.JSONMap, len(loadRows))
	for _, row := range loadRows {
		loadsByDay[row.Day.Format("2006-01-02")] = row.Counters
	}

	out := make([]map[string]interface{}, 0, len(callRows))
	for _, row := range callRows {
		key := row.Day.Format("2006-01-02")
		out = append(out, map[string]interface{}{
			"day":   key,
			"calls": map[string]interface{}(row.Counters),
			"loads": map[string]interface{}(loadsByDay[key]),
		})
	}
	return out, nil
}
