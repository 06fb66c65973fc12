package load

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("load not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type loadModel struct {
	ID            uuid.UUID      `gorm:"primaryKey;column:id"`
	OrgID         uuid.UUID      `gorm:"column:org_id;index"`
	ReferenceCode string         `gorm:"column:reference_code;uniqueIndex"`
	Status        string         `gorm:"column:status;index"`
	Progress      int            `gorm:"column:progress"`
	ShipperName   string         `gorm:"column:shipper_name"`
	Origin        string         `gorm:"column:origin"`
	Destination   string         `gorm:"column:destination"`
	PickupDate    *time.Time     `gorm:"column:pickup_date;index"`
	DeliveryDate  *time.Time     `gorm:"column:delivery_date;index"`
	EquipmentType string         `gorm:"column:equipment_type"`
	Commodity     string         `gorm:"column:commodity"`
	WeightLbs     int            `gorm:"column:weight_lbs"`
	ShipperRate   int64          `gorm:"column:shipper_rate_cents"`
	CarrierRate   int64          `gorm:"column:carrier_rate_cents"`
	CarrierID     *uuid.UUID     `gorm:"column:carrier_id"`
	ShipperID     *uuid.UUID     `gorm:"column:shipper_id"`
	SourceCallID  *uuid.UUID     `gorm:"column:source_call_id"`
	Notes         string         `gorm:"column:notes"`
	Metadata      datatypes.JSON `gorm:"column:metadata"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at"`
}

func (loadModel) TableName() string { return "loads" }

type statusEventModel struct {
	ID         uuid.UUID `gorm:"primaryKey;column:id"`
	LoadID     uuid.UUID `gorm:"column:load_id;index"`
	FromStatus string    `gorm:"column:from_status"`
	ToStatus   string    `gorm:"column:to_status"`
	Actor      string    `gorm:"column:actor"`
	Note       string    `gorm:"column:note"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (statusEventModel) TableName() string { return "load_status_events" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&loadModel{},
		&statusEventModel{},
	)
}

// newReferenceCode builds the human-facing load number, e.g.
// LD-20250114-7F3A. The suffix comes from a fresh UUID so codes stay
// unguessable without a counter table.
func newReferenceCode(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:4])
	return fmt.Sprintf("LD-%s-%s", now.Format("20060102"), suffix)
}

func (r *Repository) CreateLoad(ctx context.Context, l models.Load) (models.Load, error) {
	now := time.Now().UTC()
	row := &loadModel{
		ID:            l.ID,
		OrgID:         l.OrgID,
		ReferenceCode: l.ReferenceCode,
		Status:        l.Status,
		ShipperName:   l.ShipperName,
		Origin:        l.Origin,
		Destination:   l.Destination,
		PickupDate:    l.PickupDate,
		DeliveryDate:  l.DeliveryDate,
		EquipmentType: l.EquipmentType,
		Commodity:     l.Commodity,
		WeightLbs:     l.WeightLbs,
		ShipperRate:   l.ShipperRate,
		CarrierRate:   l.CarrierRate,
		CarrierID:     l.CarrierID,
		ShipperID:     l.ShipperID,
		SourceCallID:  l.SourceCallID,
		Notes:         l.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.Status == "" {
		row.Status = StatusQuoted
	}
	row.Progress = Progress(row.Status)
	if l.Metadata != nil {
		if data, err := json.Marshal(l.Metadata); err == nil {
			row.Metadata = datatypes.JSON(data)
		}
	}

	// The four-character suffix can collide within a day; take one more
	// draw before giving up.
	for attempt := 0; ; attempt++ {
		if row.ReferenceCode == "" {
			row.ReferenceCode = newReferenceCode(now)
		}
		err := r.db.WithContext(ctx).Create(row).Error
		if err == nil {
			return buildLoad(row), nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt == 0 {
			row.ReferenceCode = ""
			continue
		}
		return models.Load{}, err
	}
}

// GetLoad scopes by organization unless orgID is uuid.Nil, which
// internal callers use.
func (r *Repository) GetLoad(ctx context.Context, orgID, id uuid.UUID) (models.Load, error) {
	var row loadModel
	query := r.db.WithContext(ctx)
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	if err := query.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Load{}, ErrNotFound
		}
		return models.Load{}, err
	}
	return buildLoad(&row), nil
}

// ListFilter narrows a load listing. Date filters match the calendar
// day in UTC.
type ListFilter struct {
	Status       string
	PickupDate   *time.Time
	DeliveryDate *time.Time
	Limit        int
}

func (r *Repository) ListLoads(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]models.Load, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PickupDate != nil {
		day := filter.PickupDate.UTC().Truncate(24 * time.Hour)
		query = query.Where("pickup_date >= ? AND pickup_date < ?", day, day.Add(24*time.Hour))
	}
	if filter.DeliveryDate != nil {
		day := filter.DeliveryDate.UTC().Truncate(24 * time.Hour)
		query = query.Where("delivery_date >= ? AND delivery_date < ?", day, day.Add(24*time.Hour))
	}
	var rows []loadModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	loads := make([]models.Load, 0, len(rows))
	for i := range rows {
		loads = append(loads, buildLoad(&rows[i]))
	}
	return loads, nil
}

// UpdateLoad applies partial field edits. A notes change pushes the new
// note onto the notes_history array in metadata before replacing the
// notes column, so the trail of edits survives.
func (r *Repository) UpdateLoad(ctx context.Context, orgID, id uuid.UUID, req models.UpdateLoadRequest) (models.Load, error) {
	var updated *loadModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row loadModel
		query := tx.Where("id = ?", id)
		if orgID != uuid.Nil {
			query = query.Where("org_id = ?", orgID)
		}
		if err := query.First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{"updated_at": now}
		if req.ShipperName != nil {
			updates["shipper_name"] = *req.ShipperName
		}
		if req.Origin != nil {
			updates["origin"] = *req.Origin
		}
		if req.Destination != nil {
			updates["destination"] = *req.Destination
		}
		if req.PickupDate != nil {
			updates["pickup_date"] = *req.PickupDate
		}
		if req.DeliveryDate != nil {
			updates["delivery_date"] = *req.DeliveryDate
		}
		if req.EquipmentType != nil {
			updates["equipment_type"] = *req.EquipmentType
		}
		if req.Commodity != nil {
			updates["commodity"] = *req.Commodity
		}
		if req.WeightLbs != nil {
			updates["weight_lbs"] = *req.WeightLbs
		}
		if req.ShipperRate != nil {
			updates["shipper_rate_cents"] = *req.ShipperRate
		}
		if req.CarrierRate != nil {
			updates["carrier_rate_cents"] = *req.CarrierRate
		}
		if req.CarrierID != nil {
			updates["carrier_id"] = *req.CarrierID
		}
		if req.ShipperID != nil {
			updates["shipper_id"] = *req.ShipperID
		}
		if req.Notes != nil && *req.Notes != row.Notes {
			meta := jsonMap(row.Metadata)
			if meta == nil {
				meta = map[string]interface{}{}
			}
			history, _ := meta["notes_history"].([]interface{})
			history = append(history, map[string]interface{}{
				"note": *req.Notes,
				"at":   now.Format(time.RFC3339),
			})
			meta["notes_history"] = history
			data, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			updates["metadata"] = datatypes.JSON(data)
			updates["notes"] = *req.Notes
		}

		if err := tx.Model(&loadModel{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&row, "id = ?", row.ID).Error; err != nil {
			return err
		}
		updated = &row
		return nil
	})
	if err != nil {
		return models.Load{}, err
	}
	return buildLoad(updated), nil
}

// ApplyTransition persists a validated workflow move together with its
// audit row. The update is conditioned on the current status so two
// racing transitions cannot both land; the false return means the row
// moved underneath the caller.
func (r *Repository) ApplyTransition(ctx context.Context, id uuid.UUID, from, to string, progress int, actor, note string) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&loadModel{}).
			Where("id = ? AND status = ?", id, from).
			Updates(map[string]interface{}{
				"status":     to,
				"progress":   progress,
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		applied = true
		event := &statusEventModel{
			ID:         uuid.New(),
			LoadID:     id,
			FromStatus: from,
			ToStatus:   to,
			Actor:      actor,
			Note:       note,
			CreatedAt:  time.Now().UTC(),
		}
		return tx.Create(event).Error
	})
	return applied, err
}

// AssignCarrier sets carrier_id without touching the workflow.
func (r *Repository) AssignCarrier(ctx context.Context, id, carrierID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&loadModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"carrier_id": carrierID,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *Repository) DeleteLoad(ctx context.Context, orgID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("id = ?", id)
		if orgID != uuid.Nil {
			query = query.Where("org_id = ?", orgID)
		}
		result := query.Delete(&loadModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("load_id = ?", id).Delete(&statusEventModel{}).Error
	})
}

func (r *Repository) ListStatusEvents(ctx context.Context, loadID uuid.UUID) ([]models.LoadStatusEvent, error) {
	var rows []statusEventModel
	if err := r.db.WithContext(ctx).Where("load_id = ?", loadID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]models.LoadStatusEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, models.LoadStatusEvent{
			ID:         row.ID,
			LoadID:     row.LoadID,
			FromStatus: row.FromStatus,
			ToStatus:   row.ToStatus,
			Actor:      row.Actor,
			Note:       row.Note,
			CreatedAt:  row.CreatedAt,
		})
	}
	return events, nil
}

func buildLoad(row *loadModel) models.Load {
	return models.Load{
		ID:            row.ID,
		OrgID:         row.OrgID,
		ReferenceCode: row.ReferenceCode,
		Status:        row.Status,
		Progress:      row.Progress,
		ShipperName:   row.ShipperName,
		Origin:        row.Origin,
		Destination:   row.Destination,
		PickupDate:    row.PickupDate,
		DeliveryDate:  row.DeliveryDate,
		EquipmentType: row.EquipmentType,
		Commodity:     row.Commodity,
		WeightLbs:     row.WeightLbs,
		ShipperRate:   row.ShipperRate,
		CarrierRate:   row.CarrierRate,
		CarrierID:     row.CarrierID,
		ShipperID:     row.ShipperID,
		SourceCallID:  row.SourceCallID,
		Notes:         row.Notes,
		Metadata:      jsonMap(row.Metadata),
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func jsonMap(data datatypes.JSON) map[string]interface{} {
	if len(data) == 0 {
		return nil
	}
	var result map[string]interface{}
	_ = json.Unmarshal(data, &result)
	return result
}
