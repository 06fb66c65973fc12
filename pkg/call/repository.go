package call

import (
	"context"
	"errors"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("call not found")

// ErrAlreadyProcessing is returned when a transcription run is already
// in flight for the call.
var ErrAlreadyProcessing = errors.New("transcription already in progress")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type callModel struct {
	ID              uuid.UUID  `gorm:"primaryKey;column:id"`
	OrgID           uuid.UUID  `gorm:"column:org_id;index"`
	CustomerName    string     `gorm:"column:customer_name"`
	CustomerCompany string     `gorm:"column:customer_company"`
	SalesRep        string     `gorm:"column:sales_rep"`
	Direction       string     `gorm:"column:direction"`
	CallDate        time.Time  `gorm:"column:call_date"`
	DurationSeconds int        `gorm:"column:duration_seconds"`
	AudioPath       string     `gorm:"column:audio_path"`
	AudioFormat     string     `gorm:"column:audio_format"`
	AudioSizeBytes  int64      `gorm:"column:audio_size_bytes"`
	Status          string     `gorm:"column:status;index"`
	Progress        int        `gorm:"column:progress"`
	StatusMessage   string     `gorm:"column:status_message"`
	Sentiment       string     `gorm:"column:sentiment"`
	Summary         string     `gorm:"column:summary"`
	LoadID          *uuid.UUID `gorm:"column:load_id"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (callModel) TableName() string { return "calls" }

type utteranceModel struct {
	ID         uuid.UUID `gorm:"primaryKey;column:id"`
	CallID     uuid.UUID `gorm:"column:call_id;index"`
	Sequence   int       `gorm:"column:sequence"`
	Speaker    string    `gorm:"column:speaker"`
	Text       string    `gorm:"column:text"`
	StartTime  float64   `gorm:"column:start_time"`
	EndTime    float64   `gorm:"column:end_time"`
	Sentiment  string    `gorm:"column:sentiment"`
	Confidence *float64  `gorm:"column:confidence"`
}

func (utteranceModel) TableName() string { return "call_utterances" }

type insightModel struct {
	ID         uuid.UUID `gorm:"primaryKey;column:id"`
	CallID     uuid.UUID `gorm:"column:call_id;index"`
	Type       string    `gorm:"column:type"`
	Text       string    `gorm:"column:text"`
	Confidence float64   `gorm:"column:confidence"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (insightModel) TableName() string { return "call_insights" }

type fieldModel struct {
	ID         uuid.UUID `gorm:"primaryKey;column:id"`
	CallID     uuid.UUID `gorm:"column:call_id;index"`
	Name       string    `gorm:"column:name"`
	Value      string    `gorm:"column:value"`
	Confidence float64   `gorm:"column:confidence"`
	Source     string    `gorm:"column:source"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (fieldModel) TableName() string { return "call_fields" }

type extractionModel struct {
	CallID          uuid.UUID  `gorm:"primaryKey;column:call_id"`
	Origin          string     `gorm:"column:origin"`
	Destination     string     `gorm:"column:destination"`
	Rate            string     `gorm:"column:rate"`
	EquipmentType   string     `gorm:"column:equipment_type"`
	Commodity       string     `gorm:"column:commodity"`
	WeightLbs       int        `gorm:"column:weight_lbs"`
	CarrierName     string     `gorm:"column:carrier_name"`
	ConfidenceScore float64    `gorm:"column:confidence_score"`
	LoadID          *uuid.UUID `gorm:"column:load_id"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
}

func (extractionModel) TableName() string { return "call_extractions" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&callModel{},
		&utteranceModel{},
		&insightModel{},
		&fieldModel{},
		&extractionModel{},
	)
}

func (r *Repository) CreateCall(ctx context.Context, c models.Call) (models.Call, error) {
	now := time.Now().UTC()
	row := &callModel{
		ID:              c.ID,
		OrgID:           c.OrgID,
		CustomerName:    c.CustomerName,
		CustomerCompany: c.CustomerCompany,
		SalesRep:        c.SalesRep,
		Direction:       c.Direction,
		CallDate:        c.CallDate,
		DurationSeconds: c.DurationSeconds,
		AudioPath:       c.AudioPath,
		AudioFormat:     c.AudioFormat,
		AudioSizeBytes:  c.AudioSizeBytes,
		Status:          StatusUploaded,
		Progress:        0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CallDate.IsZero() {
		row.CallDate = now
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.Call{}, err
	}
	return buildCall(row), nil
}

// GetCall scopes by organization unless orgID is uuid.Nil, which the
// pipeline uses for internal access.
func (r *Repository) GetCall(ctx context.Context, orgID, id uuid.UUID) (models.Call, error) {
	var row callModel
	query := r.db.WithContext(ctx)
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	if err := query.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Call{}, ErrNotFound
		}
		return models.Call{}, err
	}
	return buildCall(&row), nil
}

func (r *Repository) ListCalls(ctx context.Context, orgID uuid.UUID, status string, limit int) ([]models.Call, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var rows []callModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	calls := make([]models.Call, 0, len(rows))
	for i := range rows {
		calls = append(calls, buildCall(&rows[i]))
	}
	return calls, nil
}

// UpdateContact edits the operator-editable fields only.
func (r *Repository) UpdateContact(ctx context.Context, orgID, id uuid.UUID, customerName, salesRep *string) (models.Call, error) {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if customerName != nil {
		updates["customer_name"] = *customerName
	}
	if salesRep != nil {
		updates["sales_rep"] = *salesRep
	}

	query := r.db.WithContext(ctx).Model(&callModel{}).Where("id = ?", id)
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return models.Call{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Call{}, ErrNotFound
	}
	return r.GetCall(ctx, orgID, id)
}

// ClaimForTranscription atomically admits a pipeline run: the status
// flips to processing only when the call is currently uploaded or
// failed. A zero row count means somebody else holds it or the state
// is wrong; the caller distinguishes by re-reading.
func (r *Repository) ClaimForTranscription(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&callModel{}).
		Where("id = ? AND status IN ?", id, []string{StatusUploaded, StatusFailed}).
		Updates(map[string]interface{}{
			"status":         StatusProcessing,
			"progress":       0,
			"status_message": "queued for transcription",
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int, message string) error {
	return r.db.WithContext(ctx).Model(&callModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"progress":       ClampProgress(status, progress),
			"status_message": message,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *Repository) UpdateProgress(ctx context.Context, id uuid.UUID, status string, progress int) error {
	return r.db.WithContext(ctx).Model(&callModel{}).
		Where("id = ? AND status = ?", id, status).
		Updates(map[string]interface{}{
			"progress":   ClampProgress(status, progress),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).Model(&callModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         StatusFailed,
			"status_message": message,
			"updated_at":     time.Now().UTC(),
		}).Error
}

// FinishCall records the pipeline's final verdict on the call row.
func (r *Repository) FinishCall(ctx context.Context, id uuid.UUID, durationSeconds int, sentiment, summary string) error {
	updates := map[string]interface{}{
		"status":         StatusCompleted,
		"progress":       100,
		"status_message": "",
		"sentiment":      sentiment,
		"summary":        summary,
		"updated_at":     time.Now().UTC(),
	}
	if durationSeconds > 0 {
		updates["duration_seconds"] = durationSeconds
	}
	return r.db.WithContext(ctx).Model(&callModel{}).Where("id = ?", id).Updates(updates).Error
}

func (r *Repository) AttachLoad(ctx context.Context, callID, loadID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&callModel{}).
		Where("id = ?", callID).
		Updates(map[string]interface{}{
			"load_id":    loadID,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ReplaceTranscript swaps the call's transcript atomically so a
// redelivered pipeline job cannot double-append.
func (r *Repository) ReplaceTranscript(ctx context.Context, callID uuid.UUID, utterances []models.TranscriptUtterance) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("call_id = ?", callID).Delete(&utteranceModel{}).Error; err != nil {
			return err
		}
		rows := make([]utteranceModel, 0, len(utterances))
		for i, u := range utterances {
			rows = append(rows, utteranceModel{
				ID:         uuid.New(),
				CallID:     callID,
				Sequence:   i,
				Speaker:    u.Speaker,
				Text:       u.Text,
				StartTime:  u.StartTime,
				EndTime:    u.EndTime,
				Sentiment:  u.Sentiment,
				Confidence: u.Confidence,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (r *Repository) GetTranscript(ctx context.Context, callID uuid.UUID) ([]models.TranscriptUtterance, error) {
	var rows []utteranceModel
	if err := r.db.WithContext(ctx).Where("call_id = ?", callID).Order("start_time, sequence").Find(&rows).Error; err != nil {
		return nil, err
	}
	utterances := make([]models.TranscriptUtterance, 0, len(rows))
	for _, row := range rows {
		utterances = append(utterances, models.TranscriptUtterance{
			ID:         row.ID,
			CallID:     row.CallID,
			Sequence:   row.Sequence,
			Speaker:    row.Speaker,
			Text:       row.Text,
			StartTime:  row.StartTime,
			EndTime:    row.EndTime,
			Sentiment:  row.Sentiment,
			Confidence: row.Confidence,
		})
	}
	return utterances, nil
}

func (r *Repository) ReplaceInsights(ctx context.Context, callID uuid.UUID, insights []models.CallInsight) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("call_id = ?", callID).Delete(&insightModel{}).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		rows := make([]insightModel, 0, len(insights))
		for _, in := range insights {
			rows = append(rows, insightModel{
				ID:         uuid.New(),
				CallID:     callID,
				Type:       in.Type,
				Text:       in.Text,
				Confidence: in.Confidence,
				CreatedAt:  now,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (r *Repository) GetInsights(ctx context.Context, callID uuid.UUID) ([]models.CallInsight, error) {
	var rows []insightModel
	if err := r.db.WithContext(ctx).Where("call_id = ?", callID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	insights := make([]models.CallInsight, 0, len(rows))
	for _, row := range rows {
		insights = append(insights, models.CallInsight{
			ID:         row.ID,
			CallID:     row.CallID,
			Type:       row.Type,
			Text:       row.Text,
			Confidence: row.Confidence,
			CreatedAt:  row.CreatedAt,
		})
	}
	return insights, nil
}

func (r *Repository) ReplaceFields(ctx context.Context, callID uuid.UUID, fields []models.CallField) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("call_id = ?", callID).Delete(&fieldModel{}).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		rows := make([]fieldModel, 0, len(fields))
		for _, f := range fields {
			rows = append(rows, fieldModel{
				ID:         uuid.New(),
				CallID:     callID,
				Name:       f.Name,
				Value:      f.Value,
				Confidence: f.Confidence,
				Source:     f.Source,
				CreatedAt:  now,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (r *Repository) GetFields(ctx context.Context, callID uuid.UUID) ([]models.CallField, error) {
	var rows []fieldModel
	if err := r.db.WithContext(ctx).Where("call_id = ?", callID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	fields := make([]models.CallField, 0, len(rows))
	for _, row := range rows {
		fields = append(fields, models.CallField{
			ID:         row.ID,
			CallID:     row.CallID,
			Name:       row.Name,
			Value:      row.Value,
			Confidence: row.Confidence,
			Source:     row.Source,
			CreatedAt:  row.CreatedAt,
		})
	}
	return fields, nil
}

func (r *Repository) SaveExtraction(ctx context.Context, ex models.CallExtraction) error {
	row := &extractionModel{
		CallID:          ex.CallID,
		Origin:          ex.Origin,
		Destination:     ex.Destination,
		Rate:            ex.Rate,
		EquipmentType:   ex.EquipmentType,
		Commodity:       ex.Commodity,
		WeightLbs:       ex.WeightLbs,
		CarrierName:     ex.CarrierName,
		ConfidenceScore: ex.ConfidenceScore,
		LoadID:          ex.LoadID,
		CreatedAt:       time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *Repository) GetExtraction(ctx context.Context, callID uuid.UUID) (models.CallExtraction, error) {
	var row extractionModel
	if err := r.db.WithContext(ctx).First(&row, "call_id = ?", callID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.CallExtraction{}, ErrNotFound
		}
		return models.CallExtraction{}, err
	}
	return models.CallExtraction{
		CallID:          row.CallID,
		Origin:          row.Origin,
		Destination:     row.Destination,
		Rate:            row.Rate,
		EquipmentType:   row.EquipmentType,
		Commodity:       row.Commodity,
		WeightLbs:       row.WeightLbs,
		CarrierName:     row.CarrierName,
		ConfidenceScore: row.ConfidenceScore,
		LoadID:          row.LoadID,
		CreatedAt:       row.CreatedAt,
	}, nil
}

func buildCall(row *callModel) models.Call {
	return models.Call{
		ID:              row.ID,
		OrgID:           row.OrgID,
		CustomerName:    row.CustomerName,
		CustomerCompany: row.CustomerCompany,
		SalesRep:        row.SalesRep,
		Direction:       row.Direction,
		CallDate:        row.CallDate,
		DurationSeconds: row.DurationSeconds,
		AudioPath:       row.AudioPath,
		AudioFormat:     row.AudioFormat,
		AudioSizeBytes:  row.AudioSizeBytes,
		Status:          row.Status,
		Progress:        row.Progress,
		StatusMessage:   row.StatusMessage,
		Sentiment:       row.Sentiment,
		Summary:         row.Summary,
		LoadID:          row.LoadID,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}
