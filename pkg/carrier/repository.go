package carrier

import (
	"context"
	"errors"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("carrier not found")
	ErrShipperNotFound = errors.New("shipper not found")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type carrierModel struct {
	ID            uuid.UUID  `gorm:"primaryKey;column:id"`
	OrgID         uuid.UUID  `gorm:"column:org_id;index"`
	Name          string     `gorm:"column:name;index"`
	MCNumber      string     `gorm:"column:mc_number"`
	DOTNumber     string     `gorm:"column:dot_number"`
	Status        string     `gorm:"column:status;index"`
	State         string     `gorm:"column:state"`
	City          string     `gorm:"column:city"`
	Phone         string     `gorm:"column:phone"`
	Email         string     `gorm:"column:email"`
	EquipmentType string     `gorm:"column:equipment_type"`
	SafetyRating  string     `gorm:"column:safety_rating"`
	VerifiedAt    *time.Time `gorm:"column:verified_at"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (carrierModel) TableName() string { return "carriers" }

type shipperModel struct {
	ID        uuid.UUID `gorm:"primaryKey;column:id"`
	OrgID     uuid.UUID `gorm:"column:org_id;index"`
	Name      string    `gorm:"column:name"`
	Contact   string    `gorm:"column:contact"`
	Phone     string    `gorm:"column:phone"`
	Email     string    `gorm:"column:email"`
	State     string    `gorm:"column:state"`
	City      string    `gorm:"column:city"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (shipperModel) TableName() string { return "shippers" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&carrierModel{},
		&shipperModel{},
	)
}

func (r *Repository) CreateCarrier(ctx context.Context, orgID uuid.UUID, req models.CreateCarrierRequest) (models.Carrier, error) {
	now := time.Now().UTC()
	row := &carrierModel{
		ID:            uuid.New(),
		OrgID:         orgID,
		Name:          req.Name,
		MCNumber:      req.MCNumber,
		DOTNumber:     req.DOTNumber,
		Status:        models.CarrierPending,
		State:         req.State,
		City:          req.City,
		Phone:         req.Phone,
		Email:         req.Email,
		EquipmentType: req.EquipmentType,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.Carrier{}, err
	}
	return buildCarrier(row), nil
}

func (r *Repository) GetCarrier(ctx context.Context, orgID, id uuid.UUID) (models.Carrier, error) {
	var row carrierModel
	query := r.db.WithContext(ctx)
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	if err := query.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Carrier{}, ErrNotFound
		}
		return models.Carrier{}, err
	}
	return buildCarrier(&row), nil
}

// SearchCarriers applies the parsed filter with paging and returns the
// page plus the unpaged total.
func (r *Repository) SearchCarriers(ctx context.Context, orgID uuid.UUID, filter SearchFilter, page, perPage int) ([]models.Carrier, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 25
	}

	query := r.db.WithContext(ctx).Model(&carrierModel{})
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.State != "" {
		query = query.Where("UPPER(state) = ?", filter.State)
	}
	if filter.Equipment != "" {
		query = query.Where("LOWER(equipment_type) = ?", filter.Equipment)
	}
	if filter.Text != "" {
		like := "%" + filter.Text + "%"
		query = query.Where("name ILIKE ? OR mc_number = ? OR dot_number = ?", like, filter.Text, filter.Text)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []carrierModel
	err := query.Order("name").Offset((page - 1) * perPage).Limit(perPage).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	carriers := make([]models.Carrier, 0, len(rows))
	for i := range rows {
		carriers = append(carriers, buildCarrier(&rows[i]))
	}
	return carriers, total, nil
}

// AllCarriers loads the org's carrier book for fuzzy matching. Capped so
// a runaway tenant cannot pull the table into memory.
func (r *Repository) AllCarriers(ctx context.Context, orgID uuid.UUID) ([]models.Carrier, error) {
	query := r.db.WithContext(ctx).Order("name").Limit(2000)
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	var rows []carrierModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	carriers := make([]models.Carrier, 0, len(rows))
	for i := range rows {
		carriers = append(carriers, buildCarrier(&rows[i]))
	}
	return carriers, nil
}

// CountByStatus powers the stats block on the carrier list.
func (r *Repository) CountByStatus(ctx context.Context, orgID uuid.UUID) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	query := r.db.WithContext(ctx).Model(&carrierModel{}).Select("status, COUNT(*) as count").Group("status")
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	var rows []statusCount
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *Repository) UpdateCarrier(ctx context.Context, orgID, id uuid.UUID, req models.UpdateCarrierRequest) (models.Carrier, error) {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.MCNumber != nil {
		updates["mc_number"] = *req.MCNumber
	}
	if req.DOTNumber != nil {
		updates["dot_number"] = *req.DOTNumber
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.State != nil {
		updates["state"] = *req.State
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.EquipmentType != nil {
		updates["equipment_type"] = *req.EquipmentType
	}
	if req.SafetyRating != nil {
		updates["safety_rating"] = *req.SafetyRating
	}

	query := r.db.WithContext(ctx).Model(&carrierModel{}).Where("id = ?", id)
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return models.Carrier{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Carrier{}, ErrNotFound
	}
	return r.GetCarrier(ctx, orgID, id)
}

// MarkVerified records the outcome of an FMCSA lookup on the carrier row.
func (r *Repository) MarkVerified(ctx context.Context, id uuid.UUID, status, safetyRating string) error {
	return r.db.WithContext(ctx).Model(&carrierModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"safety_rating": safetyRating,
			"verified_at":   time.Now().UTC(),
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *Repository) DeleteCarrier(ctx context.Context, orgID, id uuid.UUID) error {
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	result := query.Delete(&carrierModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CreateShipper(ctx context.Context, orgID uuid.UUID, req models.CreateShipperRequest) (models.Shipper, error) {
	now := time.Now().UTC()
	row := &shipperModel{
		ID:        uuid.New(),
		OrgID:     orgID,
		Name:      req.Name,
		Contact:   req.Contact,
		Phone:     req.Phone,
		Email:     req.Email,
		State:     req.State,
		City:      req.City,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.Shipper{}, err
	}
	return buildShipper(row), nil
}

func (r *Repository) ListShippers(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Shipper, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Order("name").Limit(limit)
	if orgID != uuid.Nil {
		query = query.Where("org_id = ?", orgID)
	}
	var rows []shipperModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	shippers := make([]models.Shipper, 0, len(rows))
	for i := range rows {
		shippers = append(shippers, buildShipper(&rows[i]))
	}
	return shippers, nil
}

func buildCarrier(row *carrierModel) models.Carrier {
	return models.Carrier{
		ID:            row.ID,
		OrgID:         row.OrgID,
		Name:          row.Name,
		MCNumber:      row.MCNumber,
		DOTNumber:     row.DOTNumber,
		Status:        row.Status,
		State:         row.State,
		City:          row.City,
		Phone:         row.Phone,
		Email:         row.Email,
		EquipmentType: row.EquipmentType,
		SafetyRating:  row.SafetyRating,
		VerifiedAt:    row.VerifiedAt,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func buildShipper(row *shipperModel) models.Shipper {
	return models.Shipper{
		ID:        row.ID,
		OrgID:     row.OrgID,
		Name:      row.Name,
		Contact:   row.Contact,
		Phone:     row.Phone,
		Email:     row.Email,
		State:     row.State,
		City:      row.City,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
