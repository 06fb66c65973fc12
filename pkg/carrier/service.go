package carrier

import (
	"context"
	"errors"
	"strings"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
)

const eventSource = "carrier-service"

var (
	errMissingName = errors.New("name is required")
	errMissingDOT  = errors.New("carrier has no DOT number on file")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// EventPublisher pushes carrier events onto the bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error
}

type Service struct {
	repo      *Repository
	fmcsa     *FMCSAClient
	recents   *RecentSearches
	publisher EventPublisher
}

func NewService(repo *Repository, fmcsa *FMCSAClient, recents *RecentSearches, publisher EventPublisher) *Service {
	return &Service{repo: repo, fmcsa: fmcsa, recents: recents, publisher: publisher}
}

// Pagination describes the page served by a search.
type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
}

// Stats summarizes the org's carrier book by status.
type Stats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Pending  int64 `json:"pending"`
	DoNotUse int64 `json:"do_not_use"`
}

type SearchResult struct {
	Carriers   []models.Carrier `json:"carriers"`
	Pagination Pagination       `json:"pagination"`
	Stats      Stats            `json:"stats"`
}

func (s *Service) Search(ctx context.Context, orgID uuid.UUID, query string, page, perPage int) (SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 25
	}

	filter := ParseQuery(query)
	carriers, total, err := s.repo.SearchCarriers(ctx, orgID, filter, page, perPage)
	if err != nil {
		return SearchResult{}, err
	}

	counts, err := s.repo.CountByStatus(ctx, orgID)
	if err != nil {
		return SearchResult{}, err
	}
	stats := Stats{
		Active:   counts[models.CarrierActive],
		Pending:  counts[models.CarrierPending],
		DoNotUse: counts[models.CarrierDoNotUse],
	}
	stats.Total = stats.Active + stats.Pending + stats.DoNotUse

	pages := int((total + int64(perPage) - 1) / int64(perPage))
	if s.recents != nil {
		s.recents.Record(ctx, orgID, query)
	}

	return SearchResult{
		Carriers:   carriers,
		Pagination: Pagination{Page: page, PerPage: perPage, Total: total, Pages: pages},
		Stats:      stats,
	}, nil
}

func (s *Service) RecentSearches(ctx context.Context, orgID uuid.UUID) []string {
	if s.recents == nil {
		return nil
	}
	return s.recents.List(ctx, orgID)
}

func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req models.CreateCarrierRequest) (models.Carrier, error) {
	if strings.TrimSpace(req.Name) == "" {
		return models.Carrier{}, ValidationError{reason: errMissingName}
	}
	req.Name = strings.TrimSpace(req.Name)

	created, err := s.repo.CreateCarrier(ctx, orgID, req)
	if err != nil {
		return models.Carrier{}, err
	}
	logger.Log.WithFields(map[string]interface{}{
		"carrier_id": created.ID,
		"org_id":     orgID,
		"name":       created.Name,
	}).Info("Carrier created")
	return created, nil
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (models.Carrier, error) {
	return s.repo.GetCarrier(ctx, orgID, id)
}

func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req models.UpdateCarrierRequest) (models.Carrier, error) {
	if req.Status != nil {
		switch *req.Status {
		case models.CarrierActive, models.CarrierPending, models.CarrierDoNotUse:
		default:
			return models.Carrier{}, ValidationError{reason: errors.New("unknown carrier status")}
		}
	}
	return s.repo.UpdateCarrier(ctx, orgID, id, req)
}

func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	return s.repo.DeleteCarrier(ctx, orgID, id)
}

// Verify pulls the carrier's federal record, updates the local row, and
// announces the result. Out-of-service or unauthorized carriers are
// flagged do_not_use so dispatch cannot book them.
func (s *Service) Verify(ctx context.Context, orgID, id uuid.UUID) (models.FMCSASnapshot, error) {
	carrier, err := s.repo.GetCarrier(ctx, orgID, id)
	if err != nil {
		return models.FMCSASnapshot{}, err
	}
	if strings.TrimSpace(carrier.DOTNumber) == "" {
		return models.FMCSASnapshot{}, ValidationError{reason: errMissingDOT}
	}
	if s.fmcsa == nil {
		return models.FMCSASnapshot{}, errors.New("fmcsa client not configured")
	}

	snapshot, err := s.fmcsa.Lookup(ctx, carrier.DOTNumber)
	if err != nil {
		return models.FMCSASnapshot{}, err
	}

	status := models.CarrierActive
	if snapshot.OutOfService || snapshot.OperatingStatus != "AUTHORIZED" {
		status = models.CarrierDoNotUse
	}
	if err := s.repo.MarkVerified(ctx, id, status, snapshot.SafetyRating); err != nil {
		return models.FMCSASnapshot{}, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishEvent(ctx, models.EventCarrierVerified, eventSource, map[string]interface{}{
			"carrier_id":       id.String(),
			"org_id":           orgID.String(),
			"dot_number":       snapshot.DOTNumber,
			"status":           status,
			"operating_status": snapshot.OperatingStatus,
		}); err != nil {
			logger.Log.WithError(err).WithField("carrier_id", id).Warn("Failed to publish verification event")
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"carrier_id": id,
		"dot_number": snapshot.DOTNumber,
		"status":     status,
	}).Info("Carrier verified against FMCSA")
	return snapshot, nil
}

func (s *Service) CreateShipper(ctx context.Context, orgID uuid.UUID, req models.CreateShipperRequest) (models.Shipper, error) {
	if strings.TrimSpace(req.Name) == "" {
		return models.Shipper{}, ValidationError{reason: errMissingName}
	}
	req.Name = strings.TrimSpace(req.Name)
	return s.repo.CreateShipper(ctx, orgID, req)
}

func (s *Service) ListShippers(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Shipper, error) {
	return s.repo.ListShippers(ctx, orgID, limit)
}
