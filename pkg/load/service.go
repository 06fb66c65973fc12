package load

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/freightdesk-ai/platform/pkg/observability/metrics"
	"github.com/google/uuid"
)

const eventSource = "load-service"

var (
	errMissingShipper     = errors.New("shipper_name is required")
	errMissingOrigin      = errors.New("origin is required")
	errMissingDestination = errors.New("destination is required")
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

// EventPublisher pushes workflow events onto the bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error
}

// CallGetter resolves the call a load was drafted from, for the detail
// view. call.Repository satisfies it.
type CallGetter interface {
	GetCall(ctx context.Context, orgID, id uuid.UUID) (models.Call, error)
}

type Service struct {
	repo      *Repository
	publisher EventPublisher
	calls     CallGetter
}

func NewService(repo *Repository, publisher EventPublisher, calls CallGetter) *Service {
	return &Service{repo: repo, publisher: publisher, calls: calls}
}

func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req models.CreateLoadRequest) (models.Load, error) {
	if strings.TrimSpace(req.ShipperName) == "" {
		return models.Load{}, ValidationError{reason: errMissingShipper}
	}
	if strings.TrimSpace(req.Origin) == "" {
		return models.Load{}, ValidationError{reason: errMissingOrigin}
	}
	if strings.TrimSpace(req.Destination) == "" {
		return models.Load{}, ValidationError{reason: errMissingDestination}
	}

	created, err := s.repo.CreateLoad(ctx, models.Load{
		OrgID:         orgID,
		Status:        StatusQuoted,
		ShipperName:   strings.TrimSpace(req.ShipperName),
		Origin:        strings.TrimSpace(req.Origin),
		Destination:   strings.TrimSpace(req.Destination),
		PickupDate:    req.PickupDate,
		DeliveryDate:  req.DeliveryDate,
		EquipmentType: req.EquipmentType,
		Commodity:     req.Commodity,
		WeightLbs:     req.WeightLbs,
		ShipperRate:   req.ShipperRate,
		CarrierRate:   req.CarrierRate,
		CarrierID:     req.CarrierID,
		ShipperID:     req.ShipperID,
		SourceCallID:  req.SourceCallID,
		Notes:         req.Notes,
	})
	if err != nil {
		return models.Load{}, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"load_id":   created.ID,
		"org_id":    orgID,
		"reference": created.ReferenceCode,
	}).Info("Load created")
	return created, nil
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (models.Load, error) {
	return s.repo.GetLoad(ctx, orgID, id)
}

// LoadDetail is the detail view: the load, its legal next statuses, and
// the source call when the load was drafted from one.
type LoadDetail struct {
	Load           models.Load
	Transitions    []string
	AssociatedCall *models.Call
}

func (s *Service) Detail(ctx context.Context, orgID, id uuid.UUID) (LoadDetail, error) {
	l, err := s.repo.GetLoad(ctx, orgID, id)
	if err != nil {
		return LoadDetail{}, err
	}

	detail := LoadDetail{Load: l, Transitions: AvailableTransitions(l)}
	if l.SourceCallID != nil && s.calls != nil {
		if rec, err := s.calls.GetCall(ctx, orgID, *l.SourceCallID); err == nil {
			detail.AssociatedCall = &rec
		} else {
			logger.Log.WithError(err).WithField("load_id", id).Warn("Failed to resolve source call")
		}
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]models.Load, error) {
	return s.repo.ListLoads(ctx, orgID, filter)
}

func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req models.UpdateLoadRequest) (models.Load, error) {
	return s.repo.UpdateLoad(ctx, orgID, id, req)
}

func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	return s.repo.DeleteLoad(ctx, orgID, id)
}

func (s *Service) StatusEvents(ctx context.Context, orgID, id uuid.UUID) ([]models.LoadStatusEvent, error) {
	if _, err := s.repo.GetLoad(ctx, orgID, id); err != nil {
		return nil, err
	}
	return s.repo.ListStatusEvents(ctx, id)
}

// UpdateStatus runs the workflow validation, persists the move with its
// audit row, and announces it on the bus. A rejected move leaves the
// load untouched.
func (s *Service) UpdateStatus(ctx context.Context, orgID, id uuid.UUID, req models.TransitionRequest, actor string) (models.Load, error) {
	l, err := s.repo.GetLoad(ctx, orgID, id)
	if err != nil {
		return models.Load{}, err
	}

	if err := Validate(l, req.Status); err != nil {
		metrics.Registry().LoadTransitions.WithLabelValues("rejected").Inc()
		return models.Load{}, err
	}

	progress := NextProgress(req.Status, l.Progress)
	applied, err := s.repo.ApplyTransition(ctx, id, l.Status, req.Status, progress, actor, req.Note)
	if err != nil {
		return models.Load{}, err
	}
	if !applied {
		metrics.Registry().LoadTransitions.WithLabelValues("rejected").Inc()
		return models.Load{}, &TransitionError{From: l.Status, To: req.Status, Reason: "load changed while the request was in flight"}
	}
	metrics.Registry().LoadTransitions.WithLabelValues("accepted").Inc()

	updated, err := s.repo.GetLoad(ctx, orgID, id)
	if err != nil {
		return models.Load{}, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishEvent(ctx, models.EventLoadStatusChanged, eventSource, map[string]interface{}{
			"load_id":     id.String(),
			"org_id":      orgID.String(),
			"from_status": l.Status,
			"to_status":   req.Status,
			"actor":       actor,
		}); err != nil {
			logger.Log.WithError(err).WithField("load_id", id).Warn("Failed to publish status change event")
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"load_id": id,
		"from":    l.Status,
		"to":      req.Status,
		"actor":   actor,
	}).Info("Load status changed")
	return updated, nil
}

// CreateDraft creates a load from a call extraction. A matched carrier
// starts the load quoted with the carrier attached; otherwise it lands
// in needs_carrier so the board shows it is waiting on truck assignment.
func (s *Service) CreateDraft(ctx context.Context, orgID uuid.UUID, ex models.CallExtraction, carrierID *uuid.UUID) (models.Load, error) {
	status := StatusNeedsCarrier
	if carrierID != nil {
		status = StatusQuoted
	}

	draft := models.Load{
		OrgID:         orgID,
		Status:        status,
		Origin:        ex.Origin,
		Destination:   ex.Destination,
		EquipmentType: ex.EquipmentType,
		Commodity:     ex.Commodity,
		WeightLbs:     ex.WeightLbs,
		ShipperRate:   parseRateCents(ex.Rate),
		CarrierID:     carrierID,
		SourceCallID:  &ex.CallID,
		Notes:         "Drafted from call transcription",
		Metadata: map[string]interface{}{
			"draft_source":     "call",
			"confidence_score": ex.ConfidenceScore,
		},
	}

	created, err := s.repo.CreateLoad(ctx, draft)
	if err != nil {
		return models.Load{}, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"load_id":   created.ID,
		"call_id":   ex.CallID,
		"status":    created.Status,
		"reference": created.ReferenceCode,
	}).Info("Draft load created from call")
	return created, nil
}

// parseRateCents turns an extracted rate string like "1,850" or
// "$1,850.50" into cents. Unparseable input yields zero; the operator
// fills the rate in by hand.
func parseRateCents(raw string) int64 {
	cleaned := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return 0
	}
	return int64(value*100 + 0.5)
}

// Margin reports shipper minus carrier rate in cents.
func Margin(l models.Load) int64 {
	return l.ShipperRate - l.CarrierRate
}

// ParseDay parses a day filter from the query string. Empty input means
// no filter.
func ParseDay(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
}
