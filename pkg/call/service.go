package call

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/freightdesk-ai/platform/pkg/crm"
	"github.com/freightdesk-ai/platform/pkg/observability/metrics"
	"github.com/google/uuid"
)

// EventPublisher is the slice of the Kafka producer the service needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

const eventSource = "call-service"

type Service struct {
	repo      *Repository
	validator *Validator
	publisher EventPublisher
	formatter *crm.Formatter
	cache     *SummaryCache
	uploadDir string

	watcher  *Watcher
	watchCtx context.Context
}

func NewService(repo *Repository, validator *Validator, publisher EventPublisher, formatter *crm.Formatter, cache *SummaryCache, uploadDir string) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		formatter: formatter,
		cache:     cache,
		uploadDir: uploadDir,
	}
}

// EnableWatching wires the completion watcher. ctx bounds the lifetime
// of every poller the service starts; cancel it on shutdown.
func (s *Service) EnableWatching(ctx context.Context, w *Watcher) {
	s.watchCtx = ctx
	s.watcher = w
}

// Upload validates and stores the audio file, creates the call record
// in uploaded status, and announces it.
func (s *Service) Upload(ctx context.Context, orgID uuid.UUID, req models.UploadCallRequest, filename string, size int64, file io.Reader) (models.Call, error) {
	format, err := s.validator.ValidateUpload(filename, size, req)
	if err != nil {
		return models.Call{}, err
	}

	callID := uuid.New()
	dir := filepath.Join(s.uploadDir, orgID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.Call{}, fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s", callID, format))

	dst, err := os.Create(path)
	if err != nil {
		return models.Call{}, fmt.Errorf("create audio file: %w", err)
	}
	written, err := io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return models.Call{}, fmt.Errorf("store audio file: %w", err)
	}

	direction := strings.TrimSpace(strings.ToLower(req.Direction))
	if direction == "" {
		direction = "inbound"
	}

	created, err := s.repo.CreateCall(ctx, models.Call{
		ID:              callID,
		OrgID:           orgID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerCompany: strings.TrimSpace(req.CustomerCompany),
		SalesRep:        strings.TrimSpace(req.SalesRep),
		Direction:       direction,
		CallDate:        req.CallDate,
		AudioPath:       path,
		AudioFormat:     format,
		AudioSizeBytes:  written,
	})
	if err != nil {
		_ = os.Remove(path)
		return models.Call{}, err
	}

	metrics.Registry().CallsUploaded.Inc()
	_ = s.publisher.PublishEvent(ctx, models.EventCallUploaded, eventSource, map[string]interface{}{
		"call_id": created.ID.String(),
		"org_id":  orgID.String(),
	})

	logger.Log.WithFields(map[string]interface{}{
		"call_id": created.ID,
		"format":  format,
		"bytes":   written,
	}).Info("Call uploaded")

	return created, nil
}

// StartTranscription admits one pipeline run for the call. Calls that
// already have a run in flight return ErrAlreadyProcessing; calls in a
// non-startable status return a validation error.
func (s *Service) StartTranscription(ctx context.Context, orgID, callID uuid.UUID) (models.TranscriptionAccepted, error) {
	current, err := s.repo.GetCall(ctx, orgID, callID)
	if err != nil {
		return models.TranscriptionAccepted{}, err
	}
	if IsActive(current.Status) {
		return models.TranscriptionAccepted{}, ErrAlreadyProcessing
	}
	if !CanStartTranscription(current.Status) {
		return models.TranscriptionAccepted{}, ValidationError{reason: fmt.Errorf("cannot start transcription while %s", current.Status)}
	}

	claimed, err := s.repo.ClaimForTranscription(ctx, callID)
	if err != nil {
		return models.TranscriptionAccepted{}, err
	}
	if !claimed {
		// Lost the race: somebody else moved the call first.
		latest, err := s.repo.GetCall(ctx, orgID, callID)
		if err != nil {
			return models.TranscriptionAccepted{}, err
		}
		if IsActive(latest.Status) {
			return models.TranscriptionAccepted{}, ErrAlreadyProcessing
		}
		return models.TranscriptionAccepted{}, ValidationError{reason: fmt.Errorf("cannot start transcription while %s", latest.Status)}
	}

	transcriptionID := uuid.New()
	if err := s.publisher.PublishEvent(ctx, models.EventCallTranscribe, eventSource, map[string]interface{}{
		"call_id":          callID.String(),
		"org_id":           orgID.String(),
		"transcription_id": transcriptionID.String(),
		"audio_path":       current.AudioPath,
	}); err != nil {
		_ = s.repo.MarkFailed(ctx, callID, "failed to queue transcription")
		return models.TranscriptionAccepted{}, fmt.Errorf("queue transcription: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, callID)
	}
	if s.watcher != nil {
		s.watcher.Watch(s.watchCtx, orgID, callID)
	}

	logger.Log.WithFields(map[string]interface{}{
		"call_id":          callID,
		"transcription_id": transcriptionID,
	}).Info("Transcription started")

	return models.TranscriptionAccepted{
		CallID:          callID,
		TranscriptionID: transcriptionID,
		Status:          StatusProcessing,
	}, nil
}

func (s *Service) GetCall(ctx context.Context, orgID, callID uuid.UUID) (models.Call, error) {
	return s.repo.GetCall(ctx, orgID, callID)
}

func (s *Service) ListCalls(ctx context.Context, orgID uuid.UUID, status string, limit int) ([]models.Call, error) {
	return s.repo.ListCalls(ctx, orgID, status, limit)
}

func (s *Service) UpdateContact(ctx context.Context, orgID, callID uuid.UUID, customerName, salesRep *string) (models.Call, error) {
	updated, err := s.repo.UpdateContact(ctx, orgID, callID, customerName, salesRep)
	if err != nil {
		return models.Call{}, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, callID)
	}
	return updated, nil
}

// Transcript returns the utterances ordered by start time, serving
// completed calls from the summary cache when possible.
func (s *Service) Transcript(ctx context.Context, orgID, callID uuid.UUID) ([]models.TranscriptUtterance, error) {
	if _, err := s.repo.GetCall(ctx, orgID, callID); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if summary, ok := s.cache.Get(ctx, callID); ok {
			return summary.Transcript, nil
		}
	}
	return s.repo.GetTranscript(ctx, callID)
}

func (s *Service) Insights(ctx context.Context, orgID, callID uuid.UUID) ([]models.CallInsight, error) {
	if _, err := s.repo.GetCall(ctx, orgID, callID); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if summary, ok := s.cache.Get(ctx, callID); ok {
			return summary.Insights, nil
		}
	}
	return s.repo.GetInsights(ctx, callID)
}

func (s *Service) Fields(ctx context.Context, orgID, callID uuid.UUID) ([]models.CallField, error) {
	if _, err := s.repo.GetCall(ctx, orgID, callID); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if summary, ok := s.cache.Get(ctx, callID); ok {
			return summary.Fields, nil
		}
	}
	return s.repo.GetFields(ctx, callID)
}

// CRMOutput renders the call's extracted data in the requested format.
func (s *Service) CRMOutput(ctx context.Context, orgID, callID uuid.UUID, format string) (string, error) {
	current, err := s.repo.GetCall(ctx, orgID, callID)
	if err != nil {
		return "", err
	}
	fields, err := s.Fields(ctx, orgID, callID)
	if err != nil {
		return "", err
	}
	insights, err := s.Insights(ctx, orgID, callID)
	if err != nil {
		return "", err
	}

	output, err := s.formatter.Generate(format, current, fields, insights)
	if err != nil {
		return "", ValidationError{reason: err}
	}
	return output, nil
}

// Extraction returns the load-shaped payload for a processed call.
func (s *Service) Extraction(ctx context.Context, orgID, callID uuid.UUID) (models.CallExtraction, error) {
	if _, err := s.repo.GetCall(ctx, orgID, callID); err != nil {
		return models.CallExtraction{}, err
	}
	return s.repo.GetExtraction(ctx, callID)
}

// cleanupAge bounds how long failed uploads keep their audio on disk.
const cleanupAge = 30 * 24 * time.Hour

// CleanupOrphanedAudio removes audio files older than cleanupAge whose
// call no longer exists. Runs from a ticker in main.
func (s *Service) CleanupOrphanedAudio(ctx context.Context) error {
	cutoff := time.Now().Add(-cleanupAge)
	return filepath.Walk(s.uploadDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			return nil
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		id, parseErr := uuid.Parse(base)
		if parseErr != nil {
			return nil
		}
		if _, getErr := s.repo.GetCall(ctx, uuid.Nil, id); errors.Is(getErr, ErrNotFound) {
			if rmErr := os.Remove(path); rmErr == nil {
				logger.Log.WithField("path", path).Info("Removed orphaned audio file")
			}
		}
		return nil
	})
}
