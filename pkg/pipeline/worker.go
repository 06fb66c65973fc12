package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/freightdesk-ai/platform/pkg/call"
	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/freightdesk-ai/platform/pkg/freight"
	"github.com/freightdesk-ai/platform/pkg/observability/metrics"
	"github.com/google/uuid"
)

const eventSource = "pipeline-service"

// maxTranscriptionPolls bounds how long a provider job may stay
// non-terminal before the call fails.
const maxTranscriptionPolls = 120

// Store is the slice of the call repository the worker writes through.
type Store interface {
	GetCall(ctx context.Context, orgID, id uuid.UUID) (models.Call, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int, message string) error
	UpdateProgress(ctx context.Context, id uuid.UUID, status string, progress int) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	FinishCall(ctx context.Context, id uuid.UUID, durationSeconds int, sentiment, summary string) error
	AttachLoad(ctx context.Context, callID, loadID uuid.UUID) error
	ReplaceTranscript(ctx context.Context, callID uuid.UUID, utterances []models.TranscriptUtterance) error
	ReplaceInsights(ctx context.Context, callID uuid.UUID, insights []models.CallInsight) error
	ReplaceFields(ctx context.Context, callID uuid.UUID, fields []models.CallField) error
	SaveExtraction(ctx context.Context, ex models.CallExtraction) error
}

// EventPublisher is the slice of the Kafka producer the worker needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// LoadDrafter creates draft loads from finished extractions.
type LoadDrafter interface {
	CreateDraft(ctx context.Context, orgID uuid.UUID, ex models.CallExtraction, carrierID *uuid.UUID) (models.Load, error)
}

// CarrierMatcher fuzzy-links carrier names mentioned on calls.
type CarrierMatcher interface {
	MatchName(ctx context.Context, orgID uuid.UUID, name string) (*models.Carrier, float64, error)
}

type WorkerConfig struct {
	Store        Store
	Speech       SpeechProvider
	Extractor    *Extractor
	Miner        *Miner
	Scorer       *SentimentScorer
	Cache        *ExtractionCache
	Catalog      freight.Catalog
	Publisher    EventPublisher
	Drafter      LoadDrafter
	Carriers     CarrierMatcher
	ArtifactDir  string
	PollInterval time.Duration
	MaxJobs      int
}

// Worker drives uploaded calls through transcription, extraction, and
// finalization. One job runs per call at a time; MaxJobs bounds total
// concurrency.
type Worker struct {
	cfg WorkerConfig
	sem chan struct{}
	wg  sync.WaitGroup

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Store == nil || cfg.Speech == nil || cfg.Miner == nil || cfg.Publisher == nil {
		return nil, fmt.Errorf("worker requires store, speech provider, miner, and publisher")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 1
	}
	if cfg.ArtifactDir != "" {
		if err := os.MkdirAll(cfg.ArtifactDir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Worker{
		cfg:    cfg,
		sem:    make(chan struct{}, cfg.MaxJobs),
		active: make(map[uuid.UUID]struct{}),
	}, nil
}

// HandleEvent is the Kafka consumer callback. Malformed events are
// acknowledged with a warning rather than redelivered forever.
func (w *Worker) HandleEvent(ctx context.Context, event models.Event) error {
	if event.Type != models.EventCallTranscribe {
		return nil
	}

	callID, ok := eventUUID(event, "call_id")
	if !ok {
		logger.Log.WithField("event_id", event.ID).Warn("Transcribe event missing call_id")
		return nil
	}
	orgID, _ := eventUUID(event, "org_id")

	w.mu.Lock()
	if _, running := w.active[callID]; running {
		w.mu.Unlock()
		logger.Log.WithField("call_id", callID).Info("Job already in flight, skipping redelivery")
		return nil
	}
	w.active[callID] = struct{}{}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.active, callID)
			w.mu.Unlock()
		}()

		w.sem <- struct{}{}
		defer func() { <-w.sem }()

		w.process(ctx, orgID, callID)
	}()
	return nil
}

// Close waits for in-flight jobs to drain.
func (w *Worker) Close() {
	w.wg.Wait()
}

func (w *Worker) process(ctx context.Context, orgID, callID uuid.UUID) {
	rec, err := w.cfg.Store.GetCall(ctx, uuid.Nil, callID)
	if err != nil {
		logger.Log.WithError(err).WithField("call_id", callID).Error("Job dropped: call lookup failed")
		metrics.Registry().PipelineJobs.WithLabelValues("failure").Inc()
		return
	}
	if orgID == uuid.Nil {
		orgID = rec.OrgID
	}

	logger.Log.WithFields(map[string]interface{}{
		"call_id": callID,
		"org_id":  orgID,
	}).Info("Pipeline job started")

	_ = w.cfg.Store.UpdateStatus(ctx, callID, call.StatusProcessing, 5, "probing audio")
	if _, err := os.Stat(rec.AudioPath); err != nil {
		w.fail(ctx, orgID, callID, "processing", fmt.Errorf("audio file unavailable: %w", err))
		return
	}

	utterances, err := w.transcribe(ctx, callID, rec.AudioPath)
	if err != nil {
		w.fail(ctx, orgID, callID, "transcribing", err)
		return
	}

	extraction, fields, insights, err := w.extract(ctx, callID, utterances)
	if err != nil {
		w.fail(ctx, orgID, callID, "extracting", err)
		return
	}

	if err := w.finalize(ctx, orgID, callID, utterances, extraction, fields, insights); err != nil {
		w.fail(ctx, orgID, callID, "finalizing", err)
		return
	}

	metrics.Registry().PipelineJobs.WithLabelValues("success").Inc()
	logger.Log.WithField("call_id", callID).Info("Pipeline job completed")
}

// transcribe submits the audio and polls the provider on a fixed
// interval. Tick errors are logged and the next tick proceeds; the
// final transcript is fetched exactly once, redacted, and stored.
func (w *Worker) transcribe(ctx context.Context, callID uuid.UUID, audioPath string) ([]models.TranscriptUtterance, error) {
	started := time.Now()
	defer func() {
		metrics.Registry().StageDuration.WithLabelValues("transcribe").Observe(time.Since(started).Seconds())
	}()

	_ = w.cfg.Store.UpdateStatus(ctx, callID, call.StatusTranscribing, 10, "submitting audio for transcription")

	jobID, err := w.cfg.Speech.Submit(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("submit transcription: %w", err)
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	progress := 10
	for polls := 0; polls < maxTranscriptionPolls; polls++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		job, err := w.cfg.Speech.Status(ctx, jobID)
		if err != nil {
			logger.Log.WithError(err).WithField("call_id", callID).Warn("Transcription poll failed")
			continue
		}

		switch job.Status {
		case SttFailed:
			if job.Error != "" {
				return nil, fmt.Errorf("transcription failed: %s", job.Error)
			}
			return nil, fmt.Errorf("transcription failed")
		case SttCompleted:
			utterances, err := w.cfg.Speech.Transcript(ctx, jobID)
			if err != nil {
				return nil, fmt.Errorf("fetch transcript: %w", err)
			}
			for i := range utterances {
				utterances[i].Sequence = i
				utterances[i].Text = w.cfg.Miner.Redact(utterances[i].Text)
				if w.cfg.Scorer != nil {
					utterances[i].Sentiment = w.cfg.Scorer.Label(utterances[i].Text)
				}
			}
			if err := w.cfg.Store.ReplaceTranscript(ctx, callID, utterances); err != nil {
				return nil, fmt.Errorf("store transcript: %w", err)
			}
			_ = w.cfg.Store.UpdateProgress(ctx, callID, call.StatusTranscribing, 60)
			return utterances, nil
		default:
			if progress < 55 {
				progress += 5
			}
			_ = w.cfg.Store.UpdateProgress(ctx, callID, call.StatusTranscribing, progress)
		}
	}
	return nil, fmt.Errorf("transcription timed out after %d polls", maxTranscriptionPolls)
}

// extract derives fields and insights, preferring the model and
// falling back to the rules miner when it is disabled or failing.
func (w *Worker) extract(ctx context.Context, callID uuid.UUID, utterances []models.TranscriptUtterance) (Extraction, []models.CallField, []models.CallInsight, error) {
	started := time.Now()
	defer func() {
		metrics.Registry().StageDuration.WithLabelValues("extract").Observe(time.Since(started).Seconds())
	}()

	_ = w.cfg.Store.UpdateStatus(ctx, callID, call.StatusExtracting, 65, "extracting deal data")

	hash := TranscriptHash(utterances)
	extraction, cached := w.cfg.Cache.Get(ctx, hash)
	if !cached {
		var err error
		extraction, err = w.cfg.Extractor.Extract(ctx, utterances)
		switch {
		case err == nil:
			w.cfg.Cache.Set(ctx, hash, extraction)
		case err == ErrExtractorDisabled:
			extraction = Extraction{}
		default:
			logger.Log.WithError(err).WithField("call_id", callID).Warn("Model extraction failed, using rules catalog")
			extraction = Extraction{}
		}
	}

	fields := make([]models.CallField, 0, len(extraction.Fields))
	seen := make(map[string]struct{})
	for _, f := range extraction.Fields {
		name := strings.TrimSpace(f.Name)
		value := strings.TrimSpace(f.Value)
		if name == "" || value == "" {
			continue
		}
		seen[strings.ToLower(name)] = struct{}{}
		fields = append(fields, models.CallField{
			Name:       name,
			Value:      value,
			Confidence: f.Confidence,
			Source:     "llm",
		})
	}
	// Rules fill anything the model missed.
	for _, f := range w.cfg.Miner.MineFields(utterances) {
		if _, dup := seen[strings.ToLower(f.Name)]; dup {
			continue
		}
		fields = append(fields, f)
	}

	// Equipment values pass through the catalog so "53' van" and
	// "reefer unit" land on canonical names.
	for i, f := range fields {
		if !strings.EqualFold(f.Name, "Equipment") {
			continue
		}
		if key, ok := w.cfg.Catalog.Normalize(f.Value); ok {
			fields[i].Value = w.cfg.Catalog.Display(key)
		}
	}

	var insights []models.CallInsight
	for _, ins := range extraction.Insights {
		text := strings.TrimSpace(ins.Text)
		if text == "" {
			continue
		}
		insights = append(insights, models.CallInsight{
			Type:       ins.Type,
			Text:       text,
			Confidence: ins.Confidence,
		})
	}
	if len(insights) == 0 {
		insights = w.cfg.Miner.MineInsights(utterances)
	}

	if err := w.cfg.Store.ReplaceFields(ctx, callID, fields); err != nil {
		return Extraction{}, nil, nil, fmt.Errorf("store fields: %w", err)
	}
	if err := w.cfg.Store.ReplaceInsights(ctx, callID, insights); err != nil {
		return Extraction{}, nil, nil, fmt.Errorf("store insights: %w", err)
	}
	_ = w.cfg.Store.UpdateProgress(ctx, callID, call.StatusExtracting, 90)

	return extraction, fields, insights, nil
}

// finalize persists the extraction payload, writes the artifact, links
// a carrier, drafts a load, and completes the call.
func (w *Worker) finalize(ctx context.Context, orgID, callID uuid.UUID, utterances []models.TranscriptUtterance, extraction Extraction, fields []models.CallField, insights []models.CallInsight) error {
	started := time.Now()
	defer func() {
		metrics.Registry().StageDuration.WithLabelValues("finalize").Observe(time.Since(started).Seconds())
	}()

	_ = w.cfg.Store.UpdateProgress(ctx, callID, call.StatusExtracting, 95)

	sentiment := extraction.Sentiment
	score := 0.5
	if sentiment == "" && w.cfg.Scorer != nil {
		sentiment, score = w.cfg.Scorer.LabelCall(utterances)
	}
	summary := strings.TrimSpace(extraction.Summary)
	if summary == "" {
		summary = fallbackSummary(fields, sentiment)
	}

	payload := buildExtraction(callID, fields)

	var carrierID *uuid.UUID
	if payload.CarrierName != "" && w.cfg.Carriers != nil {
		matched, matchScore, err := w.cfg.Carriers.MatchName(ctx, orgID, payload.CarrierName)
		if err != nil {
			logger.Log.WithError(err).Warn("Carrier match failed")
		} else if matched != nil {
			carrierID = &matched.ID
			logger.Log.WithFields(map[string]interface{}{
				"call_id": callID,
				"carrier": matched.Name,
				"score":   matchScore,
			}).Info("Carrier auto-linked")
		}
	}

	if w.cfg.Drafter != nil && payload.Origin != "" && payload.Destination != "" && payload.Rate != "" {
		draft, err := w.cfg.Drafter.CreateDraft(ctx, orgID, payload, carrierID)
		if err != nil {
			logger.Log.WithError(err).WithField("call_id", callID).Warn("Draft load creation failed")
		} else {
			payload.LoadID = &draft.ID
			_ = w.cfg.Store.AttachLoad(ctx, callID, draft.ID)
		}
	}

	if err := w.cfg.Store.SaveExtraction(ctx, payload); err != nil {
		return fmt.Errorf("store extraction: %w", err)
	}

	if w.cfg.ArtifactDir != "" {
		if err := w.writeArtifact(callID, summary, sentiment, score, payload, fields, insights); err != nil {
			logger.Log.WithError(err).Warn("Artifact write failed")
		}
	}

	duration := 0
	if n := len(utterances); n > 0 {
		duration = int(utterances[n-1].EndTime)
	}
	if err := w.cfg.Store.FinishCall(ctx, callID, duration, sentiment, summary); err != nil {
		return fmt.Errorf("complete call: %w", err)
	}

	data := map[string]interface{}{
		"call_id":   callID.String(),
		"org_id":    orgID.String(),
		"sentiment": sentiment,
	}
	if payload.LoadID != nil {
		data["load_id"] = payload.LoadID.String()
	}
	_ = w.cfg.Publisher.PublishEvent(ctx, models.EventCallCompleted, eventSource, data)
	return nil
}

func (w *Worker) fail(ctx context.Context, orgID, callID uuid.UUID, stage string, err error) {
	logger.Log.WithError(err).WithFields(map[string]interface{}{
		"call_id": callID,
		"stage":   stage,
	}).Error("Pipeline job failed")

	_ = w.cfg.Store.MarkFailed(ctx, callID, fmt.Sprintf("%s: %v", stage, err))
	_ = w.cfg.Publisher.PublishEvent(ctx, models.EventCallFailed, eventSource, map[string]interface{}{
		"call_id": callID.String(),
		"org_id":  orgID.String(),
		"stage":   stage,
		"error":   err.Error(),
	})
	metrics.Registry().PipelineJobs.WithLabelValues("failure").Inc()
}

func (w *Worker) writeArtifact(callID uuid.UUID, summary, sentiment string, score float64, payload models.CallExtraction, fields []models.CallField, insights []models.CallInsight) error {
	artifact := map[string]interface{}{
		"call_id":         callID.String(),
		"summary":         summary,
		"sentiment":       sentiment,
		"sentiment_score": score,
		"extraction":      payload,
		"fields":          fields,
		"insights":        insights,
		"created_at":      time.Now().UTC(),
	}
	raw, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(w.cfg.ArtifactDir, fmt.Sprintf("%s.json", callID))
	return os.WriteFile(path, raw, 0o644)
}

// buildExtraction shapes stored fields into the load-ready payload.
func buildExtraction(callID uuid.UUID, fields []models.CallField) models.CallExtraction {
	ex := models.CallExtraction{CallID: callID}

	var confidences []float64
	for _, f := range fields {
		switch strings.ToLower(f.Name) {
		case "origin":
			ex.Origin = f.Value
		case "destination":
			ex.Destination = f.Value
		case "rate":
			ex.Rate = f.Value
		case "equipment", "equipment type":
			ex.EquipmentType = f.Value
		case "commodity":
			ex.Commodity = f.Value
		case "weight":
			if lbs, ok := ParseWeightLbs(f.Value); ok {
				ex.WeightLbs = lbs
			}
		case "carrier name":
			ex.CarrierName = f.Value
		}
		confidences = append(confidences, f.Confidence)
	}

	if len(confidences) > 0 {
		var sum float64
		for _, c := range confidences {
			sum += c
		}
		ex.ConfidenceScore = sum / float64(len(confidences))
	}
	return ex
}

func fallbackSummary(fields []models.CallField, sentiment string) string {
	var origin, destination, rate string
	for _, f := range fields {
		switch strings.ToLower(f.Name) {
		case "origin":
			origin = f.Value
		case "destination":
			destination = f.Value
		case "rate":
			rate = f.Value
		}
	}

	var b strings.Builder
	b.WriteString("Sales call")
	if origin != "" && destination != "" {
		fmt.Fprintf(&b, " covering a load from %s to %s", origin, destination)
	}
	if rate != "" {
		fmt.Fprintf(&b, " at $%s", strings.TrimPrefix(rate, "$"))
	}
	b.WriteString(".")
	if sentiment != "" {
		fmt.Fprintf(&b, " Overall tone was %s.", sentiment)
	}
	return b.String()
}

func eventUUID(event models.Event, key string) (uuid.UUID, bool) {
	raw, ok := event.Data[key].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
