package call

import (
	"context"
	"sync"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/freightdesk-ai/platform/pkg/observability/metrics"
	"github.com/google/uuid"
)

// RecordSource is the slice of the repository a watcher needs.
type RecordSource interface {
	GetCall(ctx context.Context, orgID, id uuid.UUID) (models.Call, error)
	GetTranscript(ctx context.Context, callID uuid.UUID) ([]models.TranscriptUtterance, error)
	GetInsights(ctx context.Context, callID uuid.UUID) ([]models.CallInsight, error)
	GetFields(ctx context.Context, callID uuid.UUID) ([]models.CallField, error)
}

// SummarySink receives the assembled artifacts once a watch finishes.
type SummarySink interface {
	Set(ctx context.Context, summary models.CallSummary) error
}

// Watcher polls in-flight calls on a fixed interval until they reach a
// terminal status, then fetches the derived artifacts exactly once and
// hands them to the sink. Poll failures are logged and the next tick
// proceeds; there is no backoff.
type Watcher struct {
	source   RecordSource
	sink     SummarySink
	interval time.Duration

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
	wg     sync.WaitGroup
}

func NewWatcher(source RecordSource, sink SummarySink, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		source:   source,
		sink:     sink,
		interval: interval,
		active:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// Watch starts polling the call. Watching a call that already has a
// poller is a no-op.
func (w *Watcher) Watch(ctx context.Context, orgID, callID uuid.UUID) {
	w.mu.Lock()
	if _, ok := w.active[callID]; ok {
		w.mu.Unlock()
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	w.active[callID] = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer w.release(callID)
		w.poll(watchCtx, orgID, callID)
	}()
}

// Stop cancels the poller for one call.
func (w *Watcher) Stop(callID uuid.UUID) {
	w.release(callID)
}

// Close cancels every active poller and waits for them to exit.
func (w *Watcher) Close() {
	w.mu.Lock()
	for id, cancel := range w.active {
		cancel()
		delete(w.active, id)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) release(callID uuid.UUID) {
	w.mu.Lock()
	if cancel, ok := w.active[callID]; ok {
		cancel()
		delete(w.active, callID)
	}
	w.mu.Unlock()
}

func (w *Watcher) poll(ctx context.Context, orgID, callID uuid.UUID) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.Registry().WatcherPolls.Inc()
			current, err := w.source.GetCall(ctx, orgID, callID)
			if err != nil {
				logger.Log.WithError(err).WithField("call_id", callID).Warn("Status poll failed")
				continue
			}
			if IsTerminal(current.Status) {
				w.finalize(ctx, current)
				return
			}
		}
	}
}

func (w *Watcher) finalize(ctx context.Context, current models.Call) {
	summary := models.CallSummary{Call: current}

	if transcript, err := w.source.GetTranscript(ctx, current.ID); err == nil {
		summary.Transcript = transcript
	} else {
		logger.Log.WithError(err).WithField("call_id", current.ID).Warn("Failed to fetch transcript")
	}
	if insights, err := w.source.GetInsights(ctx, current.ID); err == nil {
		summary.Insights = insights
	} else {
		logger.Log.WithError(err).WithField("call_id", current.ID).Warn("Failed to fetch insights")
	}
	if fields, err := w.source.GetFields(ctx, current.ID); err == nil {
		summary.Fields = fields
	} else {
		logger.Log.WithError(err).WithField("call_id", current.ID).Warn("Failed to fetch fields")
	}

	if w.sink != nil {
		if err := w.sink.Set(ctx, summary); err != nil {
			logger.Log.WithError(err).WithField("call_id", current.ID).Warn("Failed to cache call summary")
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"call_id": current.ID,
		"status":  current.Status,
	}).Info("Call watch finished")
}
