package call

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// fakeSource serves a scripted sequence of statuses and counts every
// fetch.
type fakeSource struct {
	mu              sync.Mutex
	statuses        []string
	pollCount       int
	transcriptCount int
	insightCount    int
	fieldCount      int
	failPollsBefore int
}

func (f *fakeSource) GetCall(ctx context.Context, orgID, id uuid.UUID) (models.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCount++
	if f.pollCount <= f.failPollsBefore {
		return models.Call{}, errors.New("transient store error")
	}
	idx := f.pollCount - f.failPollsBefore - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return models.Call{ID: id, OrgID: orgID, Status: f.statuses[idx]}, nil
}

func (f *fakeSource) GetTranscript(ctx context.Context, callID uuid.UUID) ([]models.TranscriptUtterance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcriptCount++
	return []models.TranscriptUtterance{{CallID: callID, Text: "hello"}}, nil
}

func (f *fakeSource) GetInsights(ctx context.Context, callID uuid.UUID) ([]models.CallInsight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insightCount++
	return nil, nil
}

func (f *fakeSource) GetFields(ctx context.Context, callID uuid.UUID) ([]models.CallField, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldCount++
	return nil, nil
}

func (f *fakeSource) counts() (polls, transcripts, insights, fields int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollCount, f.transcriptCount, f.insightCount, f.fieldCount
}

type fakeSink struct {
	mu        sync.Mutex
	summaries []models.CallSummary
}

func (f *fakeSink) Set(ctx context.Context, summary models.CallSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.summaries)
}

// failingSink rejects every write, standing in for an unreachable cache.
type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSink) Set(ctx context.Context, summary models.CallSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("cache unavailable")
}

func (f *failingSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestWatcherStopsOnTerminalAndFetchesOnce(t *testing.T) {
	source := &fakeSource{statuses: []string{StatusProcessing, StatusTranscribing, StatusCompleted}}
	sink := &fakeSink{}
	w := NewWatcher(source, sink, 3*time.Millisecond)
	defer w.Close()

	w.Watch(context.Background(), uuid.New(), uuid.New())

	waitFor(t, time.Second, func() bool { return sink.count() == 1 })

	polls, transcripts, insights, fields := source.counts()
	if polls != 3 {
		t.Fatalf("expected exactly 3 polls, got %d", polls)
	}
	if transcripts != 1 || insights != 1 || fields != 1 {
		t.Fatalf("artifacts should be fetched exactly once, got %d/%d/%d", transcripts, insights, fields)
	}

	// No further polls after the terminal status.
	time.Sleep(20 * time.Millisecond)
	afterPolls, afterTranscripts, _, _ := source.counts()
	if afterPolls != polls || afterTranscripts != transcripts {
		t.Fatalf("polling continued after terminal status: %d -> %d", polls, afterPolls)
	}
}

func TestWatcherFinishesDespiteSinkFailure(t *testing.T) {
	source := &fakeSource{statuses: []string{StatusCompleted}}
	sink := &failingSink{}
	w := NewWatcher(source, sink, 3*time.Millisecond)
	defer w.Close()

	w.Watch(context.Background(), uuid.New(), uuid.New())

	waitFor(t, time.Second, func() bool { return sink.count() == 1 })

	_, transcripts, _, _ := source.counts()
	if transcripts != 1 {
		t.Fatalf("artifacts should be fetched once despite the cache failure, got %d", transcripts)
	}

	// The failed write is logged, not retried, and the poller exits.
	time.Sleep(20 * time.Millisecond)
	if sink.count() != 1 {
		t.Fatalf("cache write should not be retried, got %d", sink.count())
	}
	polls, _, _, _ := source.counts()
	if polls != 1 {
		t.Fatalf("polling should stop at the terminal status, got %d polls", polls)
	}
}

func TestWatcherContinuesPastPollErrors(t *testing.T) {
	source := &fakeSource{statuses: []string{StatusCompleted}, failPollsBefore: 2}
	sink := &fakeSink{}
	w := NewWatcher(source, sink, 3*time.Millisecond)
	defer w.Close()

	w.Watch(context.Background(), uuid.New(), uuid.New())

	waitFor(t, time.Second, func() bool { return sink.count() == 1 })

	polls, _, _, _ := source.counts()
	if polls != 3 {
		t.Fatalf("expected 2 failed + 1 successful poll, got %d", polls)
	}
}

func TestWatchIsIdempotentPerCall(t *testing.T) {
	source := &fakeSource{statuses: []string{StatusProcessing, StatusProcessing, StatusCompleted}}
	sink := &fakeSink{}
	w := NewWatcher(source, sink, 3*time.Millisecond)
	defer w.Close()

	callID := uuid.New()
	orgID := uuid.New()
	w.Watch(context.Background(), orgID, callID)
	w.Watch(context.Background(), orgID, callID)
	w.Watch(context.Background(), orgID, callID)

	waitFor(t, time.Second, func() bool { return sink.count() == 1 })

	polls, _, _, _ := source.counts()
	if polls != 3 {
		t.Fatalf("duplicate Watch calls should not add pollers: %d polls", polls)
	}
}

func TestWatcherCloseCancelsPolling(t *testing.T) {
	source := &fakeSource{statuses: []string{StatusProcessing}}
	w := NewWatcher(source, &fakeSink{}, 3*time.Millisecond)

	w.Watch(context.Background(), uuid.New(), uuid.New())
	waitFor(t, time.Second, func() bool {
		polls, _, _, _ := source.counts()
		return polls >= 2
	})

	w.Close()
	polls, _, _, _ := source.counts()
	time.Sleep(20 * time.Millisecond)
	afterPolls, _, _, _ := source.counts()
	if afterPolls > polls+1 {
		t.Fatalf("polling survived Close: %d -> %d", polls, afterPolls)
	}

	if _, transcripts, _, _ := source.counts(); transcripts != 0 {
		t.Fatal("cancelled watch should not fetch artifacts")
	}
}
