package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/freightdesk-ai/platform/pkg/freight"
	"github.com/google/uuid"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fakeStore struct {
	mu         sync.Mutex
	call       models.Call
	statuses   []string
	failedMsg  string
	transcript []models.TranscriptUtterance
	fields     []models.CallField
	insights   []models.CallInsight
	extraction *models.CallExtraction
	attached   *uuid.UUID
	finished   bool
	sentiment  string
	summary    string
	duration   int
}

func (f *fakeStore) GetCall(ctx context.Context, orgID, id uuid.UUID) (models.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.call, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) UpdateProgress(ctx context.Context, id uuid.UUID, status string, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedMsg = message
	return nil
}

func (f *fakeStore) FinishCall(ctx context.Context, id uuid.UUID, durationSeconds int, sentiment, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
	f.duration = durationSeconds
	f.sentiment = sentiment
	f.summary = summary
	return nil
}

func (f *fakeStore) AttachLoad(ctx context.Context, callID, loadID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = &loadID
	return nil
}

func (f *fakeStore) ReplaceTranscript(ctx context.Context, callID uuid.UUID, utterances []models.TranscriptUtterance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcript = utterances
	return nil
}

func (f *fakeStore) ReplaceInsights(ctx context.Context, callID uuid.UUID, insights []models.CallInsight) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insights = insights
	return nil
}

func (f *fakeStore) ReplaceFields(ctx context.Context, callID uuid.UUID, fields []models.CallField) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = fields
	return nil
}

func (f *fakeStore) SaveExtraction(ctx context.Context, ex models.CallExtraction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extraction = &ex
	return nil
}

type storeState struct {
	failedMsg  string
	transcript []models.TranscriptUtterance
	fields     []models.CallField
	insights   []models.CallInsight
	extraction *models.CallExtraction
	attached   *uuid.UUID
	finished   bool
	sentiment  string
	summary    string
	duration   int
}

func (f *fakeStore) snapshot() storeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return storeState{
		failedMsg:  f.failedMsg,
		transcript: f.transcript,
		fields:     f.fields,
		insights:   f.insights,
		extraction: f.extraction,
		attached:   f.attached,
		finished:   f.finished,
		sentiment:  f.sentiment,
		summary:    f.summary,
		duration:   f.duration,
	}
}

type fakeSpeech struct {
	mu          sync.Mutex
	utterances  []models.TranscriptUtterance
	queuedPolls int
	statusErrs  int
	failWith    string
	block       chan struct{}

	submits     int
	statusCalls int
	transcripts int
}

func (s *fakeSpeech) Submit(ctx context.Context, audioPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits++
	return "job-1", nil
}

func (s *fakeSpeech) Status(ctx context.Context, jobID string) (TranscriptionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if s.statusErrs > 0 {
		s.statusErrs--
		return TranscriptionJob{}, context.DeadlineExceeded
	}
	if s.block != nil {
		select {
		case <-s.block:
		default:
			return TranscriptionJob{ID: jobID, Status: SttRunning}, nil
		}
	}
	if s.failWith != "" {
		return TranscriptionJob{ID: jobID, Status: SttFailed, Error: s.failWith}, nil
	}
	if s.statusCalls <= s.queuedPolls {
		return TranscriptionJob{ID: jobID, Status: SttRunning}, nil
	}
	return TranscriptionJob{ID: jobID, Status: SttCompleted}, nil
}

func (s *fakeSpeech) Transcript(ctx context.Context, jobID string) ([]models.TranscriptUtterance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts++
	return s.utterances, nil
}

func (s *fakeSpeech) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits, s.statusCalls, s.transcripts
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *fakePublisher) PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, models.Event{Type: eventType, Source: source, Data: data})
	return nil
}

func (p *fakePublisher) byType(eventType string) []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeDrafter struct {
	mu     sync.Mutex
	loadID uuid.UUID
	drafts []models.CallExtraction
}

func (d *fakeDrafter) CreateDraft(ctx context.Context, orgID uuid.UUID, ex models.CallExtraction, carrierID *uuid.UUID) (models.Load, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drafts = append(d.drafts, ex)
	return models.Load{ID: d.loadID, OrgID: orgID, CarrierID: carrierID}, nil
}

type fakeMatcher struct {
	carrier models.Carrier
}

func (m *fakeMatcher) MatchName(ctx context.Context, orgID uuid.UUID, name string) (*models.Carrier, float64, error) {
	if strings.EqualFold(name, m.carrier.Name) {
		return &m.carrier, 0.95, nil
	}
	return nil, 0, nil
}

func pipelineTranscript() []models.TranscriptUtterance {
	return []models.TranscriptUtterance{
		{Speaker: "customer", Text: "We have a load picking up in Dallas, TX and delivering to Atlanta, GA.", StartTime: 0, EndTime: 9.5},
		{Speaker: "customer", Text: "It's a dry van load, about 42,000 lbs of packaged food.", StartTime: 9.5, EndTime: 17},
		{Speaker: "rep", Text: "I can do that for $1,850 all in.", StartTime: 17, EndTime: 22},
		{Speaker: "customer", Text: "The last broker ghosted us, that was a real problem.", StartTime: 22, EndTime: 29},
		{Speaker: "rep", Text: "The carrier is Ridgeline Trucking.", StartTime: 29, EndTime: 34},
		{Speaker: "customer", Text: "My card is 4111 1111 1111 1111 if you need it on file.", StartTime: 34, EndTime: 41},
		{Speaker: "rep", Text: "I'll send over the rate con this afternoon.", StartTime: 41, EndTime: 47.8},
	}
}

func newTestWorker(t *testing.T, store *fakeStore, speech *fakeSpeech, pub *fakePublisher, drafter *fakeDrafter, matcher *fakeMatcher) *Worker {
	t.Helper()
	miner, err := NewMiner(DefaultRules())
	if err != nil {
		t.Fatalf("miner: %v", err)
	}

	cfg := WorkerConfig{
		Store:        store,
		Speech:       speech,
		Extractor:    NewExtractor("", "", "", 0, 0),
		Miner:        miner,
		Scorer:       NewSentimentScorer(),
		Catalog:      freight.DefaultCatalog(),
		Publisher:    pub,
		ArtifactDir:  t.TempDir(),
		PollInterval: 5 * time.Millisecond,
		MaxJobs:      2,
	}
	if drafter != nil {
		cfg.Drafter = drafter
	}
	if matcher != nil {
		cfg.Carriers = matcher
	}

	worker, err := NewWorker(cfg)
	if err != nil {
		t.Fatalf("worker: %v", err)
	}
	return worker
}

func transcribeEvent(callID, orgID uuid.UUID) models.Event {
	return models.Event{
		ID:   uuid.New().String(),
		Type: models.EventCallTranscribe,
		Data: map[string]interface{}{
			"call_id": callID.String(),
			"org_id":  orgID.String(),
		},
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func tempAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "call.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWorkerHappyPath(t *testing.T) {
	callID := uuid.New()
	orgID := uuid.New()
	loadID := uuid.New()
	carrierID := uuid.New()

	store := &fakeStore{call: models.Call{ID: callID, OrgID: orgID, Status: "processing", AudioPath: tempAudioFile(t)}}
	speech := &fakeSpeech{utterances: pipelineTranscript(), queuedPolls: 2}
	pub := &fakePublisher{}
	drafter := &fakeDrafter{loadID: loadID}
	matcher := &fakeMatcher{carrier: models.Carrier{ID: carrierID, Name: "Ridgeline Trucking"}}

	worker := newTestWorker(t, store, speech, pub, drafter, matcher)
	if err := worker.HandleEvent(context.Background(), transcribeEvent(callID, orgID)); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	waitUntil(t, 3*time.Second, func() bool { return store.snapshot().finished })
	worker.Close()
	snap := store.snapshot()

	if len(snap.transcript) != len(pipelineTranscript()) {
		t.Fatalf("stored %d utterances", len(snap.transcript))
	}
	for _, u := range snap.transcript {
		if strings.Contains(u.Text, "4111") {
			t.Fatalf("card number not redacted: %s", u.Text)
		}
		if u.Sentiment == "" {
			t.Fatal("utterance missing sentiment label")
		}
	}

	byName := map[string]string{}
	for _, f := range snap.fields {
		byName[f.Name] = f.Value
	}
	if byName["Origin"] != "Dallas, TX" || byName["Destination"] != "Atlanta, GA" {
		t.Fatalf("lane fields = %v", byName)
	}
	if byName["Equipment"] != "Dry Van" {
		t.Fatalf("equipment not normalized: %q", byName["Equipment"])
	}
	if len(snap.insights) == 0 {
		t.Fatal("expected mined insights")
	}

	if snap.extraction == nil {
		t.Fatal("extraction not saved")
	}
	if snap.extraction.Origin != "Dallas, TX" || snap.extraction.Rate != "1,850" {
		t.Fatalf("extraction = %+v", snap.extraction)
	}
	if snap.extraction.WeightLbs != 42000 {
		t.Fatalf("weight = %d", snap.extraction.WeightLbs)
	}
	if snap.extraction.CarrierName != "Ridgeline Trucking" {
		t.Fatalf("carrier name = %q", snap.extraction.CarrierName)
	}
	if snap.extraction.LoadID == nil || *snap.extraction.LoadID != loadID {
		t.Fatal("extraction should reference the draft load")
	}
	if snap.attached == nil || *snap.attached != loadID {
		t.Fatal("draft load not attached to call")
	}
	if len(drafter.drafts) != 1 {
		t.Fatalf("draft count = %d", len(drafter.drafts))
	}

	if snap.duration != 47 {
		t.Fatalf("duration = %d, want 47", snap.duration)
	}
	if !strings.Contains(snap.summary, "Dallas, TX to Atlanta, GA") {
		t.Fatalf("summary = %q", snap.summary)
	}
	if snap.sentiment == "" {
		t.Fatal("call sentiment missing")
	}

	completed := pub.byType(models.EventCallCompleted)
	if len(completed) != 1 {
		t.Fatalf("completed events = %d", len(completed))
	}
	if completed[0].Data["load_id"] != loadID.String() {
		t.Fatalf("completed event load_id = %v", completed[0].Data["load_id"])
	}

	if _, _, transcripts := speech.counts(); transcripts != 1 {
		t.Fatalf("transcript fetched %d times, want once", transcripts)
	}
}

func TestWorkerArtifactWritten(t *testing.T) {
	callID := uuid.New()
	store := &fakeStore{call: models.Call{ID: callID, OrgID: uuid.New(), AudioPath: tempAudioFile(t)}}
	speech := &fakeSpeech{utterances: pipelineTranscript()}
	pub := &fakePublisher{}

	worker := newTestWorker(t, store, speech, pub, nil, nil)
	if err := worker.HandleEvent(context.Background(), transcribeEvent(callID, uuid.Nil)); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, 3*time.Second, func() bool { return store.snapshot().finished })
	worker.Close()

	path := filepath.Join(worker.cfg.ArtifactDir, callID.String()+".json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
}

func TestWorkerSpeechFailure(t *testing.T) {
	callID := uuid.New()
	store := &fakeStore{call: models.Call{ID: callID, OrgID: uuid.New(), AudioPath: tempAudioFile(t)}}
	speech := &fakeSpeech{failWith: "audio unreadable"}
	pub := &fakePublisher{}

	worker := newTestWorker(t, store, speech, pub, nil, nil)
	if err := worker.HandleEvent(context.Background(), transcribeEvent(callID, uuid.New())); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, 3*time.Second, func() bool { return store.snapshot().failedMsg != "" })
	worker.Close()

	snap := store.snapshot()
	if !strings.Contains(snap.failedMsg, "transcribing") || !strings.Contains(snap.failedMsg, "audio unreadable") {
		t.Fatalf("failure message = %q", snap.failedMsg)
	}
	if snap.finished {
		t.Fatal("failed call should not complete")
	}
	if failed := pub.byType(models.EventCallFailed); len(failed) != 1 {
		t.Fatalf("failed events = %d", len(failed))
	}
}

func TestWorkerPollErrorContinues(t *testing.T) {
	callID := uuid.New()
	store := &fakeStore{call: models.Call{ID: callID, OrgID: uuid.New(), AudioPath: tempAudioFile(t)}}
	speech := &fakeSpeech{utterances: pipelineTranscript(), statusErrs: 2}
	pub := &fakePublisher{}

	worker := newTestWorker(t, store, speech, pub, nil, nil)
	if err := worker.HandleEvent(context.Background(), transcribeEvent(callID, uuid.New())); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, 3*time.Second, func() bool { return store.snapshot().finished })
	worker.Close()

	if _, statusCalls, _ := speech.counts(); statusCalls < 3 {
		t.Fatalf("status calls = %d, want at least 3", statusCalls)
	}
	if store.snapshot().failedMsg != "" {
		t.Fatal("poll errors alone should not fail the job")
	}
}

func TestWorkerRedeliveryDeduped(t *testing.T) {
	callID := uuid.New()
	store := &fakeStore{call: models.Call{ID: callID, OrgID: uuid.New(), AudioPath: tempAudioFile(t)}}
	speech := &fakeSpeech{utterances: pipelineTranscript(), block: make(chan struct{})}
	pub := &fakePublisher{}

	worker := newTestWorker(t, store, speech, pub, nil, nil)
	event := transcribeEvent(callID, uuid.New())

	if err := worker.HandleEvent(context.Background(), event); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, 3*time.Second, func() bool {
		submits, _, _ := speech.counts()
		return submits == 1
	})

	if err := worker.HandleEvent(context.Background(), event); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if submits, _, _ := speech.counts(); submits != 1 {
		t.Fatalf("redelivery should be skipped while in flight, submits = %d", submits)
	}

	close(speech.block)
	waitUntil(t, 3*time.Second, func() bool { return store.snapshot().finished })
	worker.Close()

	if _, _, transcripts := speech.counts(); transcripts != 1 {
		t.Fatalf("transcripts = %d", transcripts)
	}
}

func TestWorkerIgnoresOtherEvents(t *testing.T) {
	store := &fakeStore{}
	speech := &fakeSpeech{}
	worker := newTestWorker(t, store, speech, &fakePublisher{}, nil, nil)

	event := models.Event{Type: models.EventCallUploaded, Data: map[string]interface{}{"call_id": uuid.New().String()}}
	if err := worker.HandleEvent(context.Background(), event); err != nil {
		t.Fatal(err)
	}
	worker.Close()

	if submits, _, _ := speech.counts(); submits != 0 {
		t.Fatalf("uploaded event should not start a job, submits = %d", submits)
	}
}
