package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/freightdesk-ai/platform/pkg/gateway/httpclient"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// Provider-side job statuses.
const (
	SttQueued    = "queued"
	SttRunning   = "running"
	SttCompleted = "completed"
	SttFailed    = "failed"
)

// TranscriptionJob is the provider's view of a submitted audio file.
type TranscriptionJob struct {
	ID     string `json:"job_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SpeechProvider abstracts the speech-to-text backend. Submit returns
// a provider job id the worker polls via Status; Transcript is called
// once after the job reaches a terminal status.
type SpeechProvider interface {
	Submit(ctx context.Context, audioPath string) (string, error)
	Status(ctx context.Context, jobID string) (TranscriptionJob, error)
	Transcript(ctx context.Context, jobID string) ([]models.TranscriptUtterance, error)
}

// HTTPSpeechProvider talks to an external transcription API.
type HTTPSpeechProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPSpeechProvider(baseURL, apiKey string) *HTTPSpeechProvider {
	return &HTTPSpeechProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  httpclient.New(2 * time.Minute),
	}
}

func (p *HTTPSpeechProvider) Submit(ctx context.Context, audioPath string) (string, error) {
	var jobID string
	err := httpclient.Retry(ctx, 3, 200*time.Millisecond, func() error {
		id, err := p.submit(ctx, audioPath)
		if err != nil {
			return err
		}
		jobID = id
		return nil
	})
	return jobID, err
}

func (p *HTTPSpeechProvider) submit(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/transcriptions", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("stt submit returned %d", resp.StatusCode)
	}

	var job TranscriptionJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", errors.New("stt submit returned no job id")
	}
	return job.ID, nil
}

func (p *HTTPSpeechProvider) Status(ctx context.Context, jobID string) (TranscriptionJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/transcriptions/"+jobID, nil)
	if err != nil {
		return TranscriptionJob{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return TranscriptionJob{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return TranscriptionJob{}, fmt.Errorf("stt status returned %d", resp.StatusCode)
	}

	var job TranscriptionJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return TranscriptionJob{}, err
	}
	return job, nil
}

func (p *HTTPSpeechProvider) Transcript(ctx context.Context, jobID string) ([]models.TranscriptUtterance, error) {
	var utterances []models.TranscriptUtterance
	err := httpclient.Retry(ctx, 3, 200*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/transcriptions/"+jobID+"/result", nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("stt result returned %d", resp.StatusCode)
		}

		var payload struct {
			Utterances []struct {
				Speaker    string   `json:"speaker"`
				Text       string   `json:"text"`
				StartTime  float64  `json:"start_time"`
				EndTime    float64  `json:"end_time"`
				Confidence *float64 `json:"confidence"`
			} `json:"utterances"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return err
		}

		utterances = utterances[:0]
		for i, u := range payload.Utterances {
			utterances = append(utterances, models.TranscriptUtterance{
				Sequence:   i,
				Speaker:    u.Speaker,
				Text:       u.Text,
				StartTime:  u.StartTime,
				EndTime:    u.EndTime,
				Confidence: u.Confidence,
			})
		}
		return nil
	})
	return utterances, err
}

// WhisperProvider transcribes through the OpenAI audio API. Whisper is
// synchronous, so Submit runs the request in the background and Status
// reports on the in-memory job until the worker collects it.
type WhisperProvider struct {
	client *openai.Client

	mu   sync.Mutex
	jobs map[string]*whisperJob
}

type whisperJob struct {
	status     string
	err        string
	utterances []models.TranscriptUtterance
}

func NewWhisperProvider(apiKey string) *WhisperProvider {
	return &WhisperProvider{
		client: openai.NewClient(apiKey),
		jobs:   make(map[string]*whisperJob),
	}
}

func (p *WhisperProvider) Submit(ctx context.Context, audioPath string) (string, error) {
	jobID := uuid.New().String()
	p.mu.Lock()
	p.jobs[jobID] = &whisperJob{status: SttRunning}
	p.mu.Unlock()

	go p.transcribe(jobID, audioPath)
	return jobID, nil
}

func (p *WhisperProvider) transcribe(jobID, audioPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	job := p.jobs[jobID]
	if job == nil {
		return
	}
	if err != nil {
		job.status = SttFailed
		job.err = err.Error()
		return
	}

	// Whisper does not diarize; alternate speakers as a stand-in until
	// a diarizing provider is wired.
	speakers := [2]string{"rep", "customer"}
	for i, seg := range resp.Segments {
		job.utterances = append(job.utterances, models.TranscriptUtterance{
			Sequence:  i,
			Speaker:   speakers[i%2],
			Text:      seg.Text,
			StartTime: seg.Start,
			EndTime:   seg.End,
		})
	}
	job.status = SttCompleted
}

func (p *WhisperProvider) Status(ctx context.Context, jobID string) (TranscriptionJob, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[jobID]
	if !ok {
		return TranscriptionJob{}, fmt.Errorf("unknown transcription job %s", jobID)
	}
	return TranscriptionJob{ID: jobID, Status: job.status, Error: job.err}, nil
}

func (p *WhisperProvider) Transcript(ctx context.Context, jobID string) ([]models.TranscriptUtterance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("unknown transcription job %s", jobID)
	}
	if job.status != SttCompleted {
		return nil, fmt.Errorf("transcription job %s is %s", jobID, job.status)
	}
	utterances := job.utterances
	delete(p.jobs, jobID)
	return utterances, nil
}
