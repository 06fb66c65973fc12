package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/freightdesk-ai/platform/pkg/breaker"
	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/freightdesk-ai/platform/pkg/observability/metrics"
	"github.com/freightdesk-ai/platform/pkg/retry"
	openai "github.com/sashabaranov/go-openai"
)

// ErrExtractorDisabled is returned when no API key is configured; the
// worker falls back to the rules miner.
var ErrExtractorDisabled = errors.New("llm extractor disabled")

// Extraction is the structured result the model returns for a call.
type Extraction struct {
	Summary   string             `json:"summary"`
	Sentiment string             `json:"sentiment"`
	Fields    []ExtractedField   `json:"fields"`
	Insights  []ExtractedInsight `json:"insights"`
}

type ExtractedField struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

type ExtractedInsight struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

const extractionSystemPrompt = `You are a freight brokerage call analyst. Extract structured deal data from the sales call transcript.

Fields to extract when present: Origin, Destination, Rate, Equipment, Weight, Commodity, Pickup Date, Delivery Date, Carrier Name, MC Number, Shipper Name, Deal Stage, Close Date.

Insight types:
- pain_point: frustrations or problems the customer raises
- action_item: concrete follow-ups a speaker commits to
- competitor: other brokerages or providers mentioned

Respond with JSON only:
{"summary": "2-3 sentence call summary", "sentiment": "positive|neutral|negative", "fields": [{"name": "...", "value": "...", "confidence": 0.9}], "insights": [{"type": "...", "text": "...", "confidence": 0.8}]}`

// Extractor calls the chat model for transcript extraction, guarded by
// a circuit breaker and bounded retries.
type Extractor struct {
	client      *openai.Client
	model       string
	temperature float32
	cb          *breaker.Breaker
	retryConfig retry.Config
}

func NewExtractor(apiKey, baseURL, model string, temperature float32, maxRetries int) *Extractor {
	if apiKey == "" {
		return &Extractor{}
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	cb := breaker.New("llm", breaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.Log,
	})

	retryConfig := retry.Config{
		MaxAttempts:    maxRetries,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.Log,
	}

	return &Extractor{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: temperature,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// Enabled reports whether an API key was configured.
func (e *Extractor) Enabled() bool {
	return e != nil && e.client != nil
}

// Extract runs the model over the transcript and parses its JSON reply.
func (e *Extractor) Extract(ctx context.Context, utterances []models.TranscriptUtterance) (Extraction, error) {
	if !e.Enabled() {
		return Extraction{}, ErrExtractorDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	transcript := formatTranscriptPrompt(utterances)

	var content string
	err := e.cb.Execute(ctx, func() error {
		return retry.Do(ctx, e.retryConfig, func() error {
			resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       e.model,
				Temperature: e.temperature,
				ResponseFormat: &openai.ChatCompletionResponseFormat{
					Type: openai.ChatCompletionResponseFormatTypeJSONObject,
				},
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: transcript},
				},
			})
			if err != nil {
				return fmt.Errorf("chat completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return errors.New("empty completion response")
			}
			content = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		metrics.Registry().LLMRequests.WithLabelValues("failure").Inc()
		return Extraction{}, err
	}

	extraction, err := parseExtraction(content)
	if err != nil {
		metrics.Registry().LLMRequests.WithLabelValues("failure").Inc()
		return Extraction{}, err
	}

	metrics.Registry().LLMRequests.WithLabelValues("success").Inc()
	return extraction, nil
}

func formatTranscriptPrompt(utterances []models.TranscriptUtterance) string {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	for _, u := range utterances {
		fmt.Fprintf(&b, "[%s] %s\n", u.Speaker, u.Text)
	}
	return b.String()
}

// parseExtraction tolerates code fences and leading prose around the
// JSON object, and drops insights of unknown type.
func parseExtraction(content string) (Extraction, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Extraction{}, fmt.Errorf("no JSON object in model reply")
	}

	var extraction Extraction
	if err := json.Unmarshal([]byte(content[start:end+1]), &extraction); err != nil {
		return Extraction{}, fmt.Errorf("parse model reply: %w", err)
	}

	switch extraction.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		extraction.Sentiment = ""
	}

	valid := extraction.Insights[:0]
	for _, ins := range extraction.Insights {
		switch ins.Type {
		case models.InsightPainPoint, models.InsightActionItem, models.InsightCompetitor:
			ins.Confidence = clampUnit(ins.Confidence)
			valid = append(valid, ins)
		}
	}
	extraction.Insights = valid

	for i := range extraction.Fields {
		extraction.Fields[i].Confidence = clampUnit(extraction.Fields[i].Confidence)
	}
	return extraction, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
