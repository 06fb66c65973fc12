package pipeline

import (
	"math"
	"strings"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

// Sentiment labels attached to calls and utterances.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

var positiveCues = []string{
	"great", "perfect", "sounds good", "appreciate", "thanks", "thank you",
	"happy", "awesome", "book it", "let's do it", "works for me", "deal",
	"no problem", "love", "excellent",
}

var negativeCues = []string{
	"problem", "issue", "frustrat", "late", "delay", "cancel", "too expensive",
	"can't afford", "ghosted", "damaged", "terrible", "bad experience",
	"not interested", "no thanks", "burned", "detention",
}

var hedgeCues = []string{
	"maybe", "not sure", "have to think", "check with", "we'll see", "possibly",
}

// SentimentScorer scores conversational text with a tiny logistic
// model trained at startup on a fixed cue-count corpus, so the same
// build always produces the same weights.
type SentimentScorer struct {
	bias    float64
	weights []float64
}

func NewSentimentScorer() *SentimentScorer {
	samples, labels := seedCorpus()
	bias, weights := trainLogistic(samples, labels, 400, 0.5)
	return &SentimentScorer{bias: bias, weights: weights}
}

// Score returns a probability-like value in (0,1); above 0.5 leans
// positive.
func (s *SentimentScorer) Score(text string) float64 {
	return sigmoid(dot(s.weights, featurize(text)) + s.bias)
}

// Label buckets a score into negative/neutral/positive.
func (s *SentimentScorer) Label(text string) string {
	score := s.Score(text)
	switch {
	case score < 0.4:
		return SentimentNegative
	case score > 0.6:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

// LabelCall scores the whole conversation and returns the call-level
// label plus the raw score.
func (s *SentimentScorer) LabelCall(utterances []models.TranscriptUtterance) (string, float64) {
	text := joinTranscript(utterances)
	score := s.Score(text)
	switch {
	case score < 0.4:
		return SentimentNegative, score
	case score > 0.6:
		return SentimentPositive, score
	default:
		return SentimentNeutral, score
	}
}

// featurize reduces text to cue counts: positive hits, negative hits,
// exclamations, and hedging phrases.
func featurize(text string) []float64 {
	lower := strings.ToLower(text)
	return []float64{
		float64(countCues(lower, positiveCues)),
		float64(countCues(lower, negativeCues)),
		float64(strings.Count(lower, "!")),
		float64(countCues(lower, hedgeCues)),
	}
}

func countCues(lower string, cues []string) int {
	var n int
	for _, cue := range cues {
		n += strings.Count(lower, cue)
	}
	return n
}

// seedCorpus emits labeled feature vectors (pos, neg, excl, hedge)
// spanning the tones a brokerage call takes. Each positive sample has
// a mirrored negative so a cue-free text scores exactly 0.5.
func seedCorpus() ([][]float64, []float64) {
	samples := [][]float64{
		{3, 0, 1, 0}, {2, 0, 0, 0}, {4, 1, 2, 0}, {1, 0, 0, 0},
		{2, 0, 1, 1}, {3, 1, 0, 0}, {5, 0, 1, 0}, {2, 1, 0, 0},
		{0, 3, 0, 1}, {0, 2, 0, 0}, {1, 4, 0, 2}, {0, 1, 0, 0},
		{0, 2, 1, 1}, {1, 3, 0, 0}, {0, 5, 0, 1}, {1, 2, 0, 0},
	}
	labels := []float64{
		1, 1, 1, 1, 1, 1, 1, 1,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	return samples, labels
}

func trainLogistic(samples [][]float64, labels []float64, epochs int, rate float64) (float64, []float64) {
	n := len(samples)
	if n == 0 {
		return 0, nil
	}
	featureCount := len(samples[0])
	weights := make([]float64, featureCount)
	var bias float64

	for epoch := 0; epoch < epochs; epoch++ {
		grad := make([]float64, featureCount)
		var biasGrad float64
		for i, sample := range samples {
			prediction := sigmoid(dot(weights, sample) + bias)
			diff := prediction - labels[i]
			for j := 0; j < featureCount; j++ {
				grad[j] += diff * sample[j]
			}
			biasGrad += diff
		}
		for j := 0; j < featureCount; j++ {
			weights[j] -= rate * grad[j] / float64(n)
		}
		bias -= rate * biasGrad / float64(n)
	}
	return bias, weights
}

func dot(weights, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights) && i < len(sample); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
