package pipeline

import (
	"testing"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

func TestSentimentLabels(t *testing.T) {
	scorer := NewSentimentScorer()

	positive := "That sounds good, I appreciate it. Perfect rate, book it!"
	negative := "This is a problem, the last load was late and damaged. Not interested."

	if got := scorer.Label(positive); got != SentimentPositive {
		t.Fatalf("positive text labeled %q (score %.3f)", got, scorer.Score(positive))
	}
	if got := scorer.Label(negative); got != SentimentNegative {
		t.Fatalf("negative text labeled %q (score %.3f)", got, scorer.Score(negative))
	}
	if got := scorer.Label("We have a load moving out of Dallas on Tuesday."); got != SentimentNeutral {
		t.Fatalf("cue-free text labeled %q", got)
	}
}

func TestSentimentOrdering(t *testing.T) {
	scorer := NewSentimentScorer()

	pos := scorer.Score("Great, thanks, that works for me!")
	neu := scorer.Score("The pickup is at dock four.")
	neg := scorer.Score("We had a terrible experience, total problem, way too expensive.")

	if !(pos > neu && neu > neg) {
		t.Fatalf("expected pos > neutral > neg, got %.3f / %.3f / %.3f", pos, neu, neg)
	}
}

func TestSentimentDeterministic(t *testing.T) {
	a := NewSentimentScorer()
	b := NewSentimentScorer()

	text := "Thanks for the quote, but the detention fees are an issue."
	if a.Score(text) != b.Score(text) {
		t.Fatal("scorer weights should be deterministic across instances")
	}
}

func TestLabelCall(t *testing.T) {
	scorer := NewSentimentScorer()

	label, score := scorer.LabelCall([]models.TranscriptUtterance{
		{Speaker: "rep", Text: "I can get that covered for you, no problem."},
		{Speaker: "customer", Text: "Perfect, that works for me. I appreciate it!"},
		{Speaker: "customer", Text: "Sounds good, send the paperwork over. Thanks!"},
	})
	if label != SentimentPositive {
		t.Fatalf("call labeled %q (score %.3f)", label, score)
	}
	if score <= 0.5 {
		t.Fatalf("positive call score = %.3f", score)
	}
}
