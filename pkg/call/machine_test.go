package call

import "testing"

func TestPipelineTransitions(t *testing.T) {
	valid := []struct{ from, to string }{
		{StatusUploaded, StatusProcessing},
		{StatusProcessing, StatusTranscribing},
		{StatusTranscribing, StatusExtracting},
		{StatusExtracting, StatusCompleted},
		{StatusProcessing, StatusFailed},
		{StatusTranscribing, StatusFailed},
		{StatusExtracting, StatusFailed},
		{StatusFailed, StatusProcessing},
	}
	for _, tc := range valid {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	invalid := []struct{ from, to string }{
		{StatusUploaded, StatusTranscribing},
		{StatusUploaded, StatusCompleted},
		{StatusUploaded, StatusFailed},
		{StatusProcessing, StatusCompleted},
		{StatusCompleted, StatusProcessing},
		{StatusCompleted, StatusFailed},
	}
	for _, tc := range invalid {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}
}

func TestStartTranscriptionOnlyFromUploadedOrFailed(t *testing.T) {
	for _, status := range []string{StatusUploaded, StatusFailed} {
		if !CanStartTranscription(status) {
			t.Fatalf("start should be allowed from %s", status)
		}
	}
	for _, status := range []string{StatusProcessing, StatusTranscribing, StatusExtracting, StatusCompleted} {
		if CanStartTranscription(status) {
			t.Fatalf("start should be rejected from %s", status)
		}
	}
}

func TestTerminalAndActiveStatuses(t *testing.T) {
	if !IsTerminal(StatusCompleted) || !IsTerminal(StatusFailed) {
		t.Fatal("completed and failed are terminal")
	}
	for _, status := range []string{StatusUploaded, StatusProcessing, StatusTranscribing, StatusExtracting} {
		if IsTerminal(status) {
			t.Fatalf("%s should not be terminal", status)
		}
	}
	for _, status := range []string{StatusProcessing, StatusTranscribing, StatusExtracting} {
		if !IsActive(status) {
			t.Fatalf("%s should be active", status)
		}
	}
	if IsActive(StatusUploaded) || IsActive(StatusCompleted) {
		t.Fatal("uploaded/completed are not active")
	}
}

func TestProgressBands(t *testing.T) {
	cases := []struct {
		status string
		lo, hi int
	}{
		{StatusProcessing, 0, 10},
		{StatusTranscribing, 10, 60},
		{StatusExtracting, 60, 95},
		{StatusCompleted, 100, 100},
	}
	for _, tc := range cases {
		lo, hi := ProgressBand(tc.status)
		if lo != tc.lo || hi != tc.hi {
			t.Fatalf("%s band = [%d,%d], want [%d,%d]", tc.status, lo, hi, tc.lo, tc.hi)
		}
	}

	if got := ClampProgress(StatusTranscribing, 5); got != 10 {
		t.Fatalf("clamp below band: got %d, want 10", got)
	}
	if got := ClampProgress(StatusTranscribing, 72); got != 60 {
		t.Fatalf("clamp above band: got %d, want 60", got)
	}
	if got := ClampProgress(StatusTranscribing, 33); got != 33 {
		t.Fatalf("clamp inside band: got %d, want 33", got)
	}
}
