package call

// Call statuses. A call enters at uploaded, walks the pipeline stages
// in order, and ends at completed or failed. Failed calls may be
// retried, which puts them back into processing.
const (
	StatusUploaded     = "uploaded"
	StatusProcessing   = "processing"
	StatusTranscribing = "transcribing"
	StatusExtracting   = "extracting"
	StatusCompleted    = "completed"
	StatusFailed       = "failed"
)

var transitions = map[string][]string{
	StatusUploaded:     {StatusProcessing},
	StatusProcessing:   {StatusTranscribing, StatusFailed},
	StatusTranscribing: {StatusExtracting, StatusFailed},
	StatusExtracting:   {StatusCompleted, StatusFailed},
	StatusFailed:       {StatusProcessing},
	StatusCompleted:    {},
}

// Progress bands per pipeline stage. The worker reports progress inside
// the band for the stage it is in; completed pins to 100.
var progressBands = map[string][2]int{
	StatusUploaded:     {0, 0},
	StatusProcessing:   {0, 10},
	StatusTranscribing: {10, 60},
	StatusExtracting:   {60, 95},
	StatusCompleted:    {100, 100},
	StatusFailed:       {0, 100},
}

func IsValidStatus(status string) bool {
	_, ok := transitions[status]
	return ok
}

// CanTransition reports whether the pipeline may move a call from one
// status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the pipeline is done with the call. Failed
// is terminal for the pipeline even though an operator may retry it.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// IsActive reports whether a pipeline run currently owns the call.
func IsActive(status string) bool {
	return status == StatusProcessing || status == StatusTranscribing || status == StatusExtracting
}

// CanStartTranscription reports whether an operator may kick off a
// pipeline run.
func CanStartTranscription(status string) bool {
	return status == StatusUploaded || status == StatusFailed
}

// ProgressBand returns the inclusive progress range for a status.
func ProgressBand(status string) (int, int) {
	band, ok := progressBands[status]
	if !ok {
		return 0, 0
	}
	return band[0], band[1]
}

// ClampProgress pins a reported progress value into the band for the
// given status.
func ClampProgress(status string, progress int) int {
	lo, hi := ProgressBand(status)
	if progress < lo {
		return lo
	}
	if progress > hi {
		return hi
	}
	return progress
}
