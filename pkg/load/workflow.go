package load

import (
	"errors"
	"fmt"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

// Load statuses. The first six form the forward funnel in order;
// cancelled is a side exit available from any non-terminal stage.
const (
	StatusQuoted       = "quoted"
	StatusNeedsCarrier = "needs_carrier"
	StatusDispatched   = "dispatched"
	StatusInTransit    = "in_transit"
	StatusDelivered    = "delivered"
	StatusCompleted    = "completed"
	StatusCancelled    = "cancelled"
)

var funnel = []string{
	StatusQuoted,
	StatusNeedsCarrier,
	StatusDispatched,
	StatusInTransit,
	StatusDelivered,
	StatusCompleted,
}

var stageProgress = map[string]int{
	StatusQuoted:       0,
	StatusNeedsCarrier: 20,
	StatusDispatched:   40,
	StatusInTransit:    60,
	StatusDelivered:    80,
	StatusCompleted:    100,
}

// TransitionError reports a rejected workflow move, naming both sides.
type TransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot move load from %q to %q: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("cannot move load from %q to %q", e.From, e.To)
}

func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// Funnel returns the forward stages in order.
func Funnel() []string {
	out := make([]string, len(funnel))
	copy(out, funnel)
	return out
}

func IsValidStatus(status string) bool {
	if status == StatusCancelled {
		return true
	}
	_, ok := stageProgress[status]
	return ok
}

func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

func stageIndex(status string) int {
	for i, s := range funnel {
		if s == status {
			return i
		}
	}
	return -1
}

// Validate reports whether the load may move to the target status.
// Forward moves advance exactly one stage, backward moves retreat
// exactly one; completed can step back to delivered like any other
// stage. Cancelling is allowed from any stage short of completed, and
// cancelled loads are frozen. Entering dispatched requires an assigned
// carrier.
func Validate(l models.Load, to string) error {
	from := l.Status
	if !IsValidStatus(to) {
		return &TransitionError{From: from, To: to, Reason: "unknown status"}
	}
	if to == from {
		return &TransitionError{From: from, To: to, Reason: "load is already in that status"}
	}
	if from == StatusCancelled {
		return &TransitionError{From: from, To: to, Reason: "cancelled loads cannot change status"}
	}
	if to == StatusCancelled {
		if from == StatusCompleted {
			return &TransitionError{From: from, To: to, Reason: "completed loads cannot be cancelled"}
		}
		return nil
	}

	fromIdx := stageIndex(from)
	toIdx := stageIndex(to)
	if toIdx != fromIdx+1 && toIdx != fromIdx-1 {
		return &TransitionError{From: from, To: to, Reason: "stages cannot be skipped"}
	}
	if to == StatusDispatched && l.CarrierID == nil {
		return &TransitionError{From: from, To: to, Reason: "no carrier assigned"}
	}
	return nil
}

// AvailableTransitions lists the statuses the load may move to next:
// the single next funnel stage plus cancelled. Stepping back is a
// separate affordance; see CanReverse. Cancelled loads have none, and
// completed loads can only step back.
func AvailableTransitions(l models.Load) []string {
	if IsTerminal(l.Status) {
		return nil
	}

	idx := stageIndex(l.Status)
	if idx < 0 {
		return nil
	}

	var out []string
	if idx+1 < len(funnel) {
		out = append(out, funnel[idx+1])
	}
	return append(out, StatusCancelled)
}

// Previous returns the funnel stage before the given one. Quoted,
// cancelled, and unknown statuses have no predecessor.
func Previous(status string) (string, bool) {
	idx := stageIndex(status)
	if idx <= 0 {
		return "", false
	}
	return funnel[idx-1], true
}

// CanReverse reports whether the load can step back one stage. True for
// every stage with a funnel predecessor, so only quoted and cancelled
// cannot.
func CanReverse(status string) bool {
	_, ok := Previous(status)
	return ok
}

var statusLabels = map[string]string{
	StatusQuoted:       "Quoted",
	StatusNeedsCarrier: "Needs Carrier",
	StatusDispatched:   "Dispatched",
	StatusInTransit:    "In Transit",
	StatusDelivered:    "Delivered",
	StatusCompleted:    "Completed",
	StatusCancelled:    "Cancelled",
}

// NeedsCarrier reports whether the board should flag the load as
// waiting on truck assignment: no carrier attached and the funnel has
// not reached dispatched yet.
func NeedsCarrier(l models.Load) bool {
	if l.CarrierID != nil {
		return false
	}
	idx := stageIndex(l.Status)
	return idx >= 0 && idx < stageIndex(StatusDispatched)
}

// NeedsCarrierStatuses lists the stages where a load without a carrier
// counts as waiting on one. Aggregate queries pair these with a null
// carrier_id so dashboard counts agree with NeedsCarrier.
func NeedsCarrierStatuses() []string {
	return []string{StatusQuoted, StatusNeedsCarrier}
}

// DisplayLabel is the human form of the load's status for list views.
// A load still waiting on a carrier shows "Needs Carrier" even while
// its status is quoted.
func DisplayLabel(l models.Load) string {
	if NeedsCarrier(l) {
		return statusLabels[StatusNeedsCarrier]
	}
	if label, ok := statusLabels[l.Status]; ok {
		return label
	}
	return l.Status
}

// Progress maps a funnel stage to its percent complete.
func Progress(status string) int {
	if p, ok := stageProgress[status]; ok {
		return p
	}
	return 0
}

// ProgressAt resolves progress for a status given the last forward
// stage the load held. Cancelled loads keep that stage's percentage.
func ProgressAt(status, lastForward string) int {
	if status == StatusCancelled {
		return Progress(lastForward)
	}
	return Progress(status)
}

// NextProgress computes the progress bar value after a transition.
// Cancelling freezes the bar wherever the load last stood.
func NextProgress(to string, current int) int {
	if to == StatusCancelled {
		return current
	}
	return Progress(to)
}
