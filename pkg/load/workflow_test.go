package load

import (
	"strings"
	"testing"

	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
)

func loadWith(status string, carrier bool) models.Load {
	l := models.Load{Status: status}
	if carrier {
		id := uuid.New()
		l.CarrierID = &id
	}
	return l
}

func TestForwardTransitions(t *testing.T) {
	stages := Funnel()
	for i := 0; i < len(stages)-1; i++ {
		from, to := stages[i], stages[i+1]
		if err := Validate(loadWith(from, true), to); err != nil {
			t.Fatalf("%s -> %s should be valid: %v", from, to, err)
		}
	}
}

func TestSkippingStagesRejected(t *testing.T) {
	cases := []struct{ from, to string }{
		{StatusQuoted, StatusDispatched},
		{StatusQuoted, StatusCompleted},
		{StatusNeedsCarrier, StatusInTransit},
		{StatusDispatched, StatusDelivered},
	}
	for _, tc := range cases {
		err := Validate(loadWith(tc.from, true), tc.to)
		if err == nil {
			t.Fatalf("%s -> %s should be rejected", tc.from, tc.to)
		}
		if !IsTransitionError(err) {
			t.Fatalf("%s -> %s: expected TransitionError, got %T", tc.from, tc.to, err)
		}
		if !strings.Contains(err.Error(), tc.from) || !strings.Contains(err.Error(), tc.to) {
			t.Fatalf("error should name both statuses: %v", err)
		}
	}
}

func TestSingleStepBackAllowed(t *testing.T) {
	if err := Validate(loadWith(StatusInTransit, true), StatusDispatched); err != nil {
		t.Fatalf("in_transit -> dispatched should be valid: %v", err)
	}
	if err := Validate(loadWith(StatusDelivered, true), StatusInTransit); err != nil {
		t.Fatalf("delivered -> in_transit should be valid: %v", err)
	}
	if err := Validate(loadWith(StatusDelivered, true), StatusDispatched); err == nil {
		t.Fatal("two steps back should be rejected")
	}
}

func TestCancelFromAnyActiveStage(t *testing.T) {
	for _, from := range []string{StatusQuoted, StatusNeedsCarrier, StatusDispatched, StatusInTransit, StatusDelivered} {
		if err := Validate(loadWith(from, true), StatusCancelled); err != nil {
			t.Fatalf("%s -> cancelled should be valid: %v", from, err)
		}
	}
}

func TestCancelledIsFrozen(t *testing.T) {
	for _, to := range []string{StatusQuoted, StatusInTransit, StatusDelivered, StatusCompleted} {
		if err := Validate(loadWith(StatusCancelled, true), to); err == nil {
			t.Fatalf("cancelled -> %s should be rejected", to)
		}
	}
}

func TestCompletedOnlyStepsBack(t *testing.T) {
	if err := Validate(loadWith(StatusCompleted, true), StatusDelivered); err != nil {
		t.Fatalf("completed -> delivered should be valid: %v", err)
	}
	for _, to := range []string{StatusQuoted, StatusInTransit, StatusCancelled} {
		if err := Validate(loadWith(StatusCompleted, true), to); err == nil {
			t.Fatalf("completed -> %s should be rejected", to)
		}
	}
}

func TestDispatchRequiresCarrier(t *testing.T) {
	err := Validate(loadWith(StatusNeedsCarrier, false), StatusDispatched)
	if err == nil {
		t.Fatal("dispatch without carrier should be rejected")
	}
	if !strings.Contains(err.Error(), "no carrier assigned") {
		t.Fatalf("unexpected reason: %v", err)
	}

	if err := Validate(loadWith(StatusNeedsCarrier, true), StatusDispatched); err != nil {
		t.Fatalf("dispatch with carrier should be valid: %v", err)
	}
}

func TestUnknownAndNoopStatusRejected(t *testing.T) {
	if err := Validate(loadWith(StatusQuoted, true), "teleported"); err == nil {
		t.Fatal("unknown status should be rejected")
	}
	if err := Validate(loadWith(StatusQuoted, true), StatusQuoted); err == nil {
		t.Fatal("same-status transition should be rejected")
	}
}

func TestProgressMapping(t *testing.T) {
	want := map[string]int{
		StatusQuoted:       0,
		StatusNeedsCarrier: 20,
		StatusDispatched:   40,
		StatusInTransit:    60,
		StatusDelivered:    80,
		StatusCompleted:    100,
	}
	for status, pct := range want {
		if got := Progress(status); got != pct {
			t.Fatalf("Progress(%s) = %d, want %d", status, got, pct)
		}
	}
}

func TestCancelFreezesProgress(t *testing.T) {
	if got := NextProgress(StatusCancelled, 60); got != 60 {
		t.Fatalf("cancel should keep progress at 60, got %d", got)
	}
	if got := NextProgress(StatusDelivered, 60); got != 80 {
		t.Fatalf("forward move should advance progress, got %d", got)
	}
}

func TestAvailableTransitions(t *testing.T) {
	got := AvailableTransitions(loadWith(StatusQuoted, false))
	want := []string{StatusNeedsCarrier, StatusCancelled}
	if len(got) != len(want) {
		t.Fatalf("quoted: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("quoted: got %v, want %v", got, want)
		}
	}

	got = AvailableTransitions(loadWith(StatusInTransit, true))
	want = []string{StatusDelivered, StatusCancelled}
	if len(got) != len(want) {
		t.Fatalf("in_transit: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("in_transit: got %v, want %v", got, want)
		}
	}

	if got := AvailableTransitions(loadWith(StatusCompleted, true)); got != nil {
		t.Fatalf("completed should have no transitions, got %v", got)
	}
	if got := AvailableTransitions(loadWith(StatusCancelled, true)); got != nil {
		t.Fatalf("cancelled should have no transitions, got %v", got)
	}
}

func TestPreviousAndCanReverse(t *testing.T) {
	if prev, ok := Previous(StatusDispatched); !ok || prev != StatusNeedsCarrier {
		t.Fatalf("Previous(dispatched) = %q, %v", prev, ok)
	}
	if _, ok := Previous(StatusQuoted); ok {
		t.Fatal("quoted should have no predecessor")
	}
	if _, ok := Previous(StatusCancelled); ok {
		t.Fatal("cancelled should have no predecessor")
	}
	if _, ok := Previous("bogus"); ok {
		t.Fatal("unknown status should have no predecessor")
	}
	if CanReverse(StatusQuoted) {
		t.Fatal("quoted cannot reverse")
	}
	if CanReverse(StatusCancelled) {
		t.Fatal("cancelled cannot reverse")
	}
	if !CanReverse(StatusDelivered) {
		t.Fatal("delivered should reverse to in_transit")
	}
	if !CanReverse(StatusCompleted) {
		t.Fatal("completed should reverse to delivered")
	}

	// Wherever reversing is offered, the move itself must validate.
	for _, status := range append(Funnel(), StatusCancelled) {
		if !CanReverse(status) {
			continue
		}
		prev, ok := Previous(status)
		if !ok {
			t.Fatalf("CanReverse(%s) without a predecessor", status)
		}
		if err := Validate(loadWith(status, true), prev); err != nil {
			t.Fatalf("%s -> %s should validate: %v", status, prev, err)
		}
	}
}

func countNeedingCarrier(board []models.Load) int {
	n := 0
	for _, l := range board {
		if NeedsCarrier(l) {
			n++
		}
	}
	return n
}

func TestNeedsCarrierBoardScenario(t *testing.T) {
	fresh := loadWith(StatusQuoted, false)
	if !NeedsCarrier(fresh) {
		t.Fatal("quoted load without a carrier should need one")
	}
	if got := DisplayLabel(fresh); got != "Needs Carrier" {
		t.Fatalf("DisplayLabel = %q, want Needs Carrier", got)
	}

	board := []models.Load{
		fresh,
		loadWith(StatusNeedsCarrier, false),
		loadWith(StatusInTransit, true),
		loadWith(StatusCompleted, true),
	}
	before := countNeedingCarrier(board)
	if before != 2 {
		t.Fatalf("expected 2 loads waiting on a carrier, got %d", before)
	}

	// Assign a truck and walk the load forward to dispatched.
	id := uuid.New()
	board[0].CarrierID = &id
	for _, to := range []string{StatusNeedsCarrier, StatusDispatched} {
		if err := Validate(board[0], to); err != nil {
			t.Fatalf("%s -> %s: %v", board[0].Status, to, err)
		}
		board[0].Status = to
	}

	if NeedsCarrier(board[0]) {
		t.Fatal("dispatched load should no longer need a carrier")
	}
	if got := DisplayLabel(board[0]); got != "Dispatched" {
		t.Fatalf("DisplayLabel = %q, want Dispatched", got)
	}
	if after := countNeedingCarrier(board); after != before-1 {
		t.Fatalf("needs-carrier count should drop by one: %d -> %d", before, after)
	}
}

// The SQL filter the dashboard aggregates use must count exactly the
// loads NeedsCarrier would flag.
func TestNeedsCarrierStatusesMatchPredicate(t *testing.T) {
	counted := map[string]bool{}
	for _, status := range NeedsCarrierStatuses() {
		counted[status] = true
	}
	for _, status := range append(Funnel(), StatusCancelled) {
		if got := NeedsCarrier(loadWith(status, false)); got != counted[status] {
			t.Fatalf("aggregate filter and NeedsCarrier disagree on %s", status)
		}
		if NeedsCarrier(loadWith(status, true)) {
			t.Fatalf("%s load with a carrier should never count", status)
		}
	}
}

func TestDisplayLabelCoversEveryStatus(t *testing.T) {
	for _, status := range append(Funnel(), StatusCancelled) {
		if got := DisplayLabel(loadWith(status, true)); got == "" || got == status {
			t.Fatalf("DisplayLabel(%s) = %q, want a human label", status, got)
		}
	}
	if got := DisplayLabel(loadWith("bogus", true)); got != "bogus" {
		t.Fatalf("unknown status should pass through, got %q", got)
	}
}

func TestProgressAt(t *testing.T) {
	if got := ProgressAt(StatusCancelled, StatusInTransit); got != 60 {
		t.Fatalf("cancelled after in_transit = %d, want 60", got)
	}
	if got := ProgressAt(StatusCancelled, ""); got != 0 {
		t.Fatalf("cancelled with no history = %d, want 0", got)
	}
	if got := ProgressAt(StatusDelivered, StatusQuoted); got != 80 {
		t.Fatalf("forward status ignores history, got %d", got)
	}
}
