package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	b := New("test", Config{FailureThreshold: 3, Timeout: time.Minute})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := b.Execute(context.Background(), func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}

	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open after threshold, got %s", got)
	}
	if err := b.Execute(context.Background(), func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while tripped, got %v", err)
	}
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b := New("test", Config{FailureThreshold: 3, Timeout: time.Minute})
	boom := errors.New("boom")

	_ = b.Execute(context.Background(), func() error { return boom })
	_ = b.Execute(context.Background(), func() error { return boom })
	_ = b.Execute(context.Background(), func() error { return nil })
	_ = b.Execute(context.Background(), func() error { return boom })

	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed, got %s", got)
	}
}

func TestRecoversThroughHalfOpen(t *testing.T) {
	b := New("test", Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		MaxRequests:      2,
		Timeout:          10 * time.Millisecond,
	})

	_ = b.Execute(context.Background(), func() error { return errors.New("boom") })
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open, got %s", got)
	}

	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := b.Execute(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after successful probes, got %s", got)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, Timeout: 10 * time.Millisecond})

	_ = b.Execute(context.Background(), func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)

	_ = b.Execute(context.Background(), func() error { return errors.New("still down") })
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected reopen on half-open failure, got %s", got)
	}
}
