package telemetry

import (
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker()

	if !b.Allow() {
		t.Fatal("new breaker should allow")
	}
	if b.State() != BreakerClosed {
		t.Fatalf("expected closed, got %s", b.StateString())
	}

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}

	if b.State() != BreakerOpen {
		t.Errorf("expected open after threshold, got %s", b.StateString())
	}
	if b.Allow() {
		t.Error("open breaker should reject")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker()

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}

	if b.State() != BreakerClosed {
		t.Errorf("expected closed after interleaved successes, got %s", b.StateString())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b := &Breaker{
		failureThreshold: 2,
		resetTimeout:     10 * time.Millisecond,
		halfOpenMax:      2,
		state:            BreakerClosed,
	}

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.StateString())
	}

	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected probe to be allowed after reset timeout")
	}
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open, got %s", b.StateString())
	}

	b.RecordSuccess()
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %s", b.StateString())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := &Breaker{
		failureThreshold: 2,
		resetTimeout:     10 * time.Millisecond,
		halfOpenMax:      1,
		state:            BreakerClosed,
	}

	b.RecordFailure()
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected probe to be allowed")
	}
	b.RecordFailure()

	if b.State() != BreakerOpen {
		t.Errorf("expected reopen after failed probe, got %s", b.StateString())
	}
}
