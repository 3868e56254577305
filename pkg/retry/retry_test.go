package retry

import (
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorClass
	}{
		{"connection timeout", Transient},
		{"503 Service Unavailable", Transient},
		{"replacement transaction underpriced", Underpriced},
		{"max fee per gas less than block base fee", Underpriced},
		{"nonce too low", NonceTooLow},
		{"already known", NonceTooLow},
		{"nonce too high", NonceTooHigh},
		{"execution reverted: Approval not found", Permanent},
		{"insufficient funds for gas", Permanent},
		{"some unknown error", Unknown},
	}
	for _, c := range cases {
		if got := ClassifyError(c.msg); got != c.want {
			t.Errorf("ClassifyError(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestBackoffForAttemptSequence(t *testing.T) {
	cfg := DefaultConfig()
	want := []time.Duration{2, 4, 8, 16, 32, 60, 60}
	for attempt, w := range want {
		got := cfg.BackoffForAttempt(attempt)
		if got != w*time.Second {
			t.Errorf("BackoffForAttempt(%d) = %v, want %v", attempt, got, w*time.Second)
		}
	}
}

func TestGasPriceForAttempt(t *testing.T) {
	cfg := DefaultConfig()
	base := int64(100)
	if got := cfg.GasPriceForAttempt(base, 0); got != 100 {
		t.Errorf("attempt 0: got %d, want 100", got)
	}
	if got := cfg.GasPriceForAttempt(base, 1); got != 120 {
		t.Errorf("attempt 1: got %d, want 120", got)
	}
	if got := cfg.GasPriceForAttempt(base, 2); got != 140 {
		t.Errorf("attempt 2: got %d, want 140", got)
	}
	if got := cfg.GasPriceForAttempt(base, 10); got != 300 {
		t.Errorf("attempt 10 (capped at 3x): got %d, want 300", got)
	}
}

func TestDecidePermanentDeadLetters(t *testing.T) {
	d := Decide(DefaultConfig(), Permanent, 0)
	if d.Action != ActionDeadLetter {
		t.Fatalf("expected dead letter, got %v", d.Action)
	}
}

func TestDecideNonceTooLowSkips(t *testing.T) {
	d := Decide(DefaultConfig(), NonceTooLow, 0)
	if d.Action != ActionSkip {
		t.Fatalf("expected skip, got %v", d.Action)
	}
}

func TestDecideUnderpricedBumpsGas(t *testing.T) {
	d := Decide(DefaultConfig(), Underpriced, 1)
	if d.Action != ActionRetryWithGas || !d.GasBump {
		t.Fatalf("expected retry-with-gas, got %+v", d)
	}
}

func TestDecideExhaustedAttemptsDeadLetters(t *testing.T) {
	cfg := DefaultConfig()
	d := Decide(cfg, Transient, cfg.MaxAttempts)
	if d.Action != ActionDeadLetter {
		t.Fatalf("expected dead letter after max attempts, got %v", d.Action)
	}
}

func TestCircuitBreakerTripsAtThreshold(t *testing.T) {
	cfg := CircuitBreakerConfig{Threshold: 3, PauseDuration: time.Minute}
	cb := NewCircuitBreaker(cfg)
	base := time.Now()
	cb.now = func() time.Time { return base }

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.Paused() {
		t.Fatalf("should not be paused before reaching threshold")
	}
	cb.RecordFailure()
	if !cb.Paused() {
		t.Fatalf("expected breaker to trip at threshold")
	}
	if cb.ConsecutiveFailures() != 0 {
		t.Fatalf("expected counter reset after trip")
	}
}

func TestCircuitBreakerResetsOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	if cb.ConsecutiveFailures() != 0 {
		t.Fatalf("expected reset to zero after success")
	}
	if !cb.Healthy() {
		t.Fatalf("expected healthy after reset")
	}
}
