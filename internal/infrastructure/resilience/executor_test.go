package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func retryable(error) ErrorClassification {
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

func permanent(error) ErrorClassification {
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	err := exec.Execute(context.Background(), "publish", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	}, retryable)

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	boom := errors.New("bad payload")
	err := exec.Execute(context.Background(), "publish", func(context.Context) error {
		calls++
		return boom
	}, permanent)

	if !errors.Is(err, boom) {
		t.Fatalf("expected underlying error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent error must not retry, got %d attempts", calls)
	}
}

func TestExecuteStopsAtMaxAttempts(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	boom := errors.New("still down")
	err := exec.Execute(context.Background(), "publish", func(context.Context) error {
		calls++
		return boom
	}, retryable)

	if !errors.Is(err, boom) {
		t.Fatalf("expected underlying error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestExecuteOpensCircuitAfterRepeatedFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	exec := NewExecutor(cfg)

	boom := errors.New("backend down")
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "flaky", func(context.Context) error {
			return boom
		}, retryable)
	}

	err := exec.Execute(context.Background(), "flaky", func(context.Context) error {
		return nil
	}, retryable)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
}

func TestExecuteBreakersAreIsolatedPerOperation(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	exec := NewExecutor(cfg)

	boom := errors.New("backend down")
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "flaky", func(context.Context) error {
			return boom
		}, retryable)
	}

	err := exec.Execute(context.Background(), "healthy", func(context.Context) error {
		return nil
	}, retryable)
	if err != nil {
		t.Fatalf("unrelated operation must not trip, got %v", err)
	}
}

func TestExecuteRespectsContextCancellation(t *testing.T) {
	exec := NewExecutor(fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := exec.Execute(ctx, "publish", func(context.Context) error {
		calls++
		return errors.New("never retried")
	}, retryable)

	if err == nil {
		t.Fatalf("expected error")
	}
	if calls > 1 {
		t.Fatalf("cancelled context must not retry, got %d attempts", calls)
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	cfg := Config{}.normalize()
	def := DefaultConfig()
	if cfg.RetryMaxAttempts != def.RetryMaxAttempts || cfg.RetryMultiplier != def.RetryMultiplier {
		t.Fatalf("zero config not normalized: %+v", cfg)
	}
	if cfg.BreakerMinRequests != def.BreakerMinRequests {
		t.Fatalf("breaker defaults not applied: %+v", cfg)
	}
}
