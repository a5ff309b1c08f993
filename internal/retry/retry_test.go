package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func quick(maxAttempts int) Config {
	return Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Factor:       2.0,
	}
}

func TestDo_Success(t *testing.T) {
	calls := 0
	result := Do(context.Background(), quick(3), func() error {
		calls++
		return nil
	})
	if result.Err != nil {
		t.Errorf("expected success, got %v", result.Err)
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetryThenSuccess(t *testing.T) {
	calls := 0
	result := Do(context.Background(), quick(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if result.Err != nil {
		t.Errorf("expected eventual success, got %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
}

func TestDo_MaxAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("always fails")
	result := Do(context.Background(), quick(3), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(result.Err, wantErr) {
		t.Errorf("err = %v, want %v", result.Err, wantErr)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_PermanentStopsRetries(t *testing.T) {
	calls := 0
	result := Do(context.Background(), quick(5), func() error {
		calls++
		return Permanent(errors.New("bad request"))
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !IsPermanent(result.Err) {
		t.Error("expected a permanent error in the result")
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	result := Do(ctx, quick(3), func() error {
		calls++
		return errors.New("transient")
	})
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", result.Err)
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := Config{MaxAttempts: 3, InitialDelay: time.Minute}
	done := make(chan Result, 1)
	go func() {
		done <- Do(ctx, config, func() error {
			return errors.New("transient")
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		if !errors.Is(result.Err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", result.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDo_ZeroMaxAttemptsRunsOnce(t *testing.T) {
	calls := 0
	Do(context.Background(), Config{}, func() error {
		calls++
		return errors.New("transient")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoWithValue(t *testing.T) {
	calls := 0
	value, result := DoWithValue(context.Background(), quick(5), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "hello", nil
	})
	if result.Err != nil {
		t.Errorf("expected success, got %v", result.Err)
	}
	if value != "hello" {
		t.Errorf("value = %q, want hello", value)
	}
}

func TestDoWithValue_Failure(t *testing.T) {
	value, result := DoWithValue(context.Background(), quick(2), func() (int, error) {
		return 0, errors.New("always fails")
	})
	if result.Err == nil {
		t.Error("expected an error")
	}
	if value != 0 {
		t.Errorf("value = %d, want zero value", value)
	}
	if result.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", result.Attempts)
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestPermanentError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	wrapped := Permanent(fmt.Errorf("outer: %w", inner))
	if !errors.Is(wrapped, inner) {
		t.Error("expected wrapped error to match inner")
	}
	if !IsPermanent(fmt.Errorf("re-wrapped: %w", wrapped)) {
		t.Error("expected IsPermanent to see through wrapping")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialDelay != 200*time.Millisecond {
		t.Errorf("InitialDelay = %v", config.InitialDelay)
	}
	if !config.Jitter {
		t.Error("expected jitter by default")
	}
}

func TestExponential(t *testing.T) {
	config := Exponential(5, 50*time.Millisecond, 2*time.Second)
	if config.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", config.MaxAttempts)
	}
	if config.Factor != 2.0 {
		t.Errorf("Factor = %v, want 2.0", config.Factor)
	}
	if config.MaxDelay != 2*time.Second {
		t.Errorf("MaxDelay = %v", config.MaxDelay)
	}
}
