package splitquery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExecutorNonTransientNoRetry(t *testing.T) {
	exec := NewExecutor(BackoffPolicy{MaxAttempts: 5})
	boom := errors.New("constraint violation")
	calls := 0
	err := exec.Execute(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-transient failure retried, %d calls", calls)
	}
}

func TestExecutorRetriesUntilSuccess(t *testing.T) {
	exec := NewExecutor(BackoffPolicy{MaxAttempts: 4})
	calls := 0
	err := exec.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return MarkTransient(errors.New("timeout"))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestExecutorExhaustsAttempts(t *testing.T) {
	exec := NewExecutor(BackoffPolicy{MaxAttempts: 3})
	last := MarkTransient(errors.New("timeout"))
	calls := 0
	err := exec.Execute(context.Background(), func(context.Context) error {
		calls++
		return last
	})
	if !errors.Is(err, last) {
		t.Fatalf("expected the last transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected MaxAttempts calls, got %d", calls)
	}
}

func TestExecutorCancelledDuringBackoff(t *testing.T) {
	exec := NewExecutor(BackoffPolicy{MaxAttempts: 3, BaseDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := exec.Execute(ctx, func(context.Context) error {
		return MarkTransient(errors.New("timeout"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNoRetry(t *testing.T) {
	exec := NewExecutor(NoRetry{})
	boom := MarkTransient(errors.New("timeout"))
	calls := 0
	err := exec.Execute(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("NoRetry must surface immediately: calls=%d err=%v", calls, err)
	}
}

func TestBackoffDelayGrowth(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	for i, w := range want {
		d, ok := p.Delay(i + 1)
		if !ok || d != w {
			t.Errorf("Delay(%d) = %v, %v; want %v, true", i+1, d, ok, w)
		}
	}
	if _, ok := p.Delay(4); ok {
		t.Error("expected no attempt past MaxAttempts")
	}
}

func TestTransientMarking(t *testing.T) {
	base := errors.New("connection reset")
	if IsTransient(base) {
		t.Error("unmarked error classified transient")
	}
	marked := MarkTransient(base)
	if !IsTransient(marked) {
		t.Error("marked error not classified transient")
	}
	wrapped := fmt.Errorf("open reader: %w", marked)
	if !IsTransient(wrapped) {
		t.Error("transient tag lost through wrapping")
	}
	if !errors.Is(wrapped, base) {
		t.Error("original error lost through marking")
	}
	if MarkTransient(nil) != nil {
		t.Error("MarkTransient(nil) must stay nil")
	}
}
