package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     2 * time.Millisecond,
}

var realClock = clockwork.NewRealClock()

func TestDo_SuccessFirstAttempt(t *testing.T) {
	got, err := retry.Do(context.Background(), realClock, fastPolicy, retry.Transient, func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	var backoffs []time.Duration
	p := fastPolicy
	p.OnRetry = func(_ int, _ error, b time.Duration) { backoffs = append(backoffs, b) }

	_, err := retry.Do(context.Background(), realClock, p, retry.Transient, func(context.Context) (struct{}, error) {
		calls++
		if calls < 3 {
			return struct{}{}, errors.New("dial tcp: connection refused")
		}
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(backoffs) != 2 || backoffs[1] != 2*time.Millisecond {
		t.Fatalf("unexpected backoffs %v", backoffs)
	}
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	sentinel := errors.New("down")
	_, err := retry.Do(context.Background(), realClock, fastPolicy, retry.Transient, func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != fastPolicy.MaxAttempts {
		t.Fatalf("expected %d calls, got %d", fastPolicy.MaxAttempts, calls)
	}
}

func TestDo_StopIsPermanent(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), realClock, fastPolicy, retry.Transient, func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, context.Canceled
	})
	var perm *retry.PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermanentError, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := retry.Do(ctx, clock, retry.Startup, retry.Transient, func(context.Context) (struct{}, error) {
			return struct{}{}, errors.New("down")
		})
		done <- err
	}()

	if err := clock.BlockUntilContext(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("retry did not return after cancel")
	}
}

func TestDo_InvalidPolicy(t *testing.T) {
	_, err := retry.Do(context.Background(), realClock, retry.Policy{}, retry.Transient, func(context.Context) (int, error) {
		return 0, nil
	})
	if err == nil {
		t.Fatal("expected error for zero MaxAttempts")
	}
}
