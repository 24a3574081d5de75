package modelgateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyStopsOnNonRetriable(t *testing.T) {
	attempts := 0
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	_, err := p.Do(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("permanent")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for non-retriable error, got %d", attempts)
	}
}

func TestRetryPolicyRetriesUpToMax(t *testing.T) {
	attempts := 0
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxJitter: time.Millisecond}

	_, err := p.Do(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", Retriable(errors.New("transient"))
	})

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryPolicySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxJitter: time.Millisecond}

	result, err := p.Do(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", Retriable(errors.New("transient"))
		}
		return "success", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "success" {
		t.Fatalf("expected success, got %q", result)
	}
}

func TestStatusRetriable(t *testing.T) {
	cases := map[int]bool{200: false, 400: false, 401: false, 404: false, 408: true, 429: true, 500: true, 503: true}
	for status, want := range cases {
		if got := StatusRetriable(status); got != want {
			t.Errorf("StatusRetriable(%d) = %v, want %v", status, got, want)
		}
	}
}
