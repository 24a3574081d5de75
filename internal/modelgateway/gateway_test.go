package modelgateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubBackend struct {
	id       string
	attempts int
	fail     func(attempt int) error
	response string
}

func (s *stubBackend) ID() string { return s.id }

func (s *stubBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	s.attempts++
	if s.fail != nil {
		if err := s.fail(s.attempts); err != nil {
			return "", err
		}
	}
	return s.response, nil
}

func (s *stubBackend) Ping(ctx context.Context) error { return nil }

func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxJitter: time.Millisecond}
}

func TestGatewayFallsThroughOnNonRetriableError(t *testing.T) {
	first := &stubBackend{id: "first", fail: func(int) error { return errors.New("bad auth") }}
	second := &stubBackend{id: "second", response: "ok"}

	g := New(nil, nil, []Backend{first, second}, WithRetryPolicy(fastRetryPolicy()))
	gen, err := g.Generate(context.Background(), "sys", "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.ModelUsed != "second" {
		t.Fatalf("expected fallback to second backend, got %q", gen.ModelUsed)
	}
	if first.attempts != 1 {
		t.Fatalf("expected non-retriable error to consume exactly 1 attempt, got %d", first.attempts)
	}
}

func TestGatewayRetriesTransientError(t *testing.T) {
	backend := &stubBackend{
		id: "flaky",
		fail: func(attempt int) error {
			if attempt < 2 {
				return Retriable(errors.New("timeout"))
			}
			return nil
		},
		response: "ok",
	}

	g := New(nil, nil, []Backend{backend}, WithRetryPolicy(fastRetryPolicy()))
	gen, err := g.Generate(context.Background(), "sys", "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.Text != "ok" {
		t.Fatalf("expected eventual success, got %q", gen.Text)
	}
	if backend.attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", backend.attempts)
	}
}

func TestGatewayAllBackendsDown(t *testing.T) {
	a := &stubBackend{id: "a", fail: func(int) error { return errors.New("down") }}
	b := &stubBackend{id: "b", fail: func(int) error { return errors.New("down too") }}

	g := New(nil, nil, []Backend{a, b}, WithRetryPolicy(fastRetryPolicy()))
	_, err := g.Generate(context.Background(), "sys", "prompt")
	if !errors.Is(err, ErrAllBackendsDown) {
		t.Fatalf("expected ErrAllBackendsDown, got %v", err)
	}
}

func TestGatewayForceOfflineSkipsRemoteBackends(t *testing.T) {
	remote := &stubBackend{id: "gemini", response: "should not be used"}
	local := &stubBackend{id: "ollama", response: "local response"}

	g := New(nil, nil, []Backend{remote, local},
		WithRetryPolicy(fastRetryPolicy()), WithForceOffline(true))

	gen, err := g.Generate(context.Background(), "sys", "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.ModelUsed != "ollama" || gen.Mode != "offline" {
		t.Fatalf("expected offline local backend, got model=%q mode=%q", gen.ModelUsed, gen.Mode)
	}
	if remote.attempts != 0 {
		t.Fatalf("expected remote backend to be skipped under force-offline, got %d attempts", remote.attempts)
	}
}
