package modelgateway

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetriableError marks a backend failure as transient: network errors,
// 5xx responses, timeouts, and 429s. Everything else (bad input, auth
// failures, malformed responses) is treated as non-retriable and falls
// through to the next backend immediately instead of burning attempts.
type RetriableError struct {
	Err error
}

func (r *RetriableError) Error() string { return r.Err.Error() }
func (r *RetriableError) Unwrap() error { return r.Err }

func Retriable(err error) error {
	if err == nil {
		return nil
	}
	return &RetriableError{Err: err}
}

func IsRetriable(err error) bool {
	var r *RetriableError
	return errors.As(err, &r)
}

// StatusRetriable reports whether an HTTP status code should be retried:
// 5xx, 408, and 429. Other 4xx codes are treated as permanent failures of
// the current backend.
func StatusRetriable(status int) bool {
	if status >= 500 {
		return true
	}
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

// RetryPolicy implements the backoff contract from the model gateway
// design: base 500ms, doubling per attempt, plus up to 250ms of jitter,
// capped at MaxAttempts tries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxJitter:   250 * time.Millisecond,
	}
}

// Do runs fn, retrying on retriable errors per the policy. A non-retriable
// error returns immediately without consuming further attempts.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var result string
	var lastErr error
	attempt := 0

	operation := func() error {
		attempt++
		var err error
		result, err = fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetriable(err) {
			return backoff.Permanent(err)
		}
		if attempt >= maxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.BaseDelay * (1 << uint(maxAttempts)),
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	withJitter := backoff.WithMaxRetries(jitterBackOff{b, p.MaxJitter}, uint64(maxAttempts-1))

	err := backoff.Retry(operation, backoff.WithContext(withJitter, ctx))
	if err != nil {
		if lastErr != nil {
			return "", lastErr
		}
		return "", err
	}
	return result, nil
}

// jitterBackOff adds up to maxJitter of uniform random delay on top of the
// wrapped backoff's interval, per the "500ms*2^i + jitter(0..250ms)"
// contract.
type jitterBackOff struct {
	backoff.BackOff
	maxJitter time.Duration
}

func (j jitterBackOff) NextBackOff() time.Duration {
	base := j.BackOff.NextBackOff()
	if base == backoff.Stop || j.maxJitter <= 0 {
		return base
	}
	return base + time.Duration(rand.Int63n(int64(j.maxJitter)))
}
