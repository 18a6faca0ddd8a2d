package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

type ErrorKind string

const (
	ErrTransient ErrorKind = "transient" // timeout, rate limit, 5xx: retryable
	ErrFatal     ErrorKind = "fatal"     // malformed request, auth failure: never retried
)

// InvocationError classifies a failed model call. Kind decides whether the
// retry policy applies and whether the session controller fails the whole
// session or only the pair.
type InvocationError struct {
	Kind ErrorKind
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("llm: %s invocation error: %v", e.Kind, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable invocation error.
func Transient(err error) *InvocationError {
	return &InvocationError{Kind: ErrTransient, Err: err}
}

// Fatal wraps err as a non-retryable invocation error.
func Fatal(err error) *InvocationError {
	return &InvocationError{Kind: ErrFatal, Err: err}
}

// IsFatal reports whether err is a fatal invocation error. Unclassified
// errors are treated as transient so a flaky collaborator cannot take the
// whole session down.
func IsFatal(err error) bool {
	var invErr *InvocationError
	return errors.As(err, &invErr) && invErr.Kind == ErrFatal
}

// RetryPolicy separates retry policy from mechanism: max attempts, base
// delay, exponential growth. The per-call timeout is classified transient
// and re-enters this policy rather than the session cancellation path.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CallTimeout time.Duration
}

// DefaultRetryPolicy matches upstream rate-limit guidance.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		CallTimeout: 60 * time.Second,
	}
}

// delay returns base * 2^attempt for the given zero-based attempt.
func (p RetryPolicy) delay(attempt int) time.Duration {
	return p.BaseDelay * (1 << attempt)
}

// Client wraps an Invoker with the retry policy. It is the only entry
// point the rest of the system uses for model calls.
type Client struct {
	invoker Invoker
	policy  RetryPolicy
}

func NewClient(invoker Invoker, policy RetryPolicy) *Client {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Client{invoker: invoker, policy: policy}
}

// Complete runs one call through the retry policy. Transient failures are
// retried with exponential backoff; the final transient failure and any
// fatal failure surface as an *InvocationError.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	var lastErr error

	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.policy.delay(attempt - 1)
			log.Debug().Int("attempt", attempt).Dur("wait", wait).Msg("llm: retrying after transient failure")
			select {
			case <-ctx.Done():
				return Response{}, Transient(ctx.Err())
			case <-time.After(wait):
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if c.policy.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.policy.CallTimeout)
		}

		resp, err := c.invoker.Complete(callCtx, req)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return resp, nil
		}

		if IsFatal(err) {
			return Response{}, err
		}

		// Deadline from the per-call timeout is a transient failure.
		if errors.Is(err, context.DeadlineExceeded) {
			err = Transient(err)
		}
		lastErr = err
	}

	var invErr *InvocationError
	if errors.As(lastErr, &invErr) {
		return Response{}, invErr
	}
	return Response{}, Transient(lastErr)
}
