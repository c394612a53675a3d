package retry

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/nulzo/llm-gateway/internal/httpclient"
)

// DefaultRateLimitMarkers are the vendor error-text fragments recognized as
// rate-limit/quota conditions. The list is a heuristic over divergent vendor
// error vocabularies and is configurable wherever it is consumed.
var DefaultRateLimitMarkers = []string{
	"quota",
	"rate limit",
	"rate_limit",
	"429",
	"insufficient_quota",
	"credit balance",
	"resource_exhausted",
}

// ContainsMarker reports whether msg carries any of the given markers.
func ContainsMarker(msg string, markers []string) bool {
	lowered := strings.ToLower(msg)
	for _, marker := range markers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// Retryable classifies an error as worth retrying: HTTP 429, HTTP 5xx, or a
// recognized rate-limit marker in the message. Everything else propagates on
// first occurrence.
func Retryable(err error, markers []string) bool {
	if err == nil {
		return false
	}
	if status := httpclient.StatusOf(err); status != 0 {
		return status == 429 || status >= 500
	}
	return ContainsMarker(err.Error(), markers)
}

// Executor wraps one fallible operation with exponential backoff and jitter.
// It owns all sleeping and attempt counting; callers never retry around it.
type Executor struct {
	InitialDelay time.Duration
	MaxRetries   int
	JitterFactor float64
	Markers      []string

	// Classify overrides the default retryable classification when set.
	Classify func(error) bool

	// sleep and jitter are injection points for tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// New returns an executor with the default policy: 2s initial delay, factor-2
// growth, 20% jitter, 8 retries.
func New() *Executor {
	return &Executor{
		InitialDelay: 2 * time.Second,
		MaxRetries:   8,
		JitterFactor: 0.2,
		Markers:      DefaultRateLimitMarkers,
		sleep:        sleepContext,
		jitter:       rand.Float64,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) retryable(err error) bool {
	if e.Classify != nil {
		return e.Classify(err)
	}
	return Retryable(err, e.Markers)
}

// Do runs op, retrying retryable failures with backoff
// delay = InitialDelay * 2^(attempt-1) plus jitter up to JitterFactor*delay.
// A server-declared Retry-After larger than the computed backoff wins. The
// final attempt's error is returned verbatim, unwrapped.
func (e *Executor) Do(ctx context.Context, op func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !e.retryable(err) || attempt > e.MaxRetries {
			return err
		}

		delay := e.backoff(attempt)
		if hinted := httpclient.RetryAfterOf(err); hinted > delay {
			delay = hinted
		}
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
}

func (e *Executor) backoff(attempt int) time.Duration {
	delay := e.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	if e.JitterFactor > 0 {
		delay += time.Duration(e.jitter() * e.JitterFactor * float64(delay))
	}
	return delay
}
