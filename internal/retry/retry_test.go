package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nulzo/llm-gateway/internal/httpclient"
)

func newTestExecutor(slept *[]time.Duration) *Executor {
	e := New()
	e.jitter = func() float64 { return 0 }
	e.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return e
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var slept []time.Duration
	e := newTestExecutor(&slept)

	calls := 0
	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &httpclient.UpstreamError{StatusCode: 503}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var slept []time.Duration
	e := newTestExecutor(&slept)

	calls := 0
	want := &httpclient.UpstreamError{StatusCode: 400, Body: []byte("bad payload")}
	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		return want
	})

	assert.Equal(t, 1, calls)
	assert.Empty(t, slept)
	assert.Same(t, want, err)
}

func TestDoRespectsLargerRetryAfter(t *testing.T) {
	var slept []time.Duration
	e := newTestExecutor(&slept)

	calls := 0
	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &httpclient.UpstreamError{StatusCode: 429, RetryAfter: 30 * time.Second}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []time.Duration{30 * time.Second}, slept)
}

func TestDoIgnoresSmallerRetryAfter(t *testing.T) {
	var slept []time.Duration
	e := newTestExecutor(&slept)

	calls := 0
	_ = e.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &httpclient.UpstreamError{StatusCode: 429, RetryAfter: 500 * time.Millisecond}
		}
		return nil
	})

	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestDoExhaustionReturnsFinalErrorVerbatim(t *testing.T) {
	var slept []time.Duration
	e := newTestExecutor(&slept)
	e.MaxRetries = 3

	calls := 0
	final := errors.New("rate limit exceeded: attempt 4")
	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 4 {
			return errors.New("rate limit exceeded: transient")
		}
		return final
	})

	assert.Same(t, final, err)
	assert.Equal(t, 4, calls)
	assert.Len(t, slept, 3)
}

func TestDoStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	e := New()
	e.jitter = func() float64 { return 0 }
	e.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	upstream := &httpclient.UpstreamError{StatusCode: 500}
	err := e.Do(ctx, func(context.Context) error {
		calls++
		return upstream
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, upstream, err)
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"429", &httpclient.UpstreamError{StatusCode: 429}, true},
		{"500", &httpclient.UpstreamError{StatusCode: 500}, true},
		{"401", &httpclient.UpstreamError{StatusCode: 401}, false},
		{"marker text", errors.New("Rate limit reached for model"), true},
		{"quota text", errors.New("You exceeded your current quota"), true},
		{"plain failure", errors.New("connection refused"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Retryable(tc.err, DefaultRateLimitMarkers))
		})
	}
}

func TestBackoffGrowth(t *testing.T) {
	e := New()
	e.jitter = func() float64 { return 0 }

	assert.Equal(t, 2*time.Second, e.backoff(1))
	assert.Equal(t, 4*time.Second, e.backoff(2))
	assert.Equal(t, 16*time.Second, e.backoff(4))
}

func TestBackoffJitterBounded(t *testing.T) {
	e := New()
	e.jitter = func() float64 { return 1 }

	// Full jitter adds at most JitterFactor of the base delay.
	assert.Equal(t, 2*time.Second+400*time.Millisecond, e.backoff(1))
}
