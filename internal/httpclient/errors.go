package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// UpstreamError represents a non-2xx response from an upstream service.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
	// RetryAfter is the server-declared backoff from the Retry-After header,
	// zero when the header was absent or unparsable.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("upstream error: status %d from %s: %s", e.StatusCode, e.URL, string(e.Body))
}

func newUpstreamError(resp *http.Response, url string) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &UpstreamError{
		StatusCode: resp.StatusCode,
		Body:       body,
		URL:        url,
		RetryAfter: parseRetryAfter(resp.Header),
	}
}

// parseRetryAfter reads the Retry-After header, accepting both the
// delay-seconds and the HTTP-date form.
func parseRetryAfter(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// StatusOf extracts the upstream HTTP status from an error chain, zero when
// the error did not originate from an upstream response.
func StatusOf(err error) int {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode
	}
	return 0
}

// RetryAfterOf extracts the server-declared backoff from an error chain.
func RetryAfterOf(err error) time.Duration {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.RetryAfter
	}
	return 0
}
