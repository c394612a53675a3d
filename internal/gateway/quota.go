package gateway

import (
	"github.com/nulzo/llm-gateway/internal/httpclient"
	"github.com/nulzo/llm-gateway/internal/retry"
)

// QuotaClassifier decides whether a failure means the provider is out of
// quota or rate-limited, in which case the fallback chain advances instead of
// surfacing the error. Vendors disagree on error vocabulary, so the marker
// list is configurable.
type QuotaClassifier struct {
	markers []string
}

func NewQuotaClassifier(markers ...string) *QuotaClassifier {
	if len(markers) == 0 {
		markers = retry.DefaultRateLimitMarkers
	}
	return &QuotaClassifier{markers: markers}
}

// IsQuota reports whether the error is a quota or rate-limit condition:
// HTTP 429, or a recognized marker in the message.
func (q *QuotaClassifier) IsQuota(err error) bool {
	if err == nil {
		return false
	}
	if httpclient.StatusOf(err) == 429 {
		return true
	}
	return retry.ContainsMarker(err.Error(), q.markers)
}
