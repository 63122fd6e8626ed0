// Package feeds fetches raw payloads from external threat-intelligence APIs.
//
// Each fetcher decodes its feed's response into typed records at the
// ingestion boundary, so the normalizer never sees loose JSON maps. Fetch
// failures are classified with sentinel errors so callers can distinguish a
// missing credential (degrade to no-op) from a transient transport problem
// (retried by the next scheduled firing).
package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Classified fetch errors.
var (
	// ErrMissingCredential means no API key is configured for the feed.
	ErrMissingCredential = errors.New("feed credential not configured")
	// ErrRateLimited means the upstream returned 429.
	ErrRateLimited = errors.New("feed rate limited")
	// ErrTransport covers timeouts and connection failures.
	ErrTransport = errors.New("feed transport error")
	// ErrServer covers upstream 5xx responses.
	ErrServer = errors.New("feed server error")
)

// BlacklistEntry is one decoded record from a blacklist-style feed.
// Field names follow the AbuseIPDB response shape.
type BlacklistEntry struct {
	IPAddress            string    `json:"ipAddress"`
	AbuseConfidenceScore float64   `json:"abuseConfidenceScore"`
	CountryCode          string    `json:"countryCode"`
	TotalReports         int       `json:"totalReports"`
	LastReportedAt       time.Time `json:"lastReportedAt"`
	Categories           []int     `json:"categories"`
}

// Payload is the result of one fetch: the unmodified body for raw capture
// plus the decoded records, when the feed carries any.
type Payload struct {
	Feed      string
	Endpoint  string
	FetchedAt time.Time
	Body      []byte
	Entries   []BlacklistEntry
}

// Fetcher retrieves one feed's current payload.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) (*Payload, error)
}

// ClassifyStatus maps an HTTP status code to a classified feed error.
// Returns nil for 2xx.
func ClassifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrServer, code)
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

// ErrorLabel returns a short label for a classified fetch error,
// used for logging and metrics.
func ErrorLabel(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrServer):
		return "server_error"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	default:
		return "error"
	}
}
