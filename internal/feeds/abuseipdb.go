package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const abuseIPDBBlacklistURL = "https://api.abuseipdb.com/api/v2/blacklist"

// AbuseIPDBFetcher pulls the blacklist of recently reported IPs with high
// confidence scores. Each entry represents a potential attack source.
//
// Free tier allows 1,000 requests/day; the default 90s cadence stays under
// that with headroom.
type AbuseIPDBFetcher struct {
	apiKey        string
	baseURL       string
	limit         int
	minConfidence int
	client        *http.Client
}

// AbuseIPDBOption configures the fetcher.
type AbuseIPDBOption func(*AbuseIPDBFetcher)

// WithAbuseIPDBBaseURL overrides the API endpoint (tests).
func WithAbuseIPDBBaseURL(u string) AbuseIPDBOption {
	return func(f *AbuseIPDBFetcher) { f.baseURL = u }
}

// NewAbuseIPDBFetcher creates the blacklist fetcher. An empty apiKey is
// allowed; Fetch then fails with ErrMissingCredential.
func NewAbuseIPDBFetcher(apiKey string, limit, minConfidence int, timeout time.Duration, opts ...AbuseIPDBOption) *AbuseIPDBFetcher {
	if limit <= 0 {
		limit = 500
	}
	if minConfidence <= 0 {
		minConfidence = 80
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	f := &AbuseIPDBFetcher{
		apiKey:        apiKey,
		baseURL:       abuseIPDBBlacklistURL,
		limit:         limit,
		minConfidence: minConfidence,
		client:        &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements Fetcher.
func (f *AbuseIPDBFetcher) Name() string { return "abuseipdb" }

type abuseIPDBResponse struct {
	Data []BlacklistEntry `json:"data"`
}

// Fetch implements Fetcher.
func (f *AbuseIPDBFetcher) Fetch(ctx context.Context) (*Payload, error) {
	if f.apiKey == "" {
		return nil, ErrMissingCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Key", f.apiKey)
	req.Header.Set("Accept", "application/json")

	q := url.Values{}
	q.Set("confidenceMinimum", strconv.Itoa(f.minConfidence))
	q.Set("limit", strconv.Itoa(f.limit))
	req.URL.RawQuery = q.Encode()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if err := ClassifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	var decoded abuseIPDBResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode blacklist response: %w", err)
	}

	return &Payload{
		Feed:      f.Name(),
		Endpoint:  "/api/v2/blacklist",
		FetchedAt: time.Now().UTC(),
		Body:      body,
		Entries:   decoded.Data,
	}, nil
}
