package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const radarBaseURL = "https://api.cloudflare.com/client/v4/radar"

// RadarFetcher pulls DDoS attack summaries from Cloudflare Radar for the
// trailing hour. The feed is informational: it carries layer breakdowns,
// not per-source records, so its payload is captured raw and logged but
// produces no events.
type RadarFetcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// RadarOption configures the fetcher.
type RadarOption func(*RadarFetcher)

// WithRadarBaseURL overrides the API base URL (tests).
func WithRadarBaseURL(u string) RadarOption {
	return func(f *RadarFetcher) { f.baseURL = u }
}

// NewRadarFetcher creates the Cloudflare Radar summary fetcher.
func NewRadarFetcher(apiKey string, timeout time.Duration, opts ...RadarOption) *RadarFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	f := &RadarFetcher{
		apiKey:  apiKey,
		baseURL: radarBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements Fetcher.
func (f *RadarFetcher) Name() string { return "cloudflare_radar" }

// Fetch implements Fetcher. It queries the L3 and L7 attack summaries and
// combines whatever succeeded into one payload; both failing is an error.
func (f *RadarFetcher) Fetch(ctx context.Context) (*Payload, error) {
	if f.apiKey == "" {
		return nil, ErrMissingCredential
	}

	now := time.Now().UTC()
	q := url.Values{}
	q.Set("dateStart", now.Add(-time.Hour).Format("2006-01-02T15:04:05Z"))
	q.Set("dateEnd", now.Format("2006-01-02T15:04:05Z"))
	q.Set("format", "json")

	layers := map[string]json.RawMessage{}
	var lastErr error
	for _, layer := range []string{"layer3", "layer7"} {
		body, err := f.get(ctx, fmt.Sprintf("/attacks/%s/summary", layer), q)
		if err != nil {
			lastErr = err
			continue
		}
		layers[layer] = body
	}

	if len(layers) == 0 {
		return nil, lastErr
	}

	combined, err := json.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("combine radar summaries: %w", err)
	}

	return &Payload{
		Feed:      f.Name(),
		Endpoint:  "/attacks/summary",
		FetchedAt: now,
		Body:      combined,
	}, nil
}

func (f *RadarFetcher) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")
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
	return body, nil
}
