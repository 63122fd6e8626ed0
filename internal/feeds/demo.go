package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// demo feed category pool: known AbuseIPDB category IDs plus a few the
// normalizer does not map, so demo traffic exercises the default branch too.
var demoCategories = []int{4, 14, 18, 19, 20, 21, 22, 23}

// DemoFetcher synthesizes blacklist entries locally. It backs demo mode and
// the seed command so the full pipeline can run without API keys.
type DemoFetcher struct {
	batch int
	faker *gofakeit.Faker
}

// NewDemoFetcher creates a demo fetcher emitting batch entries per fetch.
func NewDemoFetcher(batch int) *DemoFetcher {
	if batch <= 0 {
		batch = 10
	}
	return &DemoFetcher{
		batch: batch,
		faker: gofakeit.New(0),
	}
}

// Name implements Fetcher.
func (f *DemoFetcher) Name() string { return "demo" }

// Fetch implements Fetcher. It never fails.
func (f *DemoFetcher) Fetch(ctx context.Context) (*Payload, error) {
	now := time.Now().UTC()
	entries := make([]BlacklistEntry, 0, f.batch)
	for i := 0; i < f.batch; i++ {
		cats := []int{demoCategories[f.faker.Number(0, len(demoCategories)-1)]}
		if f.faker.Bool() {
			cats = append(cats, demoCategories[f.faker.Number(0, len(demoCategories)-1)])
		}
		entries = append(entries, BlacklistEntry{
			IPAddress: f.faker.IPv4Address(),
			// Skewed above the drop threshold so most demo entries survive.
			AbuseConfidenceScore: float64(f.faker.Number(60, 100)),
			CountryCode:          f.faker.CountryAbr(),
			TotalReports:         f.faker.Number(1, 60),
			LastReportedAt:       now,
			Categories:           cats,
		})
	}

	body, err := json.Marshal(map[string]any{"data": entries})
	if err != nil {
		return nil, fmt.Errorf("marshal demo batch: %w", err)
	}

	return &Payload{
		Feed:      f.Name(),
		Endpoint:  "demo://blacklist",
		FetchedAt: now,
		Body:      body,
		Entries:   entries,
	}, nil
}
