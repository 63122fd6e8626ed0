// Package normalizer converts raw feed records into canonical attack events.
//
// Normalization is pure and deterministic: the same record always yields the
// same classification. Each record produces a classified Result so callers
// and tests can tell an intentionally filtered record from a processing
// failure.
package normalizer

import (
	"time"

	"github.com/google/uuid"

	"github.com/strikemap-systems/strikemap/internal/feeds"
	"github.com/strikemap-systems/strikemap/internal/models"
)

// MinConfidence is the floor below which records are silently filtered.
const MinConfidence = 80

// categoryMap translates AbuseIPDB category IDs to canonical attack types.
// IDs: 4=DDoS, 14=Port Scan, 18=Brute-Force, 19=Bad Web Bot,
// 20=Exploited Host, 21=Web App Attack.
var categoryMap = map[int]string{
	4:  models.TypeVolumetric,
	14: models.TypeSYNFlood,
	18: models.TypeHTTPFlood,
	21: models.TypeHTTPFlood,
	19: models.TypeBotnetDriven,
	20: models.TypeBotnetDriven,
}

// Outcome classifies what happened to one record.
type Outcome int

const (
	// Accepted means the record became an event.
	Accepted Outcome = iota
	// Skipped means the record was intentionally filtered (not an error).
	Skipped
	// Failed means the record could not be processed.
	Failed
)

// String returns the metrics/log label for an outcome.
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result is the classified outcome of normalizing one record.
type Result struct {
	Outcome    Outcome
	Event      *models.AttackEvent
	SkipReason string
	Err        error
}

// SeverityForConfidence maps a 0-100 confidence score to a severity level.
// Boundary values match the higher tier.
func SeverityForConfidence(score float64) string {
	switch {
	case score >= 95:
		return models.SeverityCritical
	case score >= 85:
		return models.SeverityHigh
	case score >= 75:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// AttackTypeForCategories picks the attack type for a record's category
// list: first category with a mapping wins, default Volumetric.
func AttackTypeForCategories(categories []int) string {
	for _, cat := range categories {
		if t, ok := categoryMap[cat]; ok {
			return t
		}
	}
	return models.TypeVolumetric
}

// Normalizer converts blacklist entries into attack events.
type Normalizer struct {
	minConfidence float64
	now           func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New creates a Normalizer with the standard confidence floor.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		minConfidence: MinConfidence,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts one entry into a classified result. The source IP is
// hashed before any other field is populated; the raw value is not retained
// in the result.
func (n *Normalizer) Normalize(entry feeds.BlacklistEntry, feed string) Result {
	if entry.AbuseConfidenceScore < n.minConfidence {
		return Result{Outcome: Skipped, SkipReason: "below_min_confidence"}
	}
	if entry.IPAddress == "" {
		return Result{Outcome: Skipped, SkipReason: "missing_identifier"}
	}

	ipHash := models.HashIdentifier(entry.IPAddress)

	reports := entry.TotalReports
	if reports < 1 {
		reports = 1
	}

	ev := &models.AttackEvent{
		ID:              uuid.New().String(),
		SourceIPHash:    ipHash,
		SourceCountry:   entry.CountryCode,
		AttackType:      AttackTypeForCategories(entry.Categories),
		Severity:        SeverityForConfidence(entry.AbuseConfidenceScore),
		ConfidenceScore: entry.AbuseConfidenceScore,
		ReportCount:     reports,
		DataSource:      feed,
		Timestamp:       n.now().UTC(),
	}
	return Result{Outcome: Accepted, Event: ev}
}

// NormalizeBatch normalizes every entry, preserving input order.
func (n *Normalizer) NormalizeBatch(entries []feeds.BlacklistEntry, feed string) []Result {
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		results = append(results, n.Normalize(entry, feed))
	}
	return results
}

// Accepted filters a batch's results down to accepted events, in order.
func AcceptedEvents(results []Result) []*models.AttackEvent {
	events := make([]*models.AttackEvent, 0, len(results))
	for _, r := range results {
		if r.Outcome == Accepted {
			events = append(events, r.Event)
		}
	}
	return events
}
