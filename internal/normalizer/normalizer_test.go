package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strikemap-systems/strikemap/internal/feeds"
	"github.com/strikemap-systems/strikemap/internal/models"
)

func TestSeverityForConfidence(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, models.SeverityCritical},
		{95, models.SeverityCritical},
		{94.9, models.SeverityHigh},
		{85, models.SeverityHigh},
		{84.9, models.SeverityMedium},
		{75, models.SeverityMedium},
		{74.9, models.SeverityLow},
		{0, models.SeverityLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityForConfidence(tt.score), "score %v", tt.score)
	}
}

func TestAttackTypeForCategories(t *testing.T) {
	tests := []struct {
		name       string
		categories []int
		want       string
	}{
		{"ddos", []int{4}, models.TypeVolumetric},
		{"port scan", []int{14}, models.TypeSYNFlood},
		{"brute force", []int{18}, models.TypeHTTPFlood},
		{"web app attack", []int{21}, models.TypeHTTPFlood},
		{"bad bot", []int{19}, models.TypeBotnetDriven},
		{"exploited host", []int{20}, models.TypeBotnetDriven},
		{"first match wins", []int{22, 14, 4}, models.TypeSYNFlood},
		{"unknown defaults", []int{22, 23}, models.TypeVolumetric},
		{"empty defaults", nil, models.TypeVolumetric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AttackTypeForCategories(tt.categories))
		})
	}
}

func entry(ip string, score float64) feeds.BlacklistEntry {
	return feeds.BlacklistEntry{
		IPAddress:            ip,
		AbuseConfidenceScore: score,
		CountryCode:          "CN",
		TotalReports:         45,
		Categories:           []int{4, 14},
	}
}

func TestNormalizeAccepted(t *testing.T) {
	fixed := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)
	n := New(WithClock(func() time.Time { return fixed }))

	res := n.Normalize(entry("198.51.100.1", 92), "abuseipdb")
	require.Equal(t, Accepted, res.Outcome)
	require.NotNil(t, res.Event)

	ev := res.Event
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, models.HashIdentifier("198.51.100.1"), ev.SourceIPHash)
	assert.NotContains(t, ev.SourceIPHash, "198.51.100.1")
	assert.Equal(t, "CN", ev.SourceCountry)
	assert.Empty(t, ev.TargetCountry)
	assert.Nil(t, ev.SourceLat)
	assert.Equal(t, models.TypeVolumetric, ev.AttackType)
	assert.Equal(t, models.SeverityHigh, ev.Severity)
	assert.Equal(t, float64(92), ev.ConfidenceScore)
	assert.Equal(t, 45, ev.ReportCount)
	assert.Equal(t, "abuseipdb", ev.DataSource)
	assert.Equal(t, fixed, ev.Timestamp)
}

func TestNormalizeConfidenceFloor(t *testing.T) {
	n := New()

	res := n.Normalize(entry("198.51.100.1", 79), "abuseipdb")
	assert.Equal(t, Skipped, res.Outcome)
	assert.Equal(t, "below_min_confidence", res.SkipReason)
	assert.Nil(t, res.Event)

	res = n.Normalize(entry("198.51.100.1", 80), "abuseipdb")
	assert.Equal(t, Accepted, res.Outcome)
}

func TestNormalizeMissingIdentifier(t *testing.T) {
	n := New()
	res := n.Normalize(entry("", 92), "abuseipdb")
	assert.Equal(t, Skipped, res.Outcome)
	assert.Equal(t, "missing_identifier", res.SkipReason)
}

func TestNormalizeReportCountFloor(t *testing.T) {
	n := New()
	e := entry("198.51.100.1", 92)
	e.TotalReports = 0
	res := n.Normalize(e, "abuseipdb")
	require.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, 1, res.Event.ReportCount)
}

func TestNormalizeBatchOrderAndFiltering(t *testing.T) {
	n := New()
	entries := []feeds.BlacklistEntry{
		entry("198.51.100.1", 96),
		entry("198.51.100.2", 79), // dropped
		entry("198.51.100.3", 85),
	}

	results := n.NormalizeBatch(entries, "abuseipdb")
	require.Len(t, results, 3)

	events := AcceptedEvents(results)
	require.Len(t, events, 2)
	assert.Equal(t, models.HashIdentifier("198.51.100.1"), events[0].SourceIPHash)
	assert.Equal(t, models.HashIdentifier("198.51.100.3"), events[1].SourceIPHash)
	assert.Equal(t, models.SeverityCritical, events[0].Severity)
	assert.Equal(t, models.SeverityHigh, events[1].Severity)
}

func TestNormalizeDeterministicHash(t *testing.T) {
	n := New()
	r1 := n.Normalize(entry("203.0.113.7", 90), "abuseipdb")
	r2 := n.Normalize(entry("203.0.113.7", 90), "abuseipdb")
	require.Equal(t, Accepted, r1.Outcome)
	require.Equal(t, Accepted, r2.Outcome)
	assert.Equal(t, r1.Event.SourceIPHash, r2.Event.SourceIPHash)
	assert.NotEqual(t, r1.Event.ID, r2.Event.ID)
}
