package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIdentifierDeterministic(t *testing.T) {
	h1 := HashIdentifier("198.51.100.23")
	h2 := HashIdentifier("198.51.100.23")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHashIdentifierDistinct(t *testing.T) {
	assert.NotEqual(t, HashIdentifier("198.51.100.23"), HashIdentifier("198.51.100.24"))
}

func TestHashIdentifierNotReversible(t *testing.T) {
	raw := "203.0.113.9"
	h := HashIdentifier(raw)
	assert.NotContains(t, h, raw)
}

func TestAttackEventJSONOmitsUnsetOptionals(t *testing.T) {
	ev := AttackEvent{
		ID:              "e1",
		SourceIPHash:    HashIdentifier("203.0.113.9"),
		SourceCountry:   "CN",
		AttackType:      TypeVolumetric,
		Severity:        SeverityHigh,
		ConfidenceScore: 91,
		ReportCount:     3,
		DataSource:      "abuseipdb",
		Timestamp:       time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.NotContains(t, decoded, "source_lat")
	assert.NotContains(t, decoded, "target_country")
	assert.Equal(t, "abuseipdb", decoded["data_source"])
}

func TestAttackTypesCount(t *testing.T) {
	assert.Len(t, AttackTypes, 8)
}
