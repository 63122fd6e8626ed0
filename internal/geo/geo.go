// Package geo attaches approximate locations to attack events.
//
// The primary source is a static region table embedded in the binary
// (code -> name + centroid). An optional MaxMind database upgrades raw
// identifier resolution when present; its absence degrades gracefully.
package geo

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/strikemap-systems/strikemap/internal/models"
)

//go:embed region_centroids.yaml
var centroidData []byte

// Region is one reference-table row.
type Region struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lng  float64 `yaml:"lng"`
}

// Table is the static region reference table, loaded once at startup.
type Table struct {
	regions map[string]Region
}

// LoadTable parses the embedded centroid table.
func LoadTable() (*Table, error) {
	regions := map[string]Region{}
	if err := yaml.Unmarshal(centroidData, &regions); err != nil {
		return nil, fmt.Errorf("parse region centroids: %w", err)
	}
	return &Table{regions: regions}, nil
}

// Len returns the number of regions in the table.
func (t *Table) Len() int { return len(t.regions) }

// Centroid returns the centroid for a region code.
func (t *Table) Centroid(code string) (lat, lng float64, ok bool) {
	r, ok := t.regions[strings.ToUpper(code)]
	if !ok {
		return 0, 0, false
	}
	return r.Lat, r.Lng, true
}

// Name returns the display name for a region code.
func (t *Table) Name(code string) (string, bool) {
	r, ok := t.regions[strings.ToUpper(code)]
	if !ok {
		return "", false
	}
	return r.Name, true
}

// All returns the full table, used to seed reference data.
func (t *Table) All() map[string]Region {
	out := make(map[string]Region, len(t.regions))
	for k, v := range t.regions {
		out[k] = v
	}
	return out
}

// Enrich fills unset coordinates on the event from region centroids.
// Fields already set are left untouched; unknown codes are a no-op.
func (t *Table) Enrich(ev *models.AttackEvent) {
	if ev.SourceCountry != "" && ev.SourceLat == nil {
		if lat, lng, ok := t.Centroid(ev.SourceCountry); ok {
			ev.SourceLat, ev.SourceLng = &lat, &lng
		}
	}
	if ev.TargetCountry != "" && ev.TargetLat == nil {
		if lat, lng, ok := t.Centroid(ev.TargetCountry); ok {
			ev.TargetLat, ev.TargetLng = &lat, &lng
		}
	}
}
