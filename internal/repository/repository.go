package repository

import (
	"context"
	"errors"
	"time"

	"github.com/strikemap-systems/strikemap/internal/models"
)

var (
	ErrCountryNotFound = errors.New("no statistics for country")
)

// CountryCount is one row of the top-countries ranking for a day.
type CountryCount struct {
	CountryCode   string `json:"country_code"`
	IncomingCount int64  `json:"incoming_count"`
	OutgoingCount int64  `json:"outgoing_count"`
}

// TypeCount is the day-wide total for one attack type.
type TypeCount struct {
	AttackType string `json:"attack_type"`
	Count      int64  `json:"count"`
}

// Repository defines the interface for durable event and aggregate persistence
type Repository interface {
	// Write paths (ingest pipeline)
	SaveEvent(ctx context.Context, ev *models.AttackEvent) error
	SaveRawCapture(ctx context.Context, rc *models.RawCapture) error
	UpsertDailyAggregate(ctx context.Context, ev *models.AttackEvent) error
	PurgeRawCaptures(ctx context.Context, olderThan time.Time) (int64, error)

	// Read paths (REST surface)
	TopCountries(ctx context.Context, day time.Time, limit int) ([]*CountryCount, error)
	TypeDistribution(ctx context.Context, day time.Time) ([]*TypeCount, error)
	CountryStats(ctx context.Context, code string, day time.Time) (*models.DailyAggregate, error)

	// Utility
	Ping(ctx context.Context) error
	Close() error
}

// StatDay truncates t to its UTC calendar day, the granularity of the
// daily_stats table.
func StatDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
