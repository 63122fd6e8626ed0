package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strikemap-systems/strikemap/internal/models"
)

// typeColumns maps each canonical attack type to its daily_stats counter
// column. Every models.AttackTypes entry must have a column here.
var typeColumns = map[string]string{
	models.TypeSYNFlood:         "syn_flood_count",
	models.TypeUDPFlood:         "udp_flood_count",
	models.TypeHTTPFlood:        "http_flood_count",
	models.TypeDNSAmplification: "dns_amplification_count",
	models.TypeNTPAmplification: "ntp_amplification_count",
	models.TypeICMPFlood:        "icmp_flood_count",
	models.TypeVolumetric:       "volumetric_count",
	models.TypeBotnetDriven:     "botnet_count",
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// SaveEvent inserts one normalized attack event.
func (r *PostgresRepository) SaveEvent(ctx context.Context, ev *models.AttackEvent) error {
	query := `
		INSERT INTO attack_events (
			id, source_ip_hash, source_country, source_lat, source_lng,
			target_country, target_lat, target_lng,
			attack_type, severity, confidence_score, report_count,
			data_source, event_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		ev.ID, ev.SourceIPHash, nullIfEmpty(ev.SourceCountry), ev.SourceLat, ev.SourceLng,
		nullIfEmpty(ev.TargetCountry), ev.TargetLat, ev.TargetLng,
		ev.AttackType, ev.Severity, ev.ConfidenceScore, ev.ReportCount,
		ev.DataSource, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save attack event: %w", err)
	}

	return nil
}

// SaveRawCapture stores an unmodified feed payload for replay and audit.
func (r *PostgresRepository) SaveRawCapture(ctx context.Context, rc *models.RawCapture) error {
	query := `
		INSERT INTO raw_captures (id, feed, endpoint, fetched_at, payload, processed)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		rc.ID, rc.Feed, rc.Endpoint, rc.FetchedAt, rc.Payload, rc.Processed,
	)
	if err != nil {
		return fmt.Errorf("failed to save raw capture: %w", err)
	}

	return nil
}

// UpsertDailyAggregate increments the per-day counters the event touches:
// outgoing for the source region, incoming for the target region (when
// attributed). The primary attack type is recomputed inside the UPSERT so
// the row never needs a separate recalculation pass.
func (r *PostgresRepository) UpsertDailyAggregate(ctx context.Context, ev *models.AttackEvent) error {
	day := StatDay(ev.Timestamp)

	if ev.SourceCountry != "" {
		if err := r.upsertRegion(ctx, ev.SourceCountry, day, ev.AttackType, 0, 1); err != nil {
			return err
		}
	}
	if ev.TargetCountry != "" {
		if err := r.upsertRegion(ctx, ev.TargetCountry, day, ev.AttackType, 1, 0); err != nil {
			return err
		}
	}

	return nil
}

const upsertDailyStatsQuery = `
	INSERT INTO daily_stats (
		country_code, stat_date, incoming_count, outgoing_count,
		syn_flood_count, udp_flood_count, http_flood_count,
		dns_amplification_count, ntp_amplification_count, icmp_flood_count,
		volumetric_count, botnet_count, primary_attack_type
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (country_code, stat_date) DO UPDATE SET
		incoming_count = daily_stats.incoming_count + EXCLUDED.incoming_count,
		outgoing_count = daily_stats.outgoing_count + EXCLUDED.outgoing_count,
		syn_flood_count = daily_stats.syn_flood_count + EXCLUDED.syn_flood_count,
		udp_flood_count = daily_stats.udp_flood_count + EXCLUDED.udp_flood_count,
		http_flood_count = daily_stats.http_flood_count + EXCLUDED.http_flood_count,
		dns_amplification_count = daily_stats.dns_amplification_count + EXCLUDED.dns_amplification_count,
		ntp_amplification_count = daily_stats.ntp_amplification_count + EXCLUDED.ntp_amplification_count,
		icmp_flood_count = daily_stats.icmp_flood_count + EXCLUDED.icmp_flood_count,
		volumetric_count = daily_stats.volumetric_count + EXCLUDED.volumetric_count,
		botnet_count = daily_stats.botnet_count + EXCLUDED.botnet_count,
		primary_attack_type = (
			SELECT name FROM (VALUES
				('SYN Flood', daily_stats.syn_flood_count + EXCLUDED.syn_flood_count),
				('UDP Flood', daily_stats.udp_flood_count + EXCLUDED.udp_flood_count),
				('HTTP Flood', daily_stats.http_flood_count + EXCLUDED.http_flood_count),
				('DNS Amplification', daily_stats.dns_amplification_count + EXCLUDED.dns_amplification_count),
				('NTP Amplification', daily_stats.ntp_amplification_count + EXCLUDED.ntp_amplification_count),
				('ICMP Flood', daily_stats.icmp_flood_count + EXCLUDED.icmp_flood_count),
				('Volumetric', daily_stats.volumetric_count + EXCLUDED.volumetric_count),
				('Botnet-Driven', daily_stats.botnet_count + EXCLUDED.botnet_count)
			) AS counts(name, total)
			ORDER BY total DESC, name
			LIMIT 1
		)
`

func (r *PostgresRepository) upsertRegion(ctx context.Context, code string, day time.Time, attackType string, incoming, outgoing int64) error {
	column, ok := typeColumns[attackType]
	if !ok {
		return fmt.Errorf("unknown attack type %q", attackType)
	}

	// One positional parameter per type column: 1 for the event's type,
	// 0 for the rest.
	typeIncrements := make(map[string]int64, len(typeColumns))
	for _, col := range typeColumns {
		typeIncrements[col] = 0
	}
	typeIncrements[column] = 1

	_, err := r.pool.Exec(ctx, upsertDailyStatsQuery,
		code, day, incoming, outgoing,
		typeIncrements["syn_flood_count"],
		typeIncrements["udp_flood_count"],
		typeIncrements["http_flood_count"],
		typeIncrements["dns_amplification_count"],
		typeIncrements["ntp_amplification_count"],
		typeIncrements["icmp_flood_count"],
		typeIncrements["volumetric_count"],
		typeIncrements["botnet_count"],
		attackType,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily aggregate for %s: %w", code, err)
	}

	return nil
}

// PurgeRawCaptures deletes raw payloads fetched before the cutoff and
// returns how many rows were removed.
func (r *PostgresRepository) PurgeRawCaptures(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx,
		"DELETE FROM raw_captures WHERE fetched_at < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge raw captures: %w", err)
	}

	return result.RowsAffected(), nil
}

// TopCountries ranks countries by total traffic (incoming plus outgoing)
// for one UTC day.
func (r *PostgresRepository) TopCountries(ctx context.Context, day time.Time, limit int) ([]*CountryCount, error) {
	query := `
		SELECT country_code, incoming_count, outgoing_count
		FROM daily_stats
		WHERE stat_date = $1
		ORDER BY incoming_count + outgoing_count DESC, country_code
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, StatDay(day), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top countries: %w", err)
	}
	defer rows.Close()

	counts := []*CountryCount{}
	for rows.Next() {
		c := &CountryCount{}
		if err := rows.Scan(&c.CountryCode, &c.IncomingCount, &c.OutgoingCount); err != nil {
			return nil, fmt.Errorf("failed to scan country count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return counts, nil
}

// TypeDistribution sums every per-type counter across all countries for
// one UTC day, returned in canonical display order.
func (r *PostgresRepository) TypeDistribution(ctx context.Context, day time.Time) ([]*TypeCount, error) {
	query := `
		SELECT
			COALESCE(SUM(syn_flood_count), 0),
			COALESCE(SUM(udp_flood_count), 0),
			COALESCE(SUM(http_flood_count), 0),
			COALESCE(SUM(dns_amplification_count), 0),
			COALESCE(SUM(ntp_amplification_count), 0),
			COALESCE(SUM(icmp_flood_count), 0),
			COALESCE(SUM(volumetric_count), 0),
			COALESCE(SUM(botnet_count), 0)
		FROM daily_stats
		WHERE stat_date = $1
	`

	totals := make([]int64, len(models.AttackTypes))
	err := r.pool.QueryRow(ctx, query, StatDay(day)).Scan(
		&totals[0], &totals[1], &totals[2], &totals[3],
		&totals[4], &totals[5], &totals[6], &totals[7],
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query type distribution: %w", err)
	}

	counts := make([]*TypeCount, 0, len(models.AttackTypes))
	for i, name := range models.AttackTypes {
		counts = append(counts, &TypeCount{AttackType: name, Count: totals[i]})
	}

	return counts, nil
}

// CountryStats returns the aggregate row for one country and UTC day.
func (r *PostgresRepository) CountryStats(ctx context.Context, code string, day time.Time) (*models.DailyAggregate, error) {
	query := `
		SELECT
			country_code, stat_date, incoming_count, outgoing_count,
			syn_flood_count, udp_flood_count, http_flood_count,
			dns_amplification_count, ntp_amplification_count, icmp_flood_count,
			volumetric_count, botnet_count, primary_attack_type
		FROM daily_stats
		WHERE country_code = $1 AND stat_date = $2
	`

	agg := &models.DailyAggregate{}
	totals := make([]int64, len(models.AttackTypes))
	var primary *string
	err := r.pool.QueryRow(ctx, query, code, StatDay(day)).Scan(
		&agg.CountryCode, &agg.StatDate, &agg.IncomingCount, &agg.OutgoingCount,
		&totals[0], &totals[1], &totals[2], &totals[3],
		&totals[4], &totals[5], &totals[6], &totals[7],
		&primary,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCountryNotFound
		}
		return nil, fmt.Errorf("failed to query country stats: %w", err)
	}

	agg.ByType = make(map[string]int, len(models.AttackTypes))
	for i, name := range models.AttackTypes {
		agg.ByType[name] = int(totals[i])
	}
	if primary != nil {
		agg.PrimaryType = *primary
	}

	return agg, nil
}

// Ping verifies database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
