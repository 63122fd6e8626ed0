// Package models defines the canonical event shapes shared across the
// ingestion pipeline, the Redis store and the broadcast layer.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Attack type values assigned by the normalizer. Kept in sync with the
// per-type columns of the daily_stats table.
const (
	TypeSYNFlood         = "SYN Flood"
	TypeUDPFlood         = "UDP Flood"
	TypeHTTPFlood        = "HTTP Flood"
	TypeDNSAmplification = "DNS Amplification"
	TypeNTPAmplification = "NTP Amplification"
	TypeICMPFlood        = "ICMP Flood"
	TypeVolumetric       = "Volumetric"
	TypeBotnetDriven     = "Botnet-Driven"
)

// AttackTypes lists every canonical attack type, in display order.
var AttackTypes = []string{
	TypeSYNFlood,
	TypeUDPFlood,
	TypeHTTPFlood,
	TypeDNSAmplification,
	TypeNTPAmplification,
	TypeICMPFlood,
	TypeVolumetric,
	TypeBotnetDriven,
}

// Severity levels derived from the feed confidence score.
const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
	SeverityLow      = "Low"
)

// AttackEvent is a single normalized attack observation. It is immutable
// after creation: enrichment fills previously-unset optional fields and
// never overwrites set ones.
//
// The raw source IP is hashed during normalization; nothing downstream of
// the normalizer ever sees or logs it.
type AttackEvent struct {
	ID           string `json:"id"`
	SourceIPHash string `json:"source_ip_hash"`

	SourceCountry string   `json:"source_country,omitempty"`
	SourceLat     *float64 `json:"source_lat,omitempty"`
	SourceLng     *float64 `json:"source_lng,omitempty"`

	// Target attribution is a future classification stage; unset until then.
	TargetCountry string   `json:"target_country,omitempty"`
	TargetLat     *float64 `json:"target_lat,omitempty"`
	TargetLng     *float64 `json:"target_lng,omitempty"`

	AttackType      string  `json:"attack_type"`
	Severity        string  `json:"severity"`
	ConfidenceScore float64 `json:"confidence_score"`
	ReportCount     int     `json:"report_count"`

	DataSource string    `json:"data_source"`
	Timestamp  time.Time `json:"timestamp"`
}

// HashIdentifier one-way hashes a raw network identifier (IP address)
// before storage or transport. SHA-256, hex encoded.
func HashIdentifier(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DailyAggregate is one (region, UTC day) row of incrementally-maintained
// counters. It is only ever updated via UPSERT increments, never recomputed.
type DailyAggregate struct {
	CountryCode   string         `json:"country_code"`
	StatDate      time.Time      `json:"stat_date"`
	IncomingCount int64          `json:"incoming_count"`
	OutgoingCount int64          `json:"outgoing_count"`
	ByType        map[string]int `json:"by_type,omitempty"`
	PrimaryType   string         `json:"primary_attack_type,omitempty"`
}

// RawCapture is an unmodified feed payload retained for replay and audit,
// independent of whether normalization later succeeds.
type RawCapture struct {
	ID        string    `json:"id"`
	Feed      string    `json:"feed"`
	Endpoint  string    `json:"endpoint"`
	FetchedAt time.Time `json:"fetched_at"`
	Payload   []byte    `json:"payload"`
	Processed bool      `json:"processed"`
}
