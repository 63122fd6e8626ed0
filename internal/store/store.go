// Package store provides the shared low-latency state used by every
// pipeline stage: daily counters, the rolling recent-event list, and the
// pub/sub channel feeding the broadcast fan-out.
//
// Designed for multiple service instances sharing one Redis. All
// operations are atomic at the store level (single commands, pipelines or
// scripts), so correctness never depends on serializing callers.
//
// Redis key structure:
//
//	counter:today     - int, today's attack count (no TTL; the day-rotation
//	                    job owns expiry, a passive TTL could race slow jobs
//	                    near midnight)
//	counter:yesterday - int, yesterday's final count (TTL 25h, tolerates
//	                    clock skew at the boundary)
//	attacks:recent    - list, last 100 event JSON payloads (TTL 1h)
//	channel:attacks   - pub/sub channel for live broadcast
package store

import (
	"context"

	"github.com/strikemap-systems/strikemap/internal/models"
)

// ChannelAttacks is the pub/sub channel carrying live attack events.
const ChannelAttacks = "channel:attacks"

// MaxRecent bounds the rolling recent-event list.
const MaxRecent = 100

// Subscription is one active consumption of the attack channel.
type Subscription interface {
	// Receive blocks until the next message or a transport/context error.
	Receive(ctx context.Context) ([]byte, error)
	// Close tears the subscription down.
	Close() error
}

// Store is the narrow contract between the ingestion pipeline, the
// broadcast fan-out and the API read paths. Counter and recent-history
// state are independent: a failure in one never blocks the other.
type Store interface {
	// IncrementToday atomically adds n to today's counter and returns the
	// new total.
	IncrementToday(ctx context.Context, n int64) (int64, error)
	// GetToday returns today's running total (0 when absent).
	GetToday(ctx context.Context) (int64, error)
	// GetYesterday returns yesterday's final total; ok=false when expired
	// or never set.
	GetYesterday(ctx context.Context) (int64, bool, error)
	// RotateDay atomically archives today's total as yesterday and resets
	// today. No interleaving with concurrent increments can lose an update
	// or double the rollover.
	RotateDay(ctx context.Context) error

	// PushRecent prepends an event to the bounded recent list.
	PushRecent(ctx context.Context, ev *models.AttackEvent) error
	// GetRecent returns up to limit recent events, newest first.
	GetRecent(ctx context.Context, limit int) ([]models.AttackEvent, error)

	// Publish fires the event on the shared channel, best-effort.
	Publish(ctx context.Context, ev *models.AttackEvent) error
	// Subscribe opens a consumption of the shared channel.
	Subscribe(ctx context.Context) (Subscription, error)

	// Ping reports store reachability.
	Ping(ctx context.Context) error
	Close() error
}
