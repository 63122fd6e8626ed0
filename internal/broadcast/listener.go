package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/strikemap-systems/strikemap/internal/metrics"
	"github.com/strikemap-systems/strikemap/internal/models"
	"github.com/strikemap-systems/strikemap/internal/store"
)

const (
	defaultBaseBackoff = 1 * time.Second
	defaultMaxBackoff  = 30 * time.Second
)

// Subscriber opens a consumption of the shared attack channel.
// Satisfied by store.Store.
type Subscriber interface {
	Subscribe(ctx context.Context) (store.Subscription, error)
}

// Listener is the sole consumer of the shared channel in this process: it
// holds one subscription and forwards every decoded event to the registry.
// On subscription loss it reconnects with exponential backoff, so its
// supervision loop only ends on shutdown. A message that fails to decode
// is logged and skipped; only transport errors trigger the reconnect path.
type Listener struct {
	subscriber Subscriber
	registry   *Registry
	logger     *slog.Logger

	baseBackoff time.Duration
	maxBackoff  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithBackoff overrides the reconnect backoff bounds.
func WithBackoff(base, max time.Duration) ListenerOption {
	return func(l *Listener) {
		l.baseBackoff = base
		l.maxBackoff = max
	}
}

// withSleep overrides the backoff sleeper (tests).
func withSleep(sleep func(ctx context.Context, d time.Duration) error) ListenerOption {
	return func(l *Listener) { l.sleep = sleep }
}

// NewListener creates the channel listener.
func NewListener(subscriber Subscriber, registry *Registry, logger *slog.Logger, opts ...ListenerOption) *Listener {
	l := &Listener{
		subscriber:  subscriber,
		registry:    registry,
		logger:      logger,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
		sleep:       ctxSleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run consumes the channel until ctx is cancelled. Cancellation is
// observed promptly, including during a backoff wait.
func (l *Listener) Run(ctx context.Context) {
	backoff := l.baseBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		sub, err := l.subscriber.Subscribe(ctx)
		if err != nil {
			l.logger.Error("channel subscription failed, reconnecting",
				"error", err.Error(), "backoff", backoff.String())
			metrics.ListenerReconnects.Inc()
			if l.sleep(ctx, backoff) != nil {
				return
			}
			backoff = min(backoff*2, l.maxBackoff)
			continue
		}

		l.logger.Info("channel listener subscribed", "channel", store.ChannelAttacks)
		backoff = l.baseBackoff

		if err := l.consume(ctx, sub); err != nil {
			l.logger.Error("channel subscription lost, reconnecting",
				"error", err.Error(), "backoff", backoff.String())
			metrics.ListenerReconnects.Inc()
			if l.sleep(ctx, backoff) != nil {
				return
			}
			backoff = min(backoff*2, l.maxBackoff)
			continue
		}
		// consume only returns nil on cancellation
		return
	}
}

// consume reads messages until a transport error (returned) or
// cancellation (nil).
func (l *Listener) consume(ctx context.Context, sub store.Subscription) error {
	defer sub.Close()

	for {
		payload, err := sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var ev models.AttackEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			l.logger.Warn("skipping undecodable channel message", "error", err.Error())
			continue
		}

		l.registry.Broadcast(Envelope{Type: "attack", Data: ev})
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
