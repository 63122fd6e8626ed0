// Package ingest drives the fetch-normalize-enrich-store pipeline for a
// single feed firing.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strikemap-systems/strikemap/internal/feeds"
	"github.com/strikemap-systems/strikemap/internal/geo"
	"github.com/strikemap-systems/strikemap/internal/logging"
	"github.com/strikemap-systems/strikemap/internal/metrics"
	"github.com/strikemap-systems/strikemap/internal/models"
	"github.com/strikemap-systems/strikemap/internal/normalizer"
	"github.com/strikemap-systems/strikemap/internal/repository"
	"github.com/strikemap-systems/strikemap/internal/store"
)

// Classifier attributes a target region to an enriched event. Attribution
// is optional: an implementation that sets nothing is valid, and the event
// simply carries no target fields.
type Classifier interface {
	Classify(ev *models.AttackEvent)
}

// NoopClassifier performs no target attribution.
type NoopClassifier struct{}

func (NoopClassifier) Classify(*models.AttackEvent) {}

// Service runs the ingestion pipeline. The repository is optional: with no
// database configured the pipeline keeps the live surface (Redis counters,
// recent window, channel) working and skips durable persistence.
type Service struct {
	store      store.Store
	repo       repository.Repository
	norm       *normalizer.Normalizer
	regions    *geo.Table
	resolver   *geo.Resolver
	classifier Classifier
	logger     *slog.Logger

	// Configuration-missing conditions are logged once, not per firing.
	// Jobs fire on independent goroutines, so these must be safe for
	// concurrent use.
	noRepoWarn sync.Once
	credWarned sync.Map // feed name -> struct{}
}

// NewService wires the pipeline stages. repo and resolver may be nil.
func NewService(st store.Store, repo repository.Repository, norm *normalizer.Normalizer,
	regions *geo.Table, resolver *geo.Resolver, classifier Classifier, logger *slog.Logger) *Service {
	if classifier == nil {
		classifier = NoopClassifier{}
	}
	return &Service{
		store:      st,
		repo:       repo,
		norm:       norm,
		regions:    regions,
		resolver:   resolver,
		classifier: classifier,
		logger:     logger,
	}
}

// RunFeed executes one full pipeline firing for a blacklist-style feed:
// fetch, raw capture, normalize, then per-event enrich/persist/publish.
// A per-event failure is logged and counted but never aborts the batch.
func (s *Service) RunFeed(ctx context.Context, fetcher feeds.Fetcher) error {
	payload, err := s.fetch(ctx, fetcher)
	if err != nil {
		s.logFetchFailure(fetcher.Name(), err)
		return nil
	}

	s.captureRaw(ctx, payload)

	// Feeds report the country most of the time; the MMDB resolver fills
	// the gaps while the raw address is still available. Nothing after
	// normalization sees an unhashed address.
	if s.resolver.Enabled() {
		for i := range payload.Entries {
			if payload.Entries[i].CountryCode != "" {
				continue
			}
			if code, ok := s.resolver.ResolveCountry(payload.Entries[i].IPAddress); ok {
				payload.Entries[i].CountryCode = code
			}
		}
	}

	results := s.norm.NormalizeBatch(payload.Entries, payload.Feed)
	published := 0
	for _, res := range results {
		metrics.EventsNormalized.WithLabelValues(payload.Feed, res.Outcome.String()).Inc()
		switch res.Outcome {
		case normalizer.Failed:
			s.logger.Warn("entry rejected by normalizer", logging.Feed(payload.Feed),
				logging.Error(res.Err))
			continue
		case normalizer.Skipped:
			continue
		}

		ev := res.Event
		s.regions.Enrich(ev)
		s.classifier.Classify(ev)
		s.persist(ctx, ev)
		s.publish(ctx, ev)
		published++
	}

	s.logger.Info("feed firing complete", logging.Feed(payload.Feed),
		logging.Count(len(payload.Entries)), slog.Int("published", published))
	return nil
}

// RunSummary executes a fetch-only firing for feeds that deliver aggregate
// snapshots rather than per-event records. The payload is captured for
// audit and summarized in the log.
func (s *Service) RunSummary(ctx context.Context, fetcher feeds.Fetcher) error {
	payload, err := s.fetch(ctx, fetcher)
	if err != nil {
		s.logFetchFailure(fetcher.Name(), err)
		return nil
	}

	s.captureRaw(ctx, payload)

	var summary map[string]json.RawMessage
	keys := []string{}
	if err := json.Unmarshal(payload.Body, &summary); err == nil {
		for k := range summary {
			keys = append(keys, k)
		}
	}
	s.logger.Info("summary feed captured", logging.Feed(payload.Feed),
		"bytes", len(payload.Body), "sections", keys)
	return nil
}

// PurgeRaw deletes raw captures fetched before the retention cutoff.
func (s *Service) PurgeRaw(ctx context.Context, retention time.Duration) error {
	if s.repo == nil {
		return nil
	}
	removed, err := s.repo.PurgeRawCaptures(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return err
	}
	s.logger.Info("raw captures purged", "removed", removed,
		"retention", retention.String())
	return nil
}

// logFetchFailure ends a firing cleanly; the next trigger retries. A
// missing credential is a configuration state, not an incident: it is
// warned once per feed and the job degrades to a no-op.
func (s *Service) logFetchFailure(feed string, err error) {
	if errors.Is(err, feeds.ErrMissingCredential) {
		if _, warned := s.credWarned.LoadOrStore(feed, struct{}{}); !warned {
			s.logger.Warn("feed disabled, credential not configured", logging.Feed(feed))
		}
		return
	}
	s.logger.Error("feed fetch failed", logging.Feed(feed),
		slog.String("reason", feeds.ErrorLabel(err)), logging.Error(err))
}

func (s *Service) fetch(ctx context.Context, fetcher feeds.Fetcher) (*feeds.Payload, error) {
	started := time.Now()
	payload, err := fetcher.Fetch(ctx)
	metrics.FetchDuration.WithLabelValues(fetcher.Name()).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.FetchesTotal.WithLabelValues(fetcher.Name(), feeds.ErrorLabel(err)).Inc()
		return nil, err
	}
	metrics.FetchesTotal.WithLabelValues(fetcher.Name(), "ok").Inc()
	return payload, nil
}

// captureRaw stores the unmodified payload. The capture is audit, not
// gating: a persistence failure is logged and the pipeline continues.
func (s *Service) captureRaw(ctx context.Context, payload *feeds.Payload) {
	if s.repo == nil {
		s.noRepoWarn.Do(func() {
			s.logger.Warn("no database configured, durable persistence disabled")
		})
		return
	}

	rc := &models.RawCapture{
		ID:        uuid.New().String(),
		Feed:      payload.Feed,
		Endpoint:  payload.Endpoint,
		FetchedAt: payload.FetchedAt,
		Payload:   payload.Body,
	}
	if err := s.repo.SaveRawCapture(ctx, rc); err != nil {
		metrics.PersistErrors.Inc()
		s.logger.Error("raw capture failed", logging.Feed(payload.Feed), logging.Error(err))
	}
}

func (s *Service) persist(ctx context.Context, ev *models.AttackEvent) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveEvent(ctx, ev); err != nil {
		metrics.PersistErrors.Inc()
		s.logger.Error("event persistence failed", logging.EventID(ev.ID), logging.Error(err))
	}
	if err := s.repo.UpsertDailyAggregate(ctx, ev); err != nil {
		metrics.PersistErrors.Inc()
		s.logger.Error("aggregate update failed", logging.EventID(ev.ID), logging.Error(err))
	}
}

// publish pushes the event onto the live surface. Each step is
// fire-and-continue: the recent window, the channel and the counter are
// independent, and a failure in one must not starve the others.
func (s *Service) publish(ctx context.Context, ev *models.AttackEvent) {
	if err := s.store.PushRecent(ctx, ev); err != nil {
		metrics.StoreErrors.WithLabelValues("push_recent").Inc()
		s.logger.Error("recent window push failed", logging.EventID(ev.ID), logging.Error(err))
	}
	if err := s.store.Publish(ctx, ev); err != nil {
		metrics.StoreErrors.WithLabelValues("publish").Inc()
		s.logger.Error("channel publish failed", logging.EventID(ev.ID), logging.Error(err))
	} else {
		metrics.EventsPublished.Inc()
	}
	if _, err := s.store.IncrementToday(ctx, 1); err != nil {
		metrics.StoreErrors.WithLabelValues("increment").Inc()
		s.logger.Error("counter increment failed", logging.EventID(ev.ID), logging.Error(err))
	}
}
