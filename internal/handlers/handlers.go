// Package handlers implements the REST and WebSocket surface.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/strikemap-systems/strikemap/internal/broadcast"
	"github.com/strikemap-systems/strikemap/internal/geo"
	"github.com/strikemap-systems/strikemap/internal/httputil"
	"github.com/strikemap-systems/strikemap/internal/logging"
	"github.com/strikemap-systems/strikemap/internal/models"
	"github.com/strikemap-systems/strikemap/internal/repository"
	"github.com/strikemap-systems/strikemap/internal/store"
)

const defaultRecentLimit = 50

// FeedStatus reports which upstream feeds have a credential configured.
type FeedStatus struct {
	AbuseIPDB  bool `json:"abuseipdb"`
	Cloudflare bool `json:"cloudflare_radar"`
	Demo       bool `json:"demo"`
}

type Handler struct {
	store    store.Store
	repo     repository.Repository
	regions  *geo.Table
	registry *broadcast.Registry
	feeds    FeedStatus
	logger   *logging.Logger
}

// NewHandler wires the read paths. repo may be nil when no database is
// configured; the statistics endpoints then report unavailability.
func NewHandler(st store.Store, repo repository.Repository, regions *geo.Table,
	registry *broadcast.Registry, feeds FeedStatus, logger *logging.Logger) *Handler {
	return &Handler{
		store:    st,
		repo:     repo,
		regions:  regions,
		registry: registry,
		feeds:    feeds,
		logger:   logger,
	}
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	components := map[string]any{"feeds": h.feeds}

	if err := h.store.Ping(r.Context()); err != nil {
		components["redis"] = "unreachable"
		status = http.StatusServiceUnavailable
	} else {
		components["redis"] = "ok"
	}

	if h.repo == nil {
		components["postgres"] = "disabled"
	} else if err := h.repo.Ping(r.Context()); err != nil {
		components["postgres"] = "unreachable"
		status = http.StatusServiceUnavailable
	} else {
		components["postgres"] = "ok"
	}

	if status == http.StatusOK {
		components["status"] = "healthy"
	} else {
		components["status"] = "degraded"
	}
	httputil.WriteJSON(w, status, components)
}

// AttacksToday handles GET /api/attacks/today
func (h *Handler) AttacksToday(w http.ResponseWriter, r *http.Request) {
	today, err := h.store.GetToday(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).Error("counter read failed", "error", err.Error())
		httputil.WriteError(w, http.StatusServiceUnavailable, "counter unavailable")
		return
	}

	resp := map[string]any{"today": today, "clients": h.registry.Count()}

	yesterday, ok, err := h.store.GetYesterday(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).Error("counter read failed", "error", err.Error())
	}
	if ok {
		resp["yesterday"] = yesterday
	} else {
		resp["yesterday"] = nil
	}

	if h.repo != nil {
		if dist, err := h.repo.TypeDistribution(r.Context(), time.Now().UTC()); err == nil {
			resp["by_type"] = dist
		} else {
			h.logger.WithContext(r.Context()).Error("type distribution read failed", "error", err.Error())
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// AttacksRecent handles GET /api/attacks/recent
func (h *Handler) AttacksRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > store.MaxRecent {
		limit = store.MaxRecent
	}

	events, err := h.store.GetRecent(r.Context(), limit)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("recent window read failed", "error", err.Error())
		httputil.WriteError(w, http.StatusServiceUnavailable, "recent events unavailable")
		return
	}
	if events == nil {
		events = []models.AttackEvent{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"attacks": events,
		"count":   len(events),
	})
}

// TopCountries handles GET /api/stats/top-countries
func (h *Handler) TopCountries(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "statistics unavailable")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	counts, err := h.repo.TopCountries(r.Context(), time.Now().UTC(), limit)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("top countries read failed", "error", err.Error())
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}

	type rankedCountry struct {
		*repository.CountryCount
		CountryName string `json:"country_name,omitempty"`
	}
	ranked := make([]rankedCountry, 0, len(counts))
	for _, c := range counts {
		rc := rankedCountry{CountryCount: c}
		if name, ok := h.regions.Name(c.CountryCode); ok {
			rc.CountryName = name
		}
		ranked = append(ranked, rc)
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"countries": ranked})
}

// AttackTypes handles GET /api/stats/attack-types
func (h *Handler) AttackTypes(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "statistics unavailable")
		return
	}

	dist, err := h.repo.TypeDistribution(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.WithContext(r.Context()).Error("type distribution read failed", "error", err.Error())
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"types": dist})
}

// CountryDetail handles GET /api/country/{code}
func (h *Handler) CountryDetail(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "statistics unavailable")
		return
	}

	code := strings.ToUpper(r.PathValue("code"))
	if len(code) != 2 {
		httputil.WriteError(w, http.StatusBadRequest, "country code must be two letters")
		return
	}

	agg, err := h.repo.CountryStats(r.Context(), code, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrCountryNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "no statistics for country")
			return
		}
		h.logger.WithContext(r.Context()).Error("country stats read failed", "country", code, "error", err.Error())
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}

	resp := map[string]any{"stats": agg}
	if name, ok := h.regions.Name(code); ok {
		resp["country_name"] = name
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
