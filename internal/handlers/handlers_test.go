package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strikemap-systems/strikemap/internal/broadcast"
	"github.com/strikemap-systems/strikemap/internal/geo"
	"github.com/strikemap-systems/strikemap/internal/logging"
	"github.com/strikemap-systems/strikemap/internal/middleware"
	"github.com/strikemap-systems/strikemap/internal/models"
	"github.com/strikemap-systems/strikemap/internal/repository"
	"github.com/strikemap-systems/strikemap/internal/store"
)

type fakeStore struct {
	mu        sync.Mutex
	today     int64
	yesterday int64
	hasYday   bool
	recent    []models.AttackEvent
	todayErr  error
	pingErr   error
}

func (s *fakeStore) IncrementToday(_ context.Context, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.today += n
	return s.today, nil
}

func (s *fakeStore) GetToday(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.todayErr != nil {
		return 0, s.todayErr
	}
	return s.today, nil
}

func (s *fakeStore) GetYesterday(context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.yesterday, s.hasYday, nil
}

func (s *fakeStore) RotateDay(context.Context) error { return nil }

func (s *fakeStore) PushRecent(_ context.Context, ev *models.AttackEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append([]models.AttackEvent{*ev}, s.recent...)
	return nil
}

func (s *fakeStore) GetRecent(_ context.Context, limit int) ([]models.AttackEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.recent) {
		limit = len(s.recent)
	}
	return append([]models.AttackEvent{}, s.recent[:limit]...), nil
}

func (s *fakeStore) Publish(context.Context, *models.AttackEvent) error { return nil }

func (s *fakeStore) Subscribe(context.Context) (store.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }
func (s *fakeStore) Close() error               { return nil }

type fakeRepo struct {
	top     []*repository.CountryCount
	dist    []*repository.TypeCount
	country *models.DailyAggregate
	pingErr error
}

func (r *fakeRepo) SaveEvent(context.Context, *models.AttackEvent) error          { return nil }
func (r *fakeRepo) SaveRawCapture(context.Context, *models.RawCapture) error      { return nil }
func (r *fakeRepo) UpsertDailyAggregate(context.Context, *models.AttackEvent) error { return nil }

func (r *fakeRepo) PurgeRawCaptures(context.Context, time.Time) (int64, error) { return 0, nil }

func (r *fakeRepo) TopCountries(context.Context, time.Time, int) ([]*repository.CountryCount, error) {
	return r.top, nil
}

func (r *fakeRepo) TypeDistribution(context.Context, time.Time) ([]*repository.TypeCount, error) {
	return r.dist, nil
}

func (r *fakeRepo) CountryStats(_ context.Context, code string, _ time.Time) (*models.DailyAggregate, error) {
	if r.country == nil || r.country.CountryCode != code {
		return nil, repository.ErrCountryNotFound
	}
	return r.country, nil
}

func (r *fakeRepo) Ping(context.Context) error { return r.pingErr }
func (r *fakeRepo) Close() error               { return nil }

func testHandler(t *testing.T, st store.Store, repo repository.Repository) *Handler {
	t.Helper()
	regions, err := geo.LoadTable()
	require.NoError(t, err)
	return NewHandler(st, repo, regions, broadcast.NewRegistry(),
		FeedStatus{AbuseIPDB: true},
		&logging.Logger{Logger: slog.New(slog.DiscardHandler)})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheckHealthy(t *testing.T) {
	h := testHandler(t, &fakeStore{}, &fakeRepo{})

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["redis"])
	assert.Equal(t, "ok", body["postgres"])
}

func TestHealthCheckWithoutDatabase(t *testing.T) {
	h := testHandler(t, &fakeStore{}, nil)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", decodeBody(t, rec)["postgres"])
}

func TestHealthCheckDegradedOnRedisFailure(t *testing.T) {
	h := testHandler(t, &fakeStore{pingErr: errors.New("refused")}, nil)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decodeBody(t, rec)["status"])
}

func TestAttacksToday(t *testing.T) {
	st := &fakeStore{today: 42, yesterday: 17, hasYday: true}
	repo := &fakeRepo{dist: []*repository.TypeCount{
		{AttackType: models.TypeSYNFlood, Count: 30},
		{AttackType: models.TypeVolumetric, Count: 12},
	}}
	h := testHandler(t, st, repo)

	rec := httptest.NewRecorder()
	h.AttacksToday(rec, httptest.NewRequest(http.MethodGet, "/api/attacks/today", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(42), body["today"])
	assert.Equal(t, float64(17), body["yesterday"])
	assert.Len(t, body["by_type"], 2)
}

func TestAttacksTodayMissingYesterday(t *testing.T) {
	h := testHandler(t, &fakeStore{today: 5}, nil)

	rec := httptest.NewRecorder()
	h.AttacksToday(rec, httptest.NewRequest(http.MethodGet, "/api/attacks/today", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(5), body["today"])
	assert.Nil(t, body["yesterday"])
	assert.NotContains(t, body, "by_type")
}

func TestAttacksRecent(t *testing.T) {
	st := &fakeStore{recent: []models.AttackEvent{
		{ID: "b"}, {ID: "a"},
	}}
	h := testHandler(t, st, nil)

	rec := httptest.NewRecorder()
	h.AttacksRecent(rec, httptest.NewRequest(http.MethodGet, "/api/attacks/recent", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])
}

func TestAttacksRecentRespectsLimit(t *testing.T) {
	st := &fakeStore{recent: []models.AttackEvent{{ID: "c"}, {ID: "b"}, {ID: "a"}}}
	h := testHandler(t, st, nil)

	rec := httptest.NewRecorder()
	h.AttacksRecent(rec, httptest.NewRequest(http.MethodGet, "/api/attacks/recent?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"])
}

func TestAttacksRecentRejectsBadLimit(t *testing.T) {
	h := testHandler(t, &fakeStore{}, nil)

	for _, raw := range []string{"0", "-1", "abc"} {
		rec := httptest.NewRecorder()
		h.AttacksRecent(rec, httptest.NewRequest(http.MethodGet, "/api/attacks/recent?limit="+raw, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", raw)
	}
}

func TestAttacksRecentEmptyIsArray(t *testing.T) {
	h := testHandler(t, &fakeStore{}, nil)

	rec := httptest.NewRecorder()
	h.AttacksRecent(rec, httptest.NewRequest(http.MethodGet, "/api/attacks/recent", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"attacks":[]`)
}

func TestTopCountriesIncludesNames(t *testing.T) {
	repo := &fakeRepo{top: []*repository.CountryCount{
		{CountryCode: "US", IncomingCount: 10, OutgoingCount: 4},
		{CountryCode: "XX", IncomingCount: 2},
	}}
	h := testHandler(t, &fakeStore{}, repo)

	rec := httptest.NewRecorder()
	h.TopCountries(rec, httptest.NewRequest(http.MethodGet, "/api/stats/top-countries", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Countries []struct {
			CountryCode string `json:"country_code"`
			CountryName string `json:"country_name"`
		} `json:"countries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Countries, 2)
	assert.NotEmpty(t, body.Countries[0].CountryName)
	// Unknown codes pass through without a name.
	assert.Empty(t, body.Countries[1].CountryName)
}

func TestStatsUnavailableWithoutDatabase(t *testing.T) {
	h := testHandler(t, &fakeStore{}, nil)

	rec := httptest.NewRecorder()
	h.TopCountries(rec, httptest.NewRequest(http.MethodGet, "/api/stats/top-countries", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.AttackTypes(rec, httptest.NewRequest(http.MethodGet, "/api/stats/attack-types", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCountryDetail(t *testing.T) {
	repo := &fakeRepo{country: &models.DailyAggregate{
		CountryCode:   "DE",
		IncomingCount: 7,
		PrimaryType:   models.TypeHTTPFlood,
	}}
	h := testHandler(t, &fakeStore{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/country/de", nil)
	req.SetPathValue("code", "de")
	rec := httptest.NewRecorder()
	h.CountryDetail(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Germany", body["country_name"])
}

func TestCountryDetailNotFound(t *testing.T) {
	h := testHandler(t, &fakeStore{}, &fakeRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/country/US", nil)
	req.SetPathValue("code", "US")
	rec := httptest.NewRecorder()
	h.CountryDetail(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCountryDetailRejectsBadCode(t *testing.T) {
	h := testHandler(t, &fakeStore{}, &fakeRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/country/USA", nil)
	req.SetPathValue("code", "USA")
	rec := httptest.NewRecorder()
	h.CountryDetail(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	regions, err := geo.LoadTable()
	require.NoError(t, err)
	h := NewHandler(&fakeStore{todayErr: errors.New("connection reset")}, nil,
		regions, broadcast.NewRegistry(), FeedStatus{},
		&logging.Logger{Logger: slog.New(slog.NewTextHandler(&buf, nil))})

	req := httptest.NewRequest(http.MethodGet, "/api/attacks/today", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-7"))
	rec := httptest.NewRecorder()
	h.AttacksToday(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, buf.String(), "request_id=req-7")
}
