package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cachemem "github.com/hireloop/jobradar/internal/cache/memory"
	"github.com/hireloop/jobradar/internal/hash/sha256"
	"github.com/hireloop/jobradar/internal/jobs"
	"github.com/hireloop/jobradar/internal/orchestrator"
	"github.com/hireloop/jobradar/internal/registry"
)

type stubBackend struct {
	name     string
	listings []jobs.Listing
}

func (b *stubBackend) Name() string          { return b.name }
func (b *stubBackend) Credentials() []string { return nil }

func (b *stubBackend) Fetch(context.Context, jobs.Query, string) ([]jobs.Listing, error) {
	return b.listings, nil
}

type stubLedger struct {
	used, limit int
}

func (l *stubLedger) Remaining(string) (int, error) { return l.limit - l.used, nil }

func (l *stubLedger) TryReserve(string, int) (bool, bool, error) {
	if l.used >= l.limit {
		return false, false, nil
	}
	l.used++
	return true, false, nil
}

func (l *stubLedger) Status(backend string) (jobs.QuotaStatus, error) {
	return jobs.QuotaStatus{
		Backend: backend,
		Used:    l.used,
		Limit:   l.limit,
		Percent: float64(l.used) / float64(l.limit) * 100,
		Period:  "2026-08",
		Level:   "healthy",
	}, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg, err := registry.New(
		registry.Entry{
			Descriptor: jobs.Descriptor{
				Name:         "adzuna",
				Kind:         jobs.KindMeteredAPI,
				MonthlyLimit: 100,
				Platforms:    []string{"indeed", "monster"},
			},
			Backend: &stubBackend{name: "adzuna", listings: []jobs.Listing{
				{SourceID: "1", Title: "Go Engineer", Company: "Acme", URL: "https://example.com/1"},
			}},
		},
		registry.Entry{
			Descriptor: jobs.Descriptor{
				Name:      "arbeitnow",
				Kind:      jobs.KindFreeAPI,
				Platforms: []string{"arbeitnow"},
			},
			Backend: &stubBackend{name: "arbeitnow"},
		},
	)
	require.NoError(t, err)

	ledger := &stubLedger{limit: 100}
	orch, err := orchestrator.New(orchestrator.Config{
		Registry: reg,
		Ledger:   ledger,
		Cache:    cachemem.New(time.Hour, systemClock{}),
		Hasher:   sha256.New(),
		Clock:    systemClock{},
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)

	return NewServer(orch, reg, ledger, zap.NewNop())
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestSearchReturnsRecordsAndReport(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	body := strings.NewReader(`{"terms":"go engineer","platforms":["indeed"]}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/search", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	require.Equal(t, "adzuna", resp.Records[0].Source)
	require.NotEmpty(t, resp.Report.Attempts)
	require.Equal(t, jobs.PriorityLow, resp.Report.Priority)
}

func TestSearchValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing terms", `{}`, http.StatusBadRequest},
		{"unknown kind", `{"terms":"go","kinds":["carrier-pigeon"]}`, http.StatusBadRequest},
		{"uncovered platform", `{"terms":"go","platforms":["craigslist"]}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(
				http.MethodPost, "/v1/search", strings.NewReader(tc.body)))
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestSourcesListsCatalog(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sources", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sources []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"sources"`
		Platforms []string `json:"platforms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sources, 2)
	require.Equal(t, "adzuna", resp.Sources[0].Name)
	require.Contains(t, resp.Platforms, "indeed")
}

func TestQuotaReportsMeteredBackendsOnly(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/quota", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Quota []jobs.QuotaStatus `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Quota, 1)
	require.Equal(t, "adzuna", resp.Quota[0].Backend)
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
