package web3career

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hireloop/jobradar/internal/jobs"
)

const sampleHTML = `<!DOCTYPE html>
<html><body>
<table><tbody>
<tr class="table_row" data-jobid="1001">
  <td class="job-title-mobile"><a href="/golang-engineer-acme-1001"><h2>Golang Engineer</h2></a><h3>Acme DAO</h3></td>
  <td class="job-location-mobile">Remote</td>
  <td class="job-salary-mobile">$120k - $180k</td>
  <td><span class="my-badge"><a>golang</a></span><span class="my-badge"><a>defi</a></span></td>
  <td><time datetime="2026-08-28T00:00:00Z">3d</time></td>
</tr>
<tr class="table_row" data-jobid="1002">
  <td class="job-title-mobile"><a href="/solidity-dev-hooli-1002"><h2>Solidity Developer</h2></a><h3>Hooli Labs</h3></td>
  <td class="job-location-mobile">New York</td>
  <td class="job-salary-mobile">$140k</td>
  <td></td>
  <td><time datetime="2026-08-27T00:00:00Z">4d</time></td>
</tr>
<tr class="table_row" data-jobid="1003">
  <td class="job-title-mobile"><a href="/broken-row"></a></td>
  <td class="job-location-mobile"></td>
</tr>
</tbody></table>
</body></html>`

func newTestBackend(t *testing.T, handler http.Handler) *Backend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:         srv.URL,
		RequestInterval: time.Millisecond,
	}, nil)
}

func serveHTML(html string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	})
}

func TestFetchParsesListingRows(t *testing.T) {
	t.Parallel()

	backend := newTestBackend(t, serveHTML(sampleHTML))

	listings, err := backend.Fetch(context.Background(), jobs.Query{Terms: "golang"}, jobs.PlatformAll)
	require.NoError(t, err)
	require.Len(t, listings, 2, "rows missing a title are dropped")

	first := listings[0]
	require.Equal(t, "1001", first.SourceID)
	require.Equal(t, "Golang Engineer", first.Title)
	require.Equal(t, "Acme DAO", first.Company)
	require.Equal(t, "$120k - $180k", first.Salary)
	require.Equal(t, []string{"golang", "defi"}, first.Tags)
	require.True(t, first.Remote)
	require.Contains(t, first.URL, "/golang-engineer-acme-1001")
	require.NotNil(t, first.PostedAt)

	second := listings[1]
	require.Equal(t, "Hooli Labs", second.Company)
	require.False(t, second.Remote)
}

func TestFetchRemoteOnlyDropsOnsiteRows(t *testing.T) {
	t.Parallel()

	backend := newTestBackend(t, serveHTML(sampleHTML))

	listings, err := backend.Fetch(context.Background(), jobs.Query{
		Terms:      "golang",
		RemoteOnly: true,
	}, jobs.PlatformAll)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	require.Equal(t, "1001", listings[0].SourceID)
}

func TestFetchMaxResultsCapsOutput(t *testing.T) {
	t.Parallel()

	backend := newTestBackend(t, serveHTML(sampleHTML))

	listings, err := backend.Fetch(context.Background(), jobs.Query{
		Terms:      "golang",
		MaxResults: 1,
	}, jobs.PlatformAll)
	require.NoError(t, err)
	require.Len(t, listings, 1)
}

func TestFetchBuildsSlugURL(t *testing.T) {
	t.Parallel()

	var gotPath string
	backend := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			gotPath = r.URL.Path + "?" + r.URL.RawQuery
		}
		_, _ = w.Write([]byte(sampleHTML))
	}))

	_, err := backend.Fetch(context.Background(), jobs.Query{
		Terms:      "Golang Engineer",
		RemoteOnly: true,
		Page:       2,
	}, jobs.PlatformAll)
	require.NoError(t, err)
	require.Equal(t, "/golang-engineer-jobs/remote?page=2", gotPath)
}

func TestFetchServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	backend := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := backend.Fetch(context.Background(), jobs.Query{Terms: "golang"}, jobs.PlatformAll)
	require.Error(t, err)
	require.True(t, jobs.Retryable(err))
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	t.Parallel()

	backend := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := backend.Fetch(context.Background(), jobs.Query{Terms: "golang"}, jobs.PlatformAll)
	require.Error(t, err)
	require.True(t, jobs.IsPermanent(err))
}

func TestFetchHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := newTestBackend(t, serveHTML(sampleHTML))

	_, err := backend.Fetch(ctx, jobs.Query{Terms: "golang"}, jobs.PlatformAll)
	require.ErrorIs(t, err, context.Canceled)
}
