// Package arbeitnow implements the free ArbeitNow job-board backend.
//
// The ArbeitNow API is unmetered and unauthenticated but has no server-side
// search, so term matching happens client-side against title, company, tags,
// and description.
package arbeitnow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/jobradar/internal/jobs"
)

// Name is the backend identity used in the registry and cache keys.
const Name = "arbeitnow"

const (
	defaultBaseURL = "https://www.arbeitnow.com/api/job-board-api"
	defaultTimeout = 15 * time.Second
)

// Config controls the ArbeitNow client.
type Config struct {
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

// Backend queries the ArbeitNow public job board.
type Backend struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ jobs.Backend = (*Backend)(nil)

// New builds an ArbeitNow backend.
func New(cfg Config, logger *zap.Logger) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name implements jobs.Backend.
func (b *Backend) Name() string { return Name }

// Credentials implements jobs.Backend. ArbeitNow needs none.
func (b *Backend) Credentials() []string { return nil }

type response struct {
	Data []result `json:"data"`
}

type result struct {
	Slug        string   `json:"slug"`
	CompanyName string   `json:"company_name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Remote      bool     `json:"remote"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	JobTypes    []string `json:"job_types"`
	Location    string   `json:"location"`
	CreatedAt   int64    `json:"created_at"`
}

// Fetch retrieves the current board page and filters it against the query.
func (b *Backend) Fetch(ctx context.Context, query jobs.Query, _ string) ([]jobs.Listing, error) {
	endpoint := b.cfg.BaseURL
	if query.Page > 1 {
		endpoint += "?page=" + strconv.Itoa(query.Page)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, jobs.Permanent(Name, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, jobs.Transient(Name, fmt.Errorf("http GET: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, jobs.Transient(Name, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, jobs.Transient(Name, fmt.Errorf("status %d", resp.StatusCode))
	default:
		return nil, jobs.Permanent(Name, fmt.Errorf("status %d", resp.StatusCode))
	}

	var apiResp response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, jobs.Permanent(Name, fmt.Errorf("decode response: %w", err))
	}

	listings := b.filter(apiResp.Data, query)
	b.logger.Debug("arbeitnow board fetched",
		zap.Int("board_size", len(apiResp.Data)),
		zap.Int("matched", len(listings)),
	)
	return listings, nil
}

func (b *Backend) filter(results []result, query jobs.Query) []jobs.Listing {
	terms := strings.Fields(strings.ToLower(query.Terms))
	var listings []jobs.Listing
	for _, r := range results {
		if query.RemoteOnly && !r.Remote {
			continue
		}
		if !matches(r, terms) {
			continue
		}
		l := jobs.Listing{
			SourceID:    r.Slug,
			Title:       r.Title,
			Company:     r.CompanyName,
			Location:    r.Location,
			URL:         r.URL,
			Tags:        append(append([]string(nil), r.Tags...), r.JobTypes...),
			Description: r.Description,
			Remote:      r.Remote,
		}
		if r.CreatedAt > 0 {
			t := time.Unix(r.CreatedAt, 0).UTC()
			l.PostedAt = &t
		}
		listings = append(listings, l)
		if query.MaxResults > 0 && len(listings) >= query.MaxResults {
			break
		}
	}
	return listings
}

// matches requires every query term to appear somewhere in the posting.
func matches(r result, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(r.Title + " " + r.CompanyName + " " +
		strings.Join(r.Tags, " ") + " " + r.Description)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
