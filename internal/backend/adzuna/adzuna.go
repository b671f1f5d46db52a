// Package adzuna implements the metered Adzuna Jobs API backend.
package adzuna

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/jobradar/internal/jobs"
)

// Name is the backend identity used in the registry, ledger, and cache keys.
const Name = "adzuna"

// Credential names expected in the environment.
const (
	EnvAppID  = "ADZUNA_APP_ID"
	EnvAppKey = "ADZUNA_APP_KEY"
)

const (
	defaultBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	defaultCountry  = "us"
	defaultPageSize = 50
	defaultTimeout  = 15 * time.Second
)

// Config controls the Adzuna client.
type Config struct {
	// BaseURL overrides the API root, mainly for tests.
	BaseURL string
	// Country selects the Adzuna country index ("us", "gb", "de", ...).
	Country string
	AppID   string
	AppKey  string
	Timeout time.Duration
}

// Backend queries the Adzuna aggregated job index. Adzuna ingests postings
// from several job boards, so one call covers multiple platforms.
type Backend struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ jobs.Backend = (*Backend)(nil)

// New builds an Adzuna backend with a shared HTTP client.
func New(cfg Config, logger *zap.Logger) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Country == "" {
		cfg.Country = defaultCountry
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

// Credentials implements jobs.Backend.
func (b *Backend) Credentials() []string { return []string{EnvAppID, EnvAppKey} }

// response mirrors the top-level Adzuna JSON response.
type response struct {
	Results []result `json:"results"`
	Count   int      `json:"count"`
}

// result mirrors a single Adzuna job posting.
type result struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Company     company  `json:"company"`
	Location    location `json:"location"`
	Category    category `json:"category"`
	SalaryMin   float64  `json:"salary_min"`
	SalaryMax   float64  `json:"salary_max"`
	RedirectURL string   `json:"redirect_url"`
	Created     string   `json:"created"`
}

type company struct {
	DisplayName string `json:"display_name"`
}

type location struct {
	DisplayName string `json:"display_name"`
}

type category struct {
	Label string `json:"label"`
}

// Fetch runs one search page against the Adzuna index. Errors are classified
// so the caller knows whether a retry can help.
func (b *Backend) Fetch(ctx context.Context, query jobs.Query, platform string) ([]jobs.Listing, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	endpoint := fmt.Sprintf("%s/%s/search/%d", b.cfg.BaseURL, b.cfg.Country, page)

	params := url.Values{}
	params.Set("app_id", b.cfg.AppID)
	params.Set("app_key", b.cfg.AppKey)
	params.Set("results_per_page", strconv.Itoa(b.pageSize(query)))
	params.Set("what", query.Terms)
	params.Set("sort_by", "date")
	params.Set("content-type", "application/json")
	if query.Location != "" {
		params.Set("where", query.Location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
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
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var apiResp response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, jobs.Permanent(Name, fmt.Errorf("decode response: %w", err))
	}

	b.logger.Debug("adzuna page fetched",
		zap.String("platform", platform),
		zap.Int("page", page),
		zap.Int("results", len(apiResp.Results)),
	)
	return convert(apiResp.Results, query), nil
}

func (b *Backend) pageSize(query jobs.Query) int {
	if query.MaxResults > 0 && query.MaxResults < defaultPageSize {
		return query.MaxResults
	}
	return defaultPageSize
}

// classifyStatus maps HTTP status codes onto retryable and terminal failures.
// 429 and 5xx are worth retrying; any other non-200 means the request itself
// is wrong and a retry would only burn quota.
func classifyStatus(code int, body []byte) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return jobs.Transient(Name, fmt.Errorf("status %d: %s", code, truncate(body)))
	default:
		return jobs.Permanent(Name, fmt.Errorf("status %d: %s", code, truncate(body)))
	}
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

func convert(results []result, query jobs.Query) []jobs.Listing {
	listings := make([]jobs.Listing, 0, len(results))
	for _, r := range results {
		remote := isRemote(r.Location.DisplayName, r.Title)
		if query.RemoteOnly && !remote {
			continue
		}
		l := jobs.Listing{
			SourceID:    r.ID,
			Title:       r.Title,
			Company:     r.Company.DisplayName,
			Location:    r.Location.DisplayName,
			Salary:      formatSalary(r.SalaryMin, r.SalaryMax),
			URL:         r.RedirectURL,
			Description: r.Description,
			Remote:      remote,
		}
		if r.Category.Label != "" {
			l.Tags = []string{r.Category.Label}
		}
		if t, err := time.Parse(time.RFC3339, r.Created); err == nil {
			l.PostedAt = &t
		}
		listings = append(listings, l)
	}
	return listings
}

func formatSalary(min, max float64) string {
	switch {
	case min > 0 && max > 0 && min != max:
		return fmt.Sprintf("%.0f - %.0f", min, max)
	case max > 0:
		return fmt.Sprintf("%.0f", max)
	case min > 0:
		return fmt.Sprintf("%.0f", min)
	default:
		return ""
	}
}

func isRemote(fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), "remote") {
			return true
		}
	}
	return false
}
