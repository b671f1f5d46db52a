// Package jsearch implements the metered JSearch (RapidAPI) backend.
//
// JSearch aggregates postings from Google for Jobs, which indexes LinkedIn,
// Glassdoor, Indeed and others. A platform can be targeted by appending
// "via <platform>" to the search phrase.
package jsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/jobradar/internal/jobs"
)

// Name is the backend identity used in the registry, ledger, and cache keys.
const Name = "jsearch"

// EnvAPIKey is the credential name expected in the environment.
const EnvAPIKey = "RAPIDAPI_KEY"

const (
	defaultBaseURL = "https://jsearch.p.rapidapi.com"
	rapidAPIHost   = "jsearch.p.rapidapi.com"
	defaultTimeout = 20 * time.Second
)

// Config controls the JSearch client.
type Config struct {
	// BaseURL overrides the API root, mainly for tests.
	BaseURL string
	APIKey  string
	// Host is sent as X-RapidAPI-Host; defaults to the production host.
	Host    string
	Timeout time.Duration
}

// Backend queries the JSearch RapidAPI endpoint.
type Backend struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ jobs.Backend = (*Backend)(nil)

// New builds a JSearch backend.
func New(cfg Config, logger *zap.Logger) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Host == "" {
		cfg.Host = rapidAPIHost
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
func (b *Backend) Credentials() []string { return []string{EnvAPIKey} }

type response struct {
	Status string   `json:"status"`
	Data   []result `json:"data"`
}

type result struct {
	JobID          string   `json:"job_id"`
	Title          string   `json:"job_title"`
	Employer       string   `json:"employer_name"`
	City           string   `json:"job_city"`
	State          string   `json:"job_state"`
	Country        string   `json:"job_country"`
	ApplyLink      string   `json:"job_apply_link"`
	Description    string   `json:"job_description"`
	IsRemote       bool     `json:"job_is_remote"`
	PostedAt       string   `json:"job_posted_at_datetime_utc"`
	MinSalary      *float64 `json:"job_min_salary"`
	MaxSalary      *float64 `json:"job_max_salary"`
	EmploymentType string   `json:"job_employment_type"`
}

// Fetch runs one search against JSearch. When a concrete platform is named,
// the search phrase is narrowed to postings indexed via that platform.
func (b *Backend) Fetch(ctx context.Context, query jobs.Query, platform string) ([]jobs.Listing, error) {
	phrase := query.Terms
	if platform != jobs.PlatformAll && platform != "" {
		phrase = fmt.Sprintf("%s via %s", phrase, platform)
	}
	if query.Location != "" {
		phrase = fmt.Sprintf("%s in %s", phrase, query.Location)
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("query", phrase)
	params.Set("page", strconv.Itoa(page))
	params.Set("num_pages", "1")
	params.Set("date_posted", "week")
	if query.RemoteOnly {
		params.Set("remote_jobs_only", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, jobs.Permanent(Name, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("X-RapidAPI-Key", b.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", b.cfg.Host)

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
	if apiResp.Status != "OK" {
		return nil, jobs.Permanent(Name, fmt.Errorf("api status %q", apiResp.Status))
	}

	listings := convert(apiResp.Data, query)
	b.logger.Debug("jsearch page fetched",
		zap.String("platform", platform),
		zap.Int("page", page),
		zap.Int("results", len(listings)),
	)
	return listings, nil
}

func convert(results []result, query jobs.Query) []jobs.Listing {
	listings := make([]jobs.Listing, 0, len(results))
	for _, r := range results {
		if query.RemoteOnly && !r.IsRemote {
			continue
		}
		l := jobs.Listing{
			SourceID:    r.JobID,
			Title:       r.Title,
			Company:     r.Employer,
			Location:    joinLocation(r.City, r.State, r.Country),
			Salary:      formatSalary(r.MinSalary, r.MaxSalary),
			URL:         r.ApplyLink,
			Description: r.Description,
			Remote:      r.IsRemote,
		}
		if r.EmploymentType != "" {
			l.Tags = []string{r.EmploymentType}
		}
		if t, err := time.Parse(time.RFC3339, r.PostedAt); err == nil {
			l.PostedAt = &t
		}
		listings = append(listings, l)
	}
	return listings
}

func joinLocation(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}

func formatSalary(min, max *float64) string {
	switch {
	case min != nil && max != nil && *min != *max:
		return fmt.Sprintf("%.0f - %.0f", *min, *max)
	case max != nil:
		return fmt.Sprintf("%.0f", *max)
	case min != nil:
		return fmt.Sprintf("%.0f", *min)
	default:
		return ""
	}
}
