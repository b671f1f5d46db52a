// Package web3career implements a scraper backend for the web3.career job
// board using a Colly collector.
package web3career

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hireloop/jobradar/internal/jobs"
)

// Name is the backend identity used in the registry and cache keys.
const Name = "web3career"

const (
	defaultBaseURL   = "https://web3.career"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	defaultTimeout   = 20 * time.Second
	// One request every two seconds keeps us well under the board's
	// tolerance for automated traffic.
	defaultRequestInterval = 2 * time.Second
)

// Config controls the collector.
type Config struct {
	// BaseURL overrides the board root, mainly for tests.
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// RequestInterval spaces successive page visits against the host.
	RequestInterval time.Duration
}

// Backend scrapes the web3.career listings table.
type Backend struct {
	cfg           Config
	limiter       *rate.Limiter
	baseCollector *colly.Collector
	logger        *zap.Logger
}

var _ jobs.Backend = (*Backend)(nil)

// New builds a web3.career scraper.
func New(cfg Config, logger *zap.Logger) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestInterval == 0 {
		cfg.RequestInterval = defaultRequestInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())

	return &Backend{
		cfg:           cfg,
		limiter:       rate.NewLimiter(rate.Every(cfg.RequestInterval), 1),
		baseCollector: c,
		logger:        logger,
	}
}

// Name implements jobs.Backend.
func (b *Backend) Name() string { return Name }

// Credentials implements jobs.Backend. The board is public.
func (b *Backend) Credentials() []string { return nil }

// Fetch scrapes one listings page matching the query.
func (b *Backend) Fetch(ctx context.Context, query jobs.Query, _ string) ([]jobs.Listing, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var (
		listings  []jobs.Listing
		scrapeErr error
	)
	collector := b.buildCollector(query, &listings, &scrapeErr)

	if err := b.runCollector(ctx, collector, b.pageURL(query), &scrapeErr); err != nil {
		return nil, err
	}
	if query.MaxResults > 0 && len(listings) > query.MaxResults {
		listings = listings[:query.MaxResults]
	}
	b.logger.Debug("web3.career page scraped", zap.Int("results", len(listings)))
	return listings, nil
}

func (b *Backend) pageURL(query jobs.Query) string {
	path := "/" + strings.ReplaceAll(strings.TrimSpace(strings.ToLower(query.Terms)), " ", "-") + "-jobs"
	if query.RemoteOnly {
		path += "/remote"
	}
	url := b.cfg.BaseURL + path
	if query.Page > 1 {
		url += "?page=" + strconv.Itoa(query.Page)
	}
	return url
}

func (b *Backend) buildCollector(query jobs.Query, listings *[]jobs.Listing, scrapeErr *error) *colly.Collector {
	collector := b.baseCollector.Clone()
	collector.UserAgent = b.cfg.UserAgent
	collector.IgnoreRobotsTxt = false
	collector.SetRequestTimeout(b.cfg.Timeout)

	collector.OnHTML("table tbody tr.table_row", func(e *colly.HTMLElement) {
		l := b.parseRow(e)
		if l.Title == "" || l.URL == "" {
			return
		}
		if query.RemoteOnly && !l.Remote {
			return
		}
		*listings = append(*listings, l)
	})

	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError || status == 0 {
			*scrapeErr = jobs.Transient(Name, fmt.Errorf("status %d: %w", status, err))
			return
		}
		*scrapeErr = jobs.Permanent(Name, fmt.Errorf("status %d: %w", status, err))
	})

	return collector
}

func (b *Backend) parseRow(e *colly.HTMLElement) jobs.Listing {
	location := strings.TrimSpace(e.ChildText("td.job-location-mobile"))
	l := jobs.Listing{
		SourceID: strings.TrimSpace(e.Attr("data-jobid")),
		Title:    strings.TrimSpace(e.ChildText("h2")),
		Company:  strings.TrimSpace(e.ChildText("h3")),
		Location: location,
		Salary:   strings.TrimSpace(e.ChildText("td.job-salary-mobile")),
		URL:      e.Request.AbsoluteURL(e.ChildAttr("td.job-title-mobile a", "href")),
		Remote:   strings.Contains(strings.ToLower(location), "remote"),
	}
	e.ForEach("span.my-badge a", func(_ int, tag *colly.HTMLElement) {
		if text := strings.TrimSpace(tag.Text); text != "" {
			l.Tags = append(l.Tags, text)
		}
	})
	if posted := strings.TrimSpace(e.ChildAttr("time", "datetime")); posted != "" {
		if t, err := time.Parse(time.RFC3339, posted); err == nil {
			l.PostedAt = &t
		}
	}
	return l
}

func (b *Backend) runCollector(ctx context.Context, collector *colly.Collector, url string, scrapeErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		// OnError has already classified HTTP-level failures.
		if *scrapeErr != nil {
			return *scrapeErr
		}
		if err != nil {
			return jobs.Transient(Name, fmt.Errorf("visit failed: %w", err))
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
