// Package linkedin implements a headless-browser backend for LinkedIn job
// search. LinkedIn renders results with JavaScript and gates them behind a
// session, so a real browser drives the page and the rendered DOM is parsed
// offline.
package linkedin

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/hireloop/jobradar/internal/jobs"
)

// Name is the backend identity used in the registry and cache keys.
const Name = "linkedin"

// Credential names expected in the environment.
const (
	EnvEmail    = "LINKEDIN_EMAIL"
	EnvPassword = "LINKEDIN_PASSWORD"
)

const (
	defaultBaseURL    = "https://www.linkedin.com"
	defaultUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	defaultNavTimeout = 60 * time.Second
)

// Config controls the headless session.
type Config struct {
	// BaseURL overrides the site root, mainly for tests.
	BaseURL           string
	Email             string
	Password          string
	UserAgent         string
	NavigationTimeout time.Duration
}

// Backend drives a headless Chrome session against LinkedIn job search.
// A single browser context is shared so the login survives across fetches;
// the mutex serializes page navigation within it.
type Backend struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger

	mu         sync.Mutex
	session    context.Context
	sessCancel context.CancelFunc
	loggedIn   bool
}

var _ jobs.Backend = (*Backend)(nil)

// New creates a LinkedIn backend backed by chromedp.
func New(cfg Config, logger *zap.Logger) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Backend{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}
}

// Close tears down the browser session and allocator.
func (b *Backend) Close() {
	b.mu.Lock()
	if b.sessCancel != nil {
		b.sessCancel()
		b.session = nil
		b.sessCancel = nil
		b.loggedIn = false
	}
	b.mu.Unlock()
	b.allocCancel()
}

// Name implements jobs.Backend.
func (b *Backend) Name() string { return Name }

// Credentials implements jobs.Backend.
func (b *Backend) Credentials() []string { return []string{EnvEmail, EnvPassword} }

// Fetch logs in if needed, navigates to the search results, and parses the
// rendered card list.
func (b *Backend) Fetch(ctx context.Context, query jobs.Query, _ string) ([]jobs.Listing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	session, err := b.ensureSessionLocked()
	if err != nil {
		return nil, jobs.Transient(Name, err)
	}

	runCtx, cancel := context.WithTimeout(session, b.cfg.NavigationTimeout)
	defer cancel()
	go func() {
		// Propagate the caller's cancellation into the browser run.
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	if !b.loggedIn {
		if err := b.login(runCtx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, jobs.Transient(Name, fmt.Errorf("login: %w", err))
		}
		b.loggedIn = true
		b.logger.Info("linkedin session established")
	}

	html, err := b.renderSearch(runCtx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, jobs.Transient(Name, fmt.Errorf("render search: %w", err))
	}

	listings, err := ParseSearchHTML(html, b.cfg.BaseURL)
	if err != nil {
		return nil, jobs.Permanent(Name, fmt.Errorf("parse results: %w", err))
	}
	if query.RemoteOnly {
		listings = filterRemote(listings)
	}
	if query.MaxResults > 0 && len(listings) > query.MaxResults {
		listings = listings[:query.MaxResults]
	}
	b.logger.Debug("linkedin search rendered", zap.Int("results", len(listings)))
	return listings, nil
}

// ensureSessionLocked lazily creates the shared browser context. Caller holds mu.
func (b *Backend) ensureSessionLocked() (context.Context, error) {
	if b.session != nil && b.session.Err() == nil {
		return b.session, nil
	}
	if b.sessCancel != nil {
		b.sessCancel()
		b.loggedIn = false
	}
	session, cancel := chromedp.NewContext(b.allocator)
	b.session = session
	b.sessCancel = cancel
	return session, nil
}

func (b *Backend) login(ctx context.Context) error {
	actions := []chromedp.Action{
		b.networkSetupAction(),
		chromedp.Navigate(b.cfg.BaseURL + "/login"),
		chromedp.WaitVisible(`#username`, chromedp.ByID),
		chromedp.SendKeys(`#username`, b.cfg.Email, chromedp.ByID),
		chromedp.SendKeys(`#password`, b.cfg.Password, chromedp.ByID),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2 * time.Second),
	}
	return chromedp.Run(ctx, actions...)
}

func (b *Backend) renderSearch(ctx context.Context, query jobs.Query) (string, error) {
	var html string
	actions := []chromedp.Action{
		chromedp.Navigate(SearchURL(b.cfg.BaseURL, query)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		// Scroll to the bottom so lazy-loaded cards render.
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(1 * time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (b *Backend) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

// SearchURL builds the job-search URL for a query. Remote-only maps onto
// LinkedIn's workplace-type filter.
func SearchURL(baseURL string, query jobs.Query) string {
	params := url.Values{}
	params.Set("keywords", query.Terms)
	if query.Location != "" {
		params.Set("location", query.Location)
	}
	if query.RemoteOnly {
		params.Set("f_WT", "2")
	}
	if query.Page > 1 {
		params.Set("start", strconv.Itoa((query.Page-1)*25))
	}
	return baseURL + "/jobs/search/?" + params.Encode()
}

// ParseSearchHTML extracts job cards from a rendered search results page.
// A page with no recognizable results container is a contract violation.
func ParseSearchHTML(html, baseURL string) ([]jobs.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	container := doc.Find("ul.jobs-search__results-list, div.jobs-search-results-list")
	if container.Length() == 0 {
		return nil, fmt.Errorf("results container not found")
	}

	var listings []jobs.Listing
	container.Find("div.base-card, li.jobs-search-results__list-item").Each(func(_ int, card *goquery.Selection) {
		l := parseCard(card, baseURL)
		if l.Title == "" || l.URL == "" {
			return
		}
		listings = append(listings, l)
	})
	return listings, nil
}

func parseCard(card *goquery.Selection, baseURL string) jobs.Listing {
	href, _ := card.Find("a.base-card__full-link, a.job-card-list__title").Attr("href")
	location := strings.TrimSpace(card.Find(".job-search-card__location").Text())
	l := jobs.Listing{
		SourceID: strings.TrimSpace(card.AttrOr("data-entity-urn", "")),
		Title:    strings.TrimSpace(card.Find("h3.base-search-card__title").Text()),
		Company:  strings.TrimSpace(card.Find("h4.base-search-card__subtitle").Text()),
		Location: location,
		URL:      absoluteURL(baseURL, href),
		Remote:   strings.Contains(strings.ToLower(location), "remote"),
	}
	if urn := l.SourceID; urn != "" {
		// data-entity-urn looks like "urn:li:jobPosting:3791234567".
		if idx := strings.LastIndex(urn, ":"); idx >= 0 {
			l.SourceID = urn[idx+1:]
		}
	}
	if posted, ok := card.Find("time").Attr("datetime"); ok {
		if t, err := time.Parse("2006-01-02", posted); err == nil {
			l.PostedAt = &t
		}
	}
	return l
}

func absoluteURL(baseURL, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimSuffix(baseURL, "/") + href
}

func filterRemote(listings []jobs.Listing) []jobs.Listing {
	out := listings[:0]
	for _, l := range listings {
		if l.Remote {
			out = append(out, l)
		}
	}
	return out
}
