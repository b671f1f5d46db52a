// Package orchestrator walks the fallback chain of job backends for each
// query, respecting quota reservations, the response cache, and caller
// cancellation, and merges results into one deduplicated set.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hireloop/jobradar/internal/jobs"
	"github.com/hireloop/jobradar/internal/metrics"
	"github.com/hireloop/jobradar/internal/registry"
)

// Options restrict a single fetch without changing the registry.
type Options struct {
	// Kinds limits the chain to the given backend kinds (nil means all).
	Kinds []jobs.BackendKind
}

func (o Options) allows(kind jobs.BackendKind) bool {
	if len(o.Kinds) == 0 {
		return true
	}
	for _, k := range o.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Registry *registry.Registry
	Ledger   jobs.Ledger
	Cache    jobs.Cache
	// Store is optional; when set, merged records are upserted after dedupe.
	Store  jobs.Store
	Hasher jobs.Hasher
	Clock  jobs.Clock
	Retry  *jobs.ExponentialRetryPolicy
	// Secrets holds the named credentials present in the environment.
	Secrets map[string]string
	Logger  *zap.Logger
	// NewID mints report identifiers; defaults to UUIDs.
	NewID func() (string, error)
}

// Orchestrator executes fallback chains. Safe for concurrent use; the ledger
// and cache provide their own synchronization.
type Orchestrator struct {
	cfg Config
}

// New validates the configuration and constructs an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.Hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.Retry == nil {
		cfg.Retry = jobs.NewExponentialRetryPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NewID == nil {
		cfg.NewID = defaultNewID
	}
	return &Orchestrator{cfg: cfg}, nil
}

// chainResult carries one platform chain's output back to the merger.
type chainResult struct {
	platform string
	attempts []jobs.Attempt
	warnings []string
	// perBackend preserves selection order so dedupe tie-breaks stay
	// deterministic across runs.
	perBackend [][]jobs.Record
}

// Fetch classifies the query, resolves candidates, walks the chain(s), and
// returns the merged deduplicated records plus the selection report. Soft
// conditions never surface as errors; only configuration-fatal ones do.
func (o *Orchestrator) Fetch(ctx context.Context, query jobs.Query, opts Options) ([]jobs.Record, jobs.Report, error) {
	start := o.cfg.Clock.Now()
	report := jobs.Report{
		Query:     query,
		Priority:  jobs.Classify(query),
		StartedAt: start,
	}
	if id, err := o.cfg.NewID(); err == nil {
		report.ID = id
	}

	platforms := query.Platforms
	if len(platforms) == 0 {
		platforms = []string{jobs.PlatformAll}
	}
	for _, platform := range platforms {
		if !o.cfg.Registry.Covering(platform) {
			return nil, report, fmt.Errorf("platform %q: %w", platform, jobs.ErrNoCoveringBackend)
		}
	}

	results := make([]*chainResult, len(platforms))
	if len(platforms) == 1 {
		results[0] = o.runChain(ctx, query, platforms[0], report.Priority, opts)
	} else {
		// Independent platform chains run concurrently; the ledger and
		// cache are the only shared state and are safe for this.
		g, gctx := errgroup.WithContext(ctx)
		for i, platform := range platforms {
			g.Go(func() error {
				results[i] = o.runChain(gctx, query, platform, report.Priority, opts)
				return nil
			})
		}
		// Chains absorb their own failures; the group never errors.
		_ = g.Wait()
	}

	deduper := jobs.NewDeduper(o.cfg.Hasher)
	for _, res := range results {
		report.Attempts = append(report.Attempts, res.attempts...)
		for _, w := range res.warnings {
			report.Warn(w)
		}
		for _, recs := range res.perBackend {
			if err := deduper.Merge(recs); err != nil {
				return nil, report, fmt.Errorf("merge records: %w", err)
			}
		}
	}

	records := deduper.Records()
	report.Elapsed = jobs.DurationMillis(o.cfg.Clock.Now().Sub(start))

	o.persist(ctx, records)
	return records, report, nil
}

func defaultNewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate report id: %w", err)
	}
	return id.String(), nil
}

// persist hands merged records to the storage collaborator, best effort.
func (o *Orchestrator) persist(ctx context.Context, records []jobs.Record) {
	if o.cfg.Store == nil || len(records) == 0 || ctx.Err() != nil {
		return
	}
	inserted := 0
	for _, rec := range records {
		if rec.SourceID == "" {
			// The store is keyed on (job_source_id, source); records
			// identified only by content reuse their dedupe key so the
			// same posting maps to the same row on every run.
			key, kerr := jobs.IdentityKey(o.cfg.Hasher, rec)
			if kerr != nil {
				o.cfg.Logger.Warn("derive record identity failed",
					zap.String("source", rec.Source),
					zap.Error(kerr),
				)
				continue
			}
			rec.SourceID = key
		}
		created, err := o.cfg.Store.Upsert(ctx, rec)
		if err != nil {
			o.cfg.Logger.Warn("upsert record failed",
				zap.String("source", rec.Source),
				zap.String("source_id", rec.SourceID),
				zap.Error(err),
			)
			continue
		}
		if created {
			inserted++
		}
	}
	o.cfg.Logger.Info("records persisted",
		zap.Int("merged", len(records)),
		zap.Int("inserted", inserted),
	)
}

// runChain walks the registry-ordered candidates for one platform. For a
// named platform the chain stops at the first backend yielding records; for
// PlatformAll every covering backend is consulted and results are merged.
func (o *Orchestrator) runChain(
	ctx context.Context,
	query jobs.Query,
	platform string,
	priority jobs.Priority,
	opts Options,
) *chainResult {
	res := &chainResult{platform: platform}
	queryAll := platform == jobs.PlatformAll

	for _, cand := range o.cfg.Registry.Candidates(platform) {
		if ctx.Err() != nil {
			res.add(jobs.Attempt{
				Backend:  cand.Descriptor.Name,
				Platform: platform,
				Outcome:  jobs.OutcomeAbortedCancelled,
				Reason:   ctx.Err().Error(),
			})
			break
		}

		attempt, records, warning := o.tryCandidate(ctx, cand, query, platform, opts)
		res.add(attempt)
		if warning != "" {
			res.warnings = append(res.warnings, warning)
		}
		if len(records) > 0 {
			res.perBackend = append(res.perBackend, records)
			if !queryAll {
				break
			}
		}
	}
	return res
}

func (res *chainResult) add(a jobs.Attempt) {
	res.attempts = append(res.attempts, a)
	metrics.ObserveAttempt(a.Backend, string(a.Outcome))
}

// tryCandidate runs the per-candidate algorithm: coverage check, credential
// check, cache lookup, quota reservation, fetch with bounded retry,
// normalization. The returned warning, when non-empty, is the once-per-period
// quota threshold advisory.
func (o *Orchestrator) tryCandidate(
	ctx context.Context,
	cand registry.Entry,
	query jobs.Query,
	platform string,
	opts Options,
) (jobs.Attempt, []jobs.Record, string) {
	name := cand.Descriptor.Name
	attempt := jobs.Attempt{Backend: name, Platform: platform}

	if !opts.allows(cand.Descriptor.Kind) {
		attempt.Outcome = jobs.OutcomeSkippedPlatform
		attempt.Reason = fmt.Sprintf("kind %s excluded by request", cand.Descriptor.Kind)
		return attempt, nil, ""
	}
	if !cand.Descriptor.Covers(platform) {
		attempt.Outcome = jobs.OutcomeSkippedPlatform
		attempt.Reason = fmt.Sprintf("does not cover %s", platform)
		return attempt, nil, ""
	}
	if missing := o.missingCredentials(cand.Backend); len(missing) > 0 {
		attempt.Outcome = jobs.OutcomeSkippedCreds
		attempt.Reason = fmt.Sprintf("missing %v", missing)
		return attempt, nil, ""
	}

	key, err := jobs.CacheKey(o.cfg.Hasher, query, name, platform)
	if err != nil {
		attempt.Outcome = jobs.OutcomeFailedPermanent
		attempt.Reason = err.Error()
		return attempt, nil, ""
	}
	// A hit within TTL never touches the ledger.
	if listings, hit, cerr := o.cfg.Cache.Get(ctx, key); cerr == nil && hit {
		metrics.ObserveCacheLookup(name, true)
		attempt.Outcome = jobs.OutcomeServedFromCache
		records := o.normalize(listings, name)
		attempt.Records = len(records)
		return attempt, records, ""
	}
	metrics.ObserveCacheLookup(name, false)

	warning := ""
	if cand.Descriptor.Metered() {
		ok, warned, lerr := o.cfg.Ledger.TryReserve(name, 1)
		if lerr != nil {
			attempt.Outcome = jobs.OutcomeFailedPermanent
			attempt.Reason = lerr.Error()
			return attempt, nil, ""
		}
		if !ok {
			o.cfg.Logger.Info("quota exhausted, falling through",
				zap.String("backend", name),
				zap.String("platform", platform),
			)
			attempt.Outcome = jobs.OutcomeSkippedQuota
			attempt.Reason = "monthly quota exhausted"
			return attempt, nil, ""
		}
		if warned {
			warning = o.quotaWarning(name)
		}
		o.publishQuotaGauge(name)
	}

	listings, dur, ferr := o.fetchWithRetry(ctx, cand.Backend, query, platform)
	attempt.Duration = jobs.DurationMillis(dur)
	if ferr != nil {
		switch {
		case errors.Is(ferr, context.Canceled) || errors.Is(ferr, context.DeadlineExceeded):
			attempt.Outcome = jobs.OutcomeAbortedCancelled
		case jobs.IsPermanent(ferr):
			attempt.Outcome = jobs.OutcomeFailedPermanent
			o.cfg.Logger.Error("backend contract violated",
				zap.String("backend", name),
				zap.Error(ferr),
			)
		default:
			attempt.Outcome = jobs.OutcomeFailedTransient
		}
		attempt.Reason = ferr.Error()
		return attempt, nil, warning
	}

	// Failures are never cached; only a successful payload is memoized.
	if perr := o.cfg.Cache.Put(ctx, key, listings); perr != nil {
		o.cfg.Logger.Warn("cache write failed", zap.String("backend", name), zap.Error(perr))
	}

	records := o.normalize(listings, name)
	metrics.ObserveRecords(name, len(records))
	if len(records) == 0 {
		attempt.Outcome = jobs.OutcomeEmpty
		return attempt, nil, warning
	}
	attempt.Outcome = jobs.OutcomeSuccess
	attempt.Records = len(records)
	return attempt, records, warning
}

// fetchWithRetry invokes the backend, retrying transient failures with
// backoff. The caller's deadline is honored at every boundary: a canceled
// context abandons in-flight retries immediately.
func (o *Orchestrator) fetchWithRetry(
	ctx context.Context,
	backend jobs.Backend,
	query jobs.Query,
	platform string,
) ([]jobs.Listing, time.Duration, error) {
	started := o.cfg.Clock.Now()
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, o.cfg.Clock.Now().Sub(started), err
		}
		listings, err := backend.Fetch(ctx, query, platform)
		dur := o.cfg.Clock.Now().Sub(started)
		metrics.ObserveFetchDuration(backend.Name(), dur)
		if err == nil {
			return listings, dur, nil
		}
		lastErr = err
		if !o.cfg.Retry.ShouldRetry(err, attempt) {
			return nil, dur, lastErr
		}
		o.cfg.Logger.Warn("transient backend failure, backing off",
			zap.String("backend", backend.Name()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, o.cfg.Clock.Now().Sub(started), ctx.Err()
		case <-time.After(o.cfg.Retry.Backoff(attempt)):
		}
	}
}

func (o *Orchestrator) normalize(listings []jobs.Listing, source string) []jobs.Record {
	now := o.cfg.Clock.Now()
	records := make([]jobs.Record, 0, len(listings))
	for _, l := range listings {
		records = append(records, jobs.NormalizeListing(l, source, now))
	}
	return records
}

func (o *Orchestrator) missingCredentials(backend jobs.Backend) []string {
	var missing []string
	for _, name := range backend.Credentials() {
		if o.cfg.Secrets[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// quotaWarning renders the once-per-period advisory surfaced when a
// reservation crosses the warning threshold.
func (o *Orchestrator) quotaWarning(backend string) string {
	status, err := o.cfg.Ledger.Status(backend)
	if err != nil {
		return fmt.Sprintf("%s quota warning threshold crossed", backend)
	}
	return fmt.Sprintf("%s quota at %.1f%% (%d/%d calls, period %s)",
		backend, status.Percent, status.Used, status.Limit, status.Period)
}

func (o *Orchestrator) publishQuotaGauge(backend string) {
	if status, err := o.cfg.Ledger.Status(backend); err == nil {
		metrics.SetQuotaUtilization(backend, status.Percent)
	}
}
