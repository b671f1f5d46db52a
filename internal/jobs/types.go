// Package jobs defines core types shared across the aggregation subsystems.
package jobs

import (
	"encoding/json"
	"time"
)

// Priority is the tier assigned to a query by the classifier. Scarce quota is
// spent on High queries first.
type Priority string

// Priority tiers, highest first.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// BackendKind distinguishes how a source is consumed and billed.
type BackendKind string

// Backend kinds.
const (
	KindMeteredAPI BackendKind = "metered-api"
	KindFreeAPI    BackendKind = "free-api"
	KindScraper    BackendKind = "scraper"
)

// PlatformAll requests every covering backend rather than a single platform chain.
const PlatformAll = "all"

// Query captures one job search request. It is immutable once issued.
type Query struct {
	Terms      string   `json:"terms"`
	Location   string   `json:"location,omitempty"`
	Platforms  []string `json:"platforms,omitempty"`
	RemoteOnly bool     `json:"remote_only"`
	MaxResults int      `json:"max_results,omitempty"`
	Page       int      `json:"page,omitempty"`
}

// Descriptor is the registry's static annotation for one backend.
type Descriptor struct {
	Name         string      `json:"name"`
	Kind         BackendKind `json:"kind"`
	MonthlyLimit int         `json:"monthly_limit,omitempty"`
	Platforms    []string    `json:"platforms"`
	// Fallback marks a free backend that joins every chain regardless of
	// platform. A fallback alone does not make a platform covered.
	Fallback bool `json:"fallback,omitempty"`
}

// Metered reports whether calls against this backend consume ledger quota.
func (d Descriptor) Metered() bool {
	return d.Kind == KindMeteredAPI
}

// Covers reports whether the backend can answer for the given platform.
func (d Descriptor) Covers(platform string) bool {
	if platform == PlatformAll || d.Fallback {
		return true
	}
	for _, p := range d.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// Listing is the raw shape a backend hands back before normalization.
// Backends fill what they know and leave the rest zero.
type Listing struct {
	SourceID    string     `json:"source_id,omitempty"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location,omitempty"`
	Salary      string     `json:"salary,omitempty"`
	URL         string     `json:"url"`
	Tags        []string   `json:"tags,omitempty"`
	Description string     `json:"description,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	Remote      bool       `json:"remote"`
}

// Record is the canonical normalized job record handed to storage.
type Record struct {
	SourceID    string     `json:"job_source_id,omitempty"`
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location,omitempty"`
	Salary      string     `json:"salary,omitempty"`
	URL         string     `json:"url"`
	Tags        []string   `json:"tags,omitempty"`
	DatePosted  *time.Time `json:"date_posted,omitempty"`
	DateFound   time.Time  `json:"date_found"`
	Description string     `json:"description,omitempty"`
	Remote      bool       `json:"is_remote"`
}

// Outcome enumerates what happened to one candidate backend during a fetch.
type Outcome string

// Candidate outcomes recorded in the selection report.
const (
	OutcomeSuccess          Outcome = "success"
	OutcomeServedFromCache  Outcome = "served-from-cache"
	OutcomeEmpty            Outcome = "empty"
	OutcomeSkippedQuota     Outcome = "skipped-quota-exceeded"
	OutcomeSkippedCreds     Outcome = "skipped-missing-credentials"
	OutcomeSkippedPlatform  Outcome = "skipped-not-covering-platform"
	OutcomeFailedTransient  Outcome = "failed-transient"
	OutcomeFailedPermanent  Outcome = "failed-permanent"
	OutcomeAbortedCancelled Outcome = "aborted-cancelled"
)

// DurationMillis is a duration that marshals as integer milliseconds, so the
// _ms JSON fields carry the unit their names advertise.
type DurationMillis time.Duration

// MarshalJSON renders the duration as whole milliseconds.
func (d DurationMillis) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

// UnmarshalJSON parses whole milliseconds.
func (d *DurationMillis) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*d = DurationMillis(time.Duration(ms) * time.Millisecond)
	return nil
}

// Attempt is one (backend, outcome) pair in the selection report.
type Attempt struct {
	Backend  string         `json:"backend"`
	Platform string         `json:"platform"`
	Outcome  Outcome        `json:"outcome"`
	Reason   string         `json:"reason,omitempty"`
	Records  int            `json:"records,omitempty"`
	Duration DurationMillis `json:"duration_ms,omitempty"`
}

// Report is the per-request audit trail of backend selection.
type Report struct {
	ID        string         `json:"id"`
	Query     Query          `json:"query"`
	Priority  Priority       `json:"priority"`
	Attempts  []Attempt      `json:"attempts"`
	Warnings  []string       `json:"warnings,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Elapsed   DurationMillis `json:"elapsed_ms"`
}

// Add appends one attempt to the report.
func (r *Report) Add(a Attempt) {
	r.Attempts = append(r.Attempts, a)
}

// Warn records a non-fatal advisory, such as a quota threshold crossing.
func (r *Report) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// QuotaStatus is a read-only snapshot of one metered backend's ledger entry.
type QuotaStatus struct {
	Backend string  `json:"backend"`
	Used    int     `json:"used"`
	Limit   int     `json:"limit"`
	Percent float64 `json:"percent"`
	Period  string  `json:"period"`
	Level   string  `json:"level"`
}
