package jobs

import (
	"context"
	"time"
)

// Backend is a single job-data source behind the orchestrator.
type Backend interface {
	// Name returns the backend identity used for ledger and cache keys.
	Name() string
	// Fetch runs the query and returns raw listings. Errors must be
	// classified with Transient or Permanent so the orchestrator can
	// decide whether to retry.
	Fetch(ctx context.Context, query Query, platform string) ([]Listing, error)
	// Credentials returns the named secrets the backend needs. An empty
	// set means the backend is always eligible.
	Credentials() []string
}

// Ledger tracks per-backend monthly usage. TryReserve is the only mutating
// entry point: it atomically checks and increments, so usage can never
// transiently exceed the limit.
type Ledger interface {
	Remaining(backend string) (int, error)
	// TryReserve reserves n calls. The second return value is true the
	// first time the period crosses the warning threshold.
	TryReserve(backend string, n int) (ok bool, warn bool, err error)
	Status(backend string) (QuotaStatus, error)
}

// Cache memoizes raw backend payloads for a fixed TTL. Expired entries are
// treated as absent.
type Cache interface {
	Get(ctx context.Context, key string) ([]Listing, bool, error)
	Put(ctx context.Context, key string, listings []Listing) error
}

// Store is the storage collaborator consuming normalized records.
type Store interface {
	// Upsert inserts the record, keyed by (source id, source), or
	// refreshes an existing row's fields. It returns true when a new
	// row was created.
	Upsert(ctx context.Context, record Record) (bool, error)
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// Hasher computes digests for cache keys and dedupe identity.
type Hasher interface {
	Hash(data []byte) (string, error)
}
