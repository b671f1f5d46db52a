// Package registry holds the static, ordered mapping from platforms to
// candidate backends. Order encodes business priority and is fixed at
// startup from configuration, never derived at runtime.
package registry

import (
	"fmt"
	"sort"

	"github.com/hireloop/jobradar/internal/jobs"
)

// Entry pairs a backend implementation with its static descriptor.
type Entry struct {
	Descriptor jobs.Descriptor
	Backend    jobs.Backend
}

// Registry is an immutable ordered set of entries.
type Registry struct {
	entries []Entry
}

// New validates and freezes the candidate list. The supplied order is the
// fallback-chain order: generous free-quota APIs first, scrapers last.
func New(entries ...Entry) (*Registry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("registry needs at least one backend")
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		name := e.Descriptor.Name
		if name == "" {
			return nil, fmt.Errorf("registry entry missing a name")
		}
		if e.Backend == nil {
			return nil, fmt.Errorf("registry entry %q missing a backend", name)
		}
		if e.Backend.Name() != name {
			return nil, fmt.Errorf("registry entry %q wraps backend %q", name, e.Backend.Name())
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate registry entry %q", name)
		}
		if len(e.Descriptor.Platforms) == 0 {
			return nil, fmt.Errorf("registry entry %q covers no platforms", name)
		}
		if e.Descriptor.Metered() && e.Descriptor.MonthlyLimit <= 0 {
			return nil, fmt.Errorf("metered registry entry %q needs a monthly limit", name)
		}
		seen[name] = struct{}{}
	}
	return &Registry{entries: append([]Entry(nil), entries...)}, nil
}

// Candidates returns the ordered chain for a platform. For PlatformAll the
// union of per-platform chains is returned with multi-platform backends
// deduplicated to a single attempt. For a named platform every entry is
// returned in priority order; coverage is rechecked by the orchestrator so
// non-covering skips show up in the selection report.
func (r *Registry) Candidates(platform string) []Entry {
	return append([]Entry(nil), r.entries...)
}

// Covering reports whether at least one backend genuinely answers for the
// platform. Fallback entries do not count: a platform nothing names is a
// configuration error even when a free fallback would accept it.
func (r *Registry) Covering(platform string) bool {
	for _, e := range r.entries {
		if !e.Descriptor.Fallback && e.Descriptor.Covers(platform) {
			return true
		}
	}
	return false
}

// Lookup finds an entry by backend name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Descriptor.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Platforms returns the sorted union of covered platform identifiers.
func (r *Registry) Platforms() []string {
	set := make(map[string]struct{})
	for _, e := range r.entries {
		for _, p := range e.Descriptor.Platforms {
			set[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MeteredLimits collects per-backend monthly limits for ledger construction.
func (r *Registry) MeteredLimits() map[string]int {
	limits := make(map[string]int)
	for _, e := range r.entries {
		if e.Descriptor.Metered() {
			limits[e.Descriptor.Name] = e.Descriptor.MonthlyLimit
		}
	}
	return limits
}

// Entries exposes the full chain in priority order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}
