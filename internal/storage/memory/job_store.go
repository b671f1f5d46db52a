// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hireloop/jobradar/internal/jobs"
)

// JobStore keeps normalized job records in memory, unique on
// (source id, source). It is safe for concurrent use.
type JobStore struct {
	mu      sync.RWMutex
	records map[storeKey]jobs.Record
}

type storeKey struct {
	sourceID string
	source   string
}

var _ jobs.Store = (*JobStore)(nil)

// NewJobStore constructs an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{records: make(map[storeKey]jobs.Record)}
}

// Upsert inserts the record, or refreshes an existing one while keeping the
// original discovery date, matching the Postgres store's semantics. It
// reports whether a new record was created.
func (s *JobStore) Upsert(_ context.Context, record jobs.Record) (bool, error) {
	key := storeKey{sourceID: record.SourceID, source: record.Source}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, exists := s.records[key]; exists {
		record.DateFound = existing.DateFound
		s.records[key] = record
		return false, nil
	}
	s.records[key] = record
	return true, nil
}

// All returns the stored records ordered by (source, source id).
func (s *JobStore) All() []jobs.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]jobs.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

// Len reports the number of stored records.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
