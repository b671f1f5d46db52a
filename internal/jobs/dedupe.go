package jobs

import (
	"fmt"
)

// Deduper merges records from multiple backends into one set keyed by
// identity. On collision the record with more populated optional fields wins;
// ties keep the earlier record so merges are deterministic across runs.
type Deduper struct {
	hasher Hasher
	order  []string
	byKey  map[string]Record
}

// NewDeduper builds an empty Deduper.
func NewDeduper(hasher Hasher) *Deduper {
	return &Deduper{
		hasher: hasher,
		byKey:  make(map[string]Record),
	}
}

// Merge folds records into the set. Input order is significant: earlier
// records win ties, so callers must add backends in selection order.
func (d *Deduper) Merge(records []Record) error {
	for _, rec := range records {
		key, err := IdentityKey(d.hasher, rec)
		if err != nil {
			return fmt.Errorf("identity key: %w", err)
		}
		existing, ok := d.byKey[key]
		if !ok {
			d.byKey[key] = rec
			d.order = append(d.order, key)
			continue
		}
		if richness(rec) > richness(existing) {
			d.byKey[key] = rec
		}
	}
	return nil
}

// Records returns the deduplicated set in first-seen order.
func (d *Deduper) Records() []Record {
	out := make([]Record, 0, len(d.order))
	for _, key := range d.order {
		out = append(out, d.byKey[key])
	}
	return out
}

// Len reports the number of distinct records merged so far.
func (d *Deduper) Len() int {
	return len(d.byKey)
}

// richness counts populated optional fields; used to pick the fuller of two
// colliding records.
func richness(r Record) int {
	n := 0
	if r.Description != "" {
		n++
	}
	if r.Salary != "" {
		n++
	}
	if r.Location != "" {
		n++
	}
	if len(r.Tags) > 0 {
		n++
	}
	if r.DatePosted != nil {
		n++
	}
	return n
}
