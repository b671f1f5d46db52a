package jobs

import (
	"fmt"
	"strings"
	"time"
)

// NormalizeQuery produces the canonical form used for cache keys: terms are
// lowercased, tokenized and re-joined, location lowercased and trimmed. Two
// queries that differ only in whitespace or case share a cache entry.
func NormalizeQuery(q Query) Query {
	normalized := q
	normalized.Terms = strings.Join(strings.Fields(strings.ToLower(q.Terms)), " ")
	normalized.Location = strings.TrimSpace(strings.ToLower(q.Location))
	normalized.Platforms = nil
	return normalized
}

// CacheKey derives the composite cache key for (query, backend, platform).
func CacheKey(hasher Hasher, q Query, backend, platform string) (string, error) {
	n := NormalizeQuery(q)
	raw := fmt.Sprintf("%s|%s|%s|%s|%t|%d|%d",
		backend, platform, n.Terms, n.Location, n.RemoteOnly, n.MaxResults, n.Page)
	key, err := hasher.Hash([]byte(raw))
	if err != nil {
		return "", fmt.Errorf("hash cache key: %w", err)
	}
	return key, nil
}

// NormalizeListing converts a raw backend listing into the canonical record
// shape. The discovery date is stamped here, at normalization time.
func NormalizeListing(l Listing, source string, now time.Time) Record {
	remote := l.Remote
	if !remote && strings.Contains(strings.ToLower(l.Location), "remote") {
		remote = true
	}
	return Record{
		SourceID:    strings.TrimSpace(l.SourceID),
		Source:      strings.ToLower(source),
		Title:       strings.TrimSpace(l.Title),
		Company:     strings.TrimSpace(l.Company),
		Location:    strings.TrimSpace(l.Location),
		Salary:      strings.TrimSpace(l.Salary),
		URL:         strings.TrimSpace(l.URL),
		Tags:        l.Tags,
		DatePosted:  l.PostedAt,
		DateFound:   now.UTC(),
		Description: l.Description,
		Remote:      remote,
	}
}

// IdentityKey returns the dedupe key for a record: (source id, source) when
// both are present, else a content hash of title, company and URL.
func IdentityKey(hasher Hasher, r Record) (string, error) {
	if r.SourceID != "" && r.Source != "" {
		return r.Source + ":" + r.SourceID, nil
	}
	sum, err := hasher.Hash([]byte(strings.ToLower(r.Title) + "|" + strings.ToLower(r.Company) + "|" + r.URL))
	if err != nil {
		return "", fmt.Errorf("hash identity key: %w", err)
	}
	return "content:" + sum, nil
}
