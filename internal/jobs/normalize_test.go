package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hireloop/jobradar/internal/hash/sha256"
)

func TestCacheKeyStableAcrossWhitespaceAndCase(t *testing.T) {
	t.Parallel()

	hasher := sha256.New()
	a, err := CacheKey(hasher, Query{Terms: "Senior  Go Engineer", Location: " Berlin "}, "adzuna", "indeed")
	require.NoError(t, err)
	b, err := CacheKey(hasher, Query{Terms: "senior go engineer", Location: "berlin"}, "adzuna", "indeed")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestCacheKeyVariesByBackendAndPlatform(t *testing.T) {
	t.Parallel()

	hasher := sha256.New()
	q := Query{Terms: "go engineer"}

	base, err := CacheKey(hasher, q, "adzuna", "indeed")
	require.NoError(t, err)

	otherBackend, err := CacheKey(hasher, q, "jsearch", "indeed")
	require.NoError(t, err)
	require.NotEqual(t, base, otherBackend)

	otherPlatform, err := CacheKey(hasher, q, "adzuna", "monster")
	require.NoError(t, err)
	require.NotEqual(t, base, otherPlatform)
}

func TestNormalizeListingStampsDiscoveryDate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rec := NormalizeListing(Listing{
		SourceID: " abc123 ",
		Title:    " Backend Engineer ",
		Company:  "Acme",
		Location: "Remote (EU)",
		URL:      "https://example.com/j/abc123",
	}, "Adzuna", now)

	require.Equal(t, "abc123", rec.SourceID)
	require.Equal(t, "adzuna", rec.Source)
	require.Equal(t, "Backend Engineer", rec.Title)
	require.Equal(t, now, rec.DateFound)
	require.True(t, rec.Remote, "remote inferred from location text")
}

func TestIdentityKeyPrefersSourceID(t *testing.T) {
	t.Parallel()

	hasher := sha256.New()

	key, err := IdentityKey(hasher, Record{Source: "adzuna", SourceID: "a1"})
	require.NoError(t, err)
	require.Equal(t, "adzuna:a1", key)

	key, err = IdentityKey(hasher, Record{Source: "web3career", Title: "Dev", Company: "X", URL: "u"})
	require.NoError(t, err)
	require.Contains(t, key, "content:")
}
