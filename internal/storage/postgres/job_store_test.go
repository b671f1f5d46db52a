package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/jobradar/internal/jobs"
)

func sampleRecord() jobs.Record {
	posted := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	return jobs.Record{
		SourceID:    "4321",
		Source:      "adzuna",
		Title:       "Senior Go Engineer",
		Company:     "Acme Corp",
		Location:    "Remote, US",
		Salary:      "150000 - 190000",
		URL:         "https://example.com/4321",
		Tags:        []string{"IT Jobs"},
		DatePosted:  &posted,
		DateFound:   time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		Description: "Build distributed systems.",
		Remote:      true,
	}
}

func TestUpsertInsertsNewRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock, "jobs")
	require.NoError(t, err)

	rec := sampleRecord()
	mock.ExpectQuery("INSERT INTO jobs").
		WithArgs(
			rec.SourceID,
			rec.Source,
			rec.Title,
			rec.Company,
			rec.Location,
			rec.Salary,
			rec.URL,
			[]byte(`["IT Jobs"]`),
			rec.DatePosted,
			rec.DateFound,
			rec.Description,
			rec.Remote,
		).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))

	created, err := store.Upsert(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertExistingRowRefreshesFields(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock, "jobs")
	require.NoError(t, err)

	rec := sampleRecord()
	rec.Salary = "100k - 120k"
	// The statement must carry the conflict-update branch so re-sighted
	// postings pick up changed fields instead of going stale.
	mock.ExpectQuery(`ON CONFLICT \(job_source_id, source\) DO UPDATE SET`).
		WithArgs(
			rec.SourceID,
			rec.Source,
			rec.Title,
			rec.Company,
			rec.Location,
			rec.Salary,
			rec.URL,
			[]byte(`["IT Jobs"]`),
			rec.DatePosted,
			rec.DateFound,
			rec.Description,
			rec.Remote,
		).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(false))

	created, err := store.Upsert(context.Background(), rec)
	require.NoError(t, err)
	require.False(t, created, "updated rows report already-present")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRequiresIdentity(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock, "jobs")
	require.NoError(t, err)

	rec := sampleRecord()
	rec.SourceID = ""
	_, err = store.Upsert(context.Background(), rec)
	require.Error(t, err)
}

func TestNewJobStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewJobStoreWithPool(nil, "jobs")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewJobStoreWithPool(mock, "jobs; drop table jobs")
	require.Error(t, err)

	store, err := NewJobStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, "jobs", store.table)
}
