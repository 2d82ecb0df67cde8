package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temporal-communities/geolit/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "geolit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "books.tsv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	summary := &model.RunSummary{
		Records:    2,
		Located:    1,
		NoLocation: 1,
		ResolvedBy: map[string]int{"authority_primary_titles": 1},
	}
	require.NoError(t, s.CompleteRun(ctx, run.ID, summary))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 2, got.Summary.Records)
	assert.Equal(t, 1, got.Summary.ResolvedBy["authority_primary_titles"])
}

func TestSQLiteFailRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "books.tsv")
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "gazetteer quota exhausted"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "gazetteer quota exhausted", got.Summary.Error)
}

func TestSQLiteCompleteRunNotFound(t *testing.T) {
	s := newTestSQLite(t)

	err := s.CompleteRun(context.Background(), "nonexistent", &model.RunSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteResultsRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "books.tsv")
	require.NoError(t, err)

	code := "https://d-nb.info/standards/vocab/gnd/geographic-area-code#XA-DE"
	lat, lng := 51.5, 10.5
	note := "no GND area code"
	results := []model.RunResult{
		{
			Author: "Kafka, Franz", Title: "Der Prozess",
			AreaCode: &code, Latitude: &lat, Longitude: &lng,
			ResolvedBy: "authority_primary_titles",
		},
		{Author: "Unknown", Title: "Lost Work", Note: &note},
	}
	require.NoError(t, s.SaveResults(ctx, run.ID, results))

	got, err := s.ListResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].AreaCode)
	assert.Equal(t, code, *got[0].AreaCode)
	require.NotNil(t, got[0].Latitude)
	assert.Equal(t, lat, *got[0].Latitude)
	assert.Equal(t, "authority_primary_titles", got[0].ResolvedBy)

	assert.Nil(t, got[1].AreaCode)
	require.NotNil(t, got[1].Note)
	assert.Equal(t, note, *got[1].Note)
}

func TestSQLiteListRunsFilter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, "books.tsv")
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "other.tsv")
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, first.ID, &model.RunSummary{Records: 1}))

	complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, first.ID, complete[0].ID)

	byDataset, err := s.ListRuns(ctx, RunFilter{Dataset: "other.tsv"})
	require.NoError(t, err)
	require.Len(t, byDataset, 1)
	assert.Equal(t, "other.tsv", byDataset[0].Dataset)

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteSaveResultsEmpty(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.SaveResults(context.Background(), "any", nil))
}
