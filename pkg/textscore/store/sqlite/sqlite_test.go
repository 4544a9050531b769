package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/textscore/pkg/textscore/features"
	"github.com/cognicore/textscore/pkg/textscore/internalerr"
	"github.com/cognicore/textscore/pkg/textscore/mapping"
	"github.com/cognicore/textscore/pkg/textscore/result"
	"github.com/cognicore/textscore/pkg/textscore/score"
	"github.com/cognicore/textscore/pkg/textscore/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func scoredRows(texts ...string) []result.Result {
	cfg := mapping.New()
	cfg.SetWeight("zeta", "love", 2.0)
	cfg.SetWeight("alpha", "song", 1.0)
	cfg.SetWeight("alpha", "beat", 0.5)
	cfg.AddCrossmap("zeta", "psych")
	cfg.AddCrossmap("alpha", "music")

	out := make([]result.Result, len(texts))
	for i, text := range texts {
		f := features.Extract(text)
		out[i] = result.New(i, text, f, score.Compute(f.Words, cfg))
	}
	return out
}

func TestSchemaCreationIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, initSchema(ctx, db), "iteration %d", i)
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count) // runs, results
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := store.Run{
		ID:        store.NewIDs().Next(created),
		Input:     "lyrics.csv",
		Mapping:   "mapping.yaml",
		Plugins:   []string{"htmltext"},
		CreatedAt: created,
	}
	require.NoError(t, st.CreateRun(ctx, run))

	in := scoredRows("love song", "beat beat love <3", "")
	require.NoError(t, st.AppendResults(ctx, run.ID, in))

	got, found, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, got.Rows)
	assert.Equal(t, run.Plugins, got.Plugins)
	assert.True(t, got.CreatedAt.Equal(created))

	out, err := st.Results(ctx, run.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	// category and hit order survive storage
	require.Len(t, out[1].Score.Details, 2)
	assert.Equal(t, "zeta", out[1].Score.Details[0].Name)
	assert.Equal(t, "alpha", out[1].Score.Details[1].Name)
}

func TestSQLiteAppendIsUpsert(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	run := store.Run{ID: store.NewIDs().Next(time.Now()), Input: "in.csv", CreatedAt: time.Now()}
	require.NoError(t, st.CreateRun(ctx, run))

	require.NoError(t, st.AppendResults(ctx, run.ID, scoredRows("first", "second")))
	require.NoError(t, st.AppendResults(ctx, run.ID, scoredRows("replaced")))

	out, err := st.Results(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "replaced", out[0].Text)
	assert.Equal(t, "second", out[1].Text)
}

func TestSQLiteUnknownRun(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	_, found, err := st.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, st.AppendResults(ctx, "nope", scoredRows("x")), internalerr.ErrNotFound)

	_, err = st.Results(ctx, "nope")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestSQLiteListRuns(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	ids := store.NewIDs()

	var want []string
	for i := 0; i < 3; i++ {
		r := store.Run{ID: ids.Next(time.Now()), Input: "in.csv", CreatedAt: time.Now()}
		require.NoError(t, st.CreateRun(ctx, r))
		want = append([]string{r.ID}, want...)
	}

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	var got []string
	for _, r := range runs {
		got = append(got, r.ID)
	}
	assert.Equal(t, want, got)

	runs, err = st.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
