package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

func loadTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(context.Background(), "../catalog/testdata/search", catalog.Options{})
	require.NoError(t, err)
	return cat
}

func TestFlattenCounts(t *testing.T) {
	cat := loadTestCatalog(t)
	entries, matches := flatten(cat)
	assert.Len(t, entries, 60)
	assert.Len(t, matches, 76)

	first := entries[0]
	assert.Equal(t, "all_4.js", first.File)
	assert.Equal(t, "all", first.Section)
	assert.Equal(t, 4, first.FileIndex)
	assert.Equal(t, 0, first.Position)

	for _, m := range matches {
		assert.True(t, m.Internal)
	}
}

func TestAssembleRoundTrip(t *testing.T) {
	cat := loadTestCatalog(t)
	entries, matches := flatten(cat)

	rebuilt := assemble(cat.SectionSet(), entries, matches)
	require.Len(t, rebuilt.AllFiles(), len(cat.AllFiles()))
	for _, f := range cat.AllFiles() {
		got, ok := rebuilt.File(f.Name)
		require.True(t, ok, f.Name)
		if diff := cmp.Diff(f.Table.Entries(), got.Table.Entries()); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", f.Name, diff)
		}
	}
	assert.Equal(t, cat.Sections(), rebuilt.Sections())
}

func TestAssembleEmpty(t *testing.T) {
	rebuilt := assemble(loadTestCatalog(t).SectionSet(), nil, nil)
	assert.Empty(t, rebuilt.AllFiles())
}

func TestCatalogStorePostgres(t *testing.T) {
	dsn := os.Getenv("DS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DS_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.New(ctx, config.PostgresConfig{URL: dsn, MaxOpenConns: 4, MaxIdleConns: 2})
	require.NoError(t, err)
	defer db.Close()

	s := NewCatalogStore(db)
	require.NoError(t, s.EnsureSchema(ctx))

	cat := loadTestCatalog(t)
	require.NoError(t, s.SaveDocset(ctx, "mimicpp-test", "v1", cat))
	// Saving again replaces rather than duplicates.
	require.NoError(t, s.SaveDocset(ctx, "mimicpp-test", "v1", cat))

	got, version, err := s.LoadDocset(ctx, "mimicpp-test", "")
	require.NoError(t, err)
	assert.Equal(t, "v1", version)
	assert.Equal(t, cat.Stats().Entries, got.Stats().Entries)
	assert.Equal(t, cat.Stats().Matches, got.Stats().Matches)

	list, err := s.ListDocsets(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	_, _, err = s.LoadDocset(ctx, "mimicpp-test", "missing")
	assert.Error(t, err)
}
