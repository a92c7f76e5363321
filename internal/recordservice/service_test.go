package recordservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/codex/internal/apperr"
	"github.com/starford/codex/internal/collection"
	"github.com/starford/codex/internal/index"
	"github.com/starford/codex/internal/testutil"
)

type staticDecls string

func (d staticDecls) Contents() string { return string(d) }

func newService(t *testing.T) *Service {
	t.Helper()
	_, store := testutil.TestProject(t, map[string]string{
		"posts/a.md": testutil.PostA,
		"posts/b.md": testutil.PostB,
	})
	host := testutil.TestHost(t, store, collection.Options{}, testutil.PostsConfig())
	db := testutil.TestDB(t)
	c, _ := host.Collection("posts")
	records, err := c.List(context.Background())
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, db.Upsert(r))
	}
	return NewService(host, db, staticDecls("declare module \"#posts\" {}"))
}

func TestCollections(t *testing.T) {
	svc := newService(t)
	cols, err := svc.Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "posts", cols[0].Name)
	assert.Equal(t, "#posts", cols[0].Module)
	assert.Equal(t, 2, cols[0].Records)
	assert.Equal(t, &SortInfo{Field: "date", Order: "descending"}, cols[0].Sort)
	assert.Equal(t, "id", cols[0].Fields[0].Name)

	_, err = svc.Collection(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListAndGet(t *testing.T) {
	svc := newService(t)
	records, err := svc.List(context.Background(), "posts")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].ID)
	assert.Equal(t, "a", records[1].ID)

	rec, err := svc.Get(context.Background(), "posts", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.ID)

	_, err = svc.Get(context.Background(), "posts", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Get(context.Background(), "pages", "a")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.List(context.Background(), "pages")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSearchAndDeclarations(t *testing.T) {
	svc := newService(t)
	results, err := svc.Search(context.Background(), index.Query{Text: "Second", Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, index.SearchResult{Collection: "posts", ID: "b", Title: "Second post", Snippet: results[0].Snippet}, results[0])

	scoped, err := svc.Search(context.Background(), index.Query{Text: "Second", Collection: "posts"})
	require.NoError(t, err)
	assert.Len(t, scoped, 1)
	_, err = svc.Search(context.Background(), index.Query{Text: "Second", Collection: "pages"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Contains(t, svc.Declarations(), "#posts")

	code, err := svc.Module(context.Background(), "posts")
	require.NoError(t, err)
	assert.Contains(t, code, "export async function list()")
}

func TestNilDependencies(t *testing.T) {
	_, store := testutil.TestProject(t, nil)
	host := testutil.TestHost(t, store, collection.Options{}, testutil.PostsConfig())
	svc := NewService(host, nil, nil)

	results, err := svc.Search(context.Background(), index.Query{Text: "x", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, svc.Declarations())
}
