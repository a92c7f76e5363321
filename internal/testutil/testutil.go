// Package testutil provides shared test helpers for setting up projects,
// collections and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/codex/internal/collection"
	"github.com/starford/codex/internal/index"
	"github.com/starford/codex/internal/plugin"
	"github.com/starford/codex/internal/schema"
	"github.com/starford/codex/internal/storage"
)

// PostA and PostB are valid documents of the posts collection.
const (
	PostA = "---\ntitle: First post\ndate: 2024-01-01\nauthor: josh\ntags: [go]\n---\n# First\n\nHello from **a**.\n"
	PostB = "---\ntitle: Second post\ndate: 2024-06-01\nauthor: jonathan\n---\nHello from b.\n"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "codex-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestProject creates a temporary project directory holding files (slash
// separated paths relative to the root) and a storage provider rooted there.
func TestProject(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		WriteFile(t, dir, name, body)
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteFile writes body to name under dir, creating parent directories.
func WriteFile(t *testing.T, dir, name, body string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

// PostsConfig is a posts collection under base "posts" sorted by date,
// newest first.
func PostsConfig() collection.Config {
	return collection.Config{
		Name: "posts",
		Base: "posts",
		Schema: schema.MustObject(
			schema.Field("title", schema.String().NonEmpty()),
			schema.Field("date", schema.String().Format(schema.FormatDate)),
			schema.Field("tags", schema.Optional(schema.Array(schema.String()))),
			schema.Field("author", schema.Enum("josh", "jonathan")),
		),
		Sort: &collection.Sort{Field: "date", Order: collection.Descending},
	}
}

// TestHost builds a plugin host over cfgs backed by store.
func TestHost(t *testing.T, store collection.Store, opts collection.Options, cfgs ...collection.Config) *plugin.Host {
	t.Helper()
	cols := make([]*collection.Collection, 0, len(cfgs))
	for _, cfg := range cfgs {
		c, err := collection.New(cfg, store, opts)
		if err != nil {
			t.Fatal(err)
		}
		cols = append(cols, c)
	}
	host, err := plugin.New(cols...)
	if err != nil {
		t.Fatal(err)
	}
	return host
}
