package index

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/codex/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index", "codex-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func record(collection, id, checksum, title, body string) models.Record {
	return models.Record{
		Collection: collection,
		ID:         id,
		Path:       collection + "/" + id + ".md",
		Body:       body,
		Checksum:   checksum,
		Fields:     []models.Field{{Name: "title", Value: title}},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records`).Scan(&count); err != nil {
		t.Fatalf("records table missing: %v", err)
	}
}

func TestOpen_RebuildsOnVersionChange(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "index.db")
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = db.Upsert(record("posts", "old", "1", "Old", "<p>old</p>"))
	if _, err := db.conn.Exec(`PRAGMA user_version = 1`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if n, _ := db.Count("posts"); n != 0 {
		t.Errorf("count = %d, want 0 after version change", n)
	}
	if v, err := db.Version(); err != nil || v != schemaVersion {
		t.Errorf("version = %d, %v", v, err)
	}
}

func TestOpen_KeepsCurrentVersion(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "index.db")
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = db.Upsert(record("posts", "kept", "1", "Kept", "<p>kept</p>"))
	db.Close()

	db, err = Open(dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if n, _ := db.Count("posts"); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestOpen_BadPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(filepath.Join(file, "index.db")); err == nil {
		t.Fatal("expected error opening db under a regular file")
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	if err := db.Upsert(record("posts", "hello", "abc123", "Hello World", "<p>hi</p>")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	cs, err := db.GetChecksum("posts", "hello")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
	// Same id in another collection is a different record.
	cs, _ = db.GetChecksum("pages", "hello")
	if cs != "" {
		t.Errorf("checksum in other collection = %q, want empty", cs)
	}
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(record("posts", "del", "x", "Del", "body"))

	if err := db.Delete("posts", "del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	cs, _ := db.GetChecksum("posts", "del")
	if cs != "" {
		t.Errorf("deleted record still has checksum %q", cs)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(record("posts", "up", "1", "Old", "old body"))
	_ = db.Upsert(record("posts", "up", "2", "New", "new body"))

	cs, _ := db.GetChecksum("posts", "up")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	n, err := db.Count("posts")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("posts", "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(record("posts", "s", "1", "Search Me", "<p>uniqueword appears <em>here</em></p>"))

	results, err := db.Search(Query{Text: "uniqueword", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "s" || results[0].Collection != "posts" {
		t.Fatalf("search results = %+v, want 1 hit for posts/s", results)
	}
	if results[0].Title != "Search Me" {
		t.Errorf("title = %q", results[0].Title)
	}
}

func TestSync(t *testing.T) {
	db := testDB(t)
	logger := quietLogger()

	first := []models.Record{
		record("posts", "a", "1", "A", "a"),
		record("posts", "b", "1", "B", "b"),
	}
	if err := Sync(db, "posts", first, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	_ = db.Upsert(record("pages", "about", "1", "About", "about"))

	second := []models.Record{
		record("posts", "a", "2", "A2", "a"),
		record("posts", "c", "1", "C", "c"),
	}
	if err := Sync(db, "posts", second, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	got, err := db.Checksums("posts")
	if err != nil {
		t.Fatalf("Checksums: %v", err)
	}
	want := map[string]string{"a": "2", "c": "1"}
	if len(got) != len(want) {
		t.Fatalf("checksums = %v, want %v", got, want)
	}
	for id, cs := range want {
		if got[id] != cs {
			t.Errorf("checksum[%s] = %q, want %q", id, got[id], cs)
		}
	}
	// Other collections are untouched.
	if n, _ := db.Count("pages"); n != 1 {
		t.Errorf("pages count = %d, want 1", n)
	}
}

func TestTitle(t *testing.T) {
	if got := Title(record("posts", "x", "", "Hello", "")); got != "Hello" {
		t.Errorf("Title = %q", got)
	}
	if got := Title(models.Record{ID: "fallback"}); got != "fallback" {
		t.Errorf("Title = %q, want id fallback", got)
	}
}

func TestPlainText(t *testing.T) {
	got := PlainText("<h1>Title</h1>\n<p>Some <em>rich</em>\ntext &amp; more</p>")
	if got != "Title Some rich text & more" {
		t.Errorf("PlainText = %q", got)
	}
}
