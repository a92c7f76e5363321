package internal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/codex/internal/testutil"
)

const postsYAML = `
app:
  http:
    port: 8080
root: ROOT
output:
  dir: .codex
  declarations: collections.d.ts
  json_schema: true
sqlite:
  path: .codex/index.db
collections:
  - name: posts
    base: posts
    fields:
      title: string
      date: {type: string, format: date}
      tags: {type: array, items: string, optional: true}
      author: {type: enum, values: [josh, jonathan]}
    sort: {field: date, order: descending}
`

func testConfig(t *testing.T) (*Config, string) {
	t.Helper()
	dir, _ := testutil.TestProject(t, map[string]string{
		"posts/a.md": testutil.PostA,
		"posts/b.md": testutil.PostB,
	})
	cfg, err := loadSample(t, strings.Replace(postsYAML, "ROOT", dir, 1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return cfg, dir
}

func TestRun_Build(t *testing.T) {
	cfg, dir := testConfig(t)

	if err := Run(context.Background(), WithConfig(cfg), WithMode(ModeBuild)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, name := range []string{"posts/a.js", "posts/b.js", "posts.js", "posts.schema.json", "collections.d.ts", "index.db"} {
		if _, err := os.Stat(filepath.Join(dir, ".codex", name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
	decls, err := os.ReadFile(filepath.Join(dir, ".codex", "collections.d.ts"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(decls), `declare module "#posts"`) {
		t.Errorf("declarations = %s", decls)
	}
}

func TestRun_BuildFailsOnInvalidDocument(t *testing.T) {
	cfg, dir := testConfig(t)
	testutil.WriteFile(t, dir, "posts/bad.md", "---\ntitle: Bad\n---\n")

	if err := Run(context.Background(), WithConfig(cfg), WithMode(ModeBuild)); err == nil {
		t.Fatal("build with an invalid document should fail")
	}
	// Valid documents are still written.
	if _, err := os.Stat(filepath.Join(dir, ".codex", "posts", "a.js")); err != nil {
		t.Errorf("posts/a.js missing: %v", err)
	}
}

func TestRun_List(t *testing.T) {
	cfg, _ := testConfig(t)

	var out bytes.Buffer
	if err := Run(context.Background(), WithConfig(cfg), WithMode(ModeList), WithOutput(&out)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "posts (#posts, posts)") {
		t.Errorf("tree missing collection:\n%s", text)
	}
	var ids []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasSuffix(line, " a") || strings.HasSuffix(line, " b") {
			ids = append(ids, line[len(line)-1:])
		}
	}
	if strings.Join(ids, ",") != "b,a" {
		t.Errorf("records = %v, want [b a]:\n%s", ids, text)
	}
}

func TestRun_UnknownMode(t *testing.T) {
	cfg, _ := testConfig(t)

	if err := Run(context.Background(), WithConfig(cfg), WithMode("dance")); err == nil {
		t.Fatal("unknown mode should fail")
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}
