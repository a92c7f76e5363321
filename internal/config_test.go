package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/codex/internal/collection"
	pkgconfig "github.com/starford/codex/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Collections = []CollectionConfig{{Name: "posts", Base: "posts"}}
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

const sampleConfig = `
app:
  log_level: info
  http:
    port: ${CODEX_TEST_PORT}
root: .
output:
  dir: .codex
  declarations: collections.d.ts
  json_schema: true
sqlite:
  path: .codex/index.db
collections:
  - name: posts
    base: src/posts
    fields:
      title: {type: string, nonempty: true}
      date: {type: string, format: date}
      tags: {type: array, items: string, optional: true}
      author: {type: enum, values: [josh, jonathan]}
    remark: [gfm]
    rehype: [external-links]
    sort: {field: date, order: descending}
`

func loadSample(t *testing.T, body string) (*Config, error) {
	t.Helper()
	t.Setenv("CODEX_TEST_PORT", "9090")
	file := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	err := pkgconfig.Load(file, cfg)
	return cfg, err
}

func TestLoadConfig_Collections(t *testing.T) {
	cfg, err := loadSample(t, sampleConfig)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.App.HTTP.Port)
	}
	if got := cfg.Output.DeclarationsPath(); got != ".codex/collections.d.ts" {
		t.Errorf("declarations path = %q", got)
	}

	cols, err := cfg.CollectionConfigs()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(cols) != 1 {
		t.Fatalf("collections = %d, want 1", len(cols))
	}
	c := cols[0]
	if c.Name != "posts" || c.Base != "src/posts" {
		t.Errorf("name/base = %q/%q", c.Name, c.Base)
	}
	if c.Module() != "#posts" {
		t.Errorf("module = %q", c.Module())
	}
	if len(c.Pre) != 1 || len(c.Post) != 1 {
		t.Errorf("stages = %d/%d, want 1/1", len(c.Pre), len(c.Post))
	}
	if c.Sort == nil || c.Sort.Field != "date" || c.Sort.Order != collection.Descending {
		t.Errorf("sort = %+v", c.Sort)
	}
	var names []string
	for _, f := range c.Schema.Fields() {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "title,date,tags,author" {
		t.Errorf("field order = %v", names)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("resolved config invalid: %v", err)
	}
}

func TestLoadConfig_UnknownStage(t *testing.T) {
	_, err := loadSample(t, strings.Replace(sampleConfig, "remark: [gfm]", "remark: [nope]", 1))
	if err == nil || !strings.Contains(err.Error(), "unknown markdown stage") {
		t.Fatalf("err = %v, want unknown stage", err)
	}
}

func TestLoadConfig_BadSortOrder(t *testing.T) {
	_, err := loadSample(t, strings.Replace(sampleConfig, "order: descending", "order: sideways", 1))
	if err == nil {
		t.Fatal("invalid sort order should fail")
	}
}

func TestLoadConfig_UnknownFieldType(t *testing.T) {
	_, err := loadSample(t, strings.Replace(sampleConfig, "{type: string, format: date}", "{type: timestamp}", 1))
	if err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Fatalf("err = %v, want unknown type", err)
	}
}

func TestConfig_DuplicateCollection(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Collections = []CollectionConfig{
		{Name: "posts", Base: "posts"},
		{Name: "posts", Base: "more-posts"},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("err = %v, want duplicate", err)
	}
}

func TestConfig_UnnamedCollections(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Collections = []CollectionConfig{
		{Base: "content/posts"},
		{Base: "content/pages"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unnamed collections with distinct bases: %v", err)
	}

	cfg.Collections = append(cfg.Collections, CollectionConfig{Name: "posts", Base: "archive"})
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), `duplicate name "posts"`) {
		t.Fatalf("err = %v, want duplicate name \"posts\"", err)
	}
}

func TestConfig_NoCollections(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("config without collections should fail")
	}
}

func TestOutputConfig_RejectsEscapingPaths(t *testing.T) {
	for _, dir := range []string{"/tmp/out", "../out"} {
		c := OutputConfig{Dir: dir, Declarations: "collections.d.ts"}
		if err := c.Validate(); err == nil {
			t.Errorf("output dir %q should fail", dir)
		}
	}
}
