package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func TestExpand(t *testing.T) {
	t.Setenv("CODEX_SET", "value")
	t.Setenv("CODEX_EMPTY", "")

	cases := map[string]string{
		"$CODEX_SET":               "value",
		"${CODEX_SET}":             "value",
		"${CODEX_SET:-other}":      "value",
		"${CODEX_EMPTY:-fallback}": "fallback",
		"${CODEX_UNSET_VAR:-8080}": "8080",
		"${CODEX_UNSET_VAR}":       "",
		"plain text":               "plain text",
	}
	for in, want := range cases {
		if got := Expand(in); got != want {
			t.Errorf("Expand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("CODEX_TEST_NAME", "codex")
	file := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(file, []byte("name: ${CODEX_TEST_NAME}\nport: ${CODEX_TEST_PORT:-9000}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg sample
	if err := Load(file, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "codex" || cfg.Port != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestDecode_UnknownField(t *testing.T) {
	cfg := sample{Port: 1}
	err := Decode([]byte("name: x\nprot: 80\n"), &cfg)
	if err == nil || !strings.Contains(err.Error(), "prot") {
		t.Fatalf("err = %v, want unknown field error", err)
	}
}

func TestDecode_EmptyKeepsDefaults(t *testing.T) {
	cfg := sample{Name: "default", Port: 8080}
	if err := Decode([]byte(""), &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Name != "default" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestDecode_ValidationFailure(t *testing.T) {
	var cfg sample
	err := Decode([]byte("name: x\nport: 0\n"), &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v, want validation failure", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}
