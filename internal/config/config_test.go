package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, `
[prelude]
path = "lean/prelude.export"

[fuzz]
strings = "strings"
jobs = 4
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, found, err := Discover(nested)
	if err != nil || !found {
		t.Fatalf("Discover = %v, %v", found, err)
	}
	if cfg.Path != path {
		t.Fatalf("path = %q, want %q", cfg.Path, path)
	}
	if got, want := cfg.Resolve(cfg.Prelude.Path), filepath.Join(root, "lean", "prelude.export"); got != want {
		t.Fatalf("prelude = %q, want %q", got, want)
	}
	if cfg.Fuzz.Jobs != 4 {
		t.Fatalf("jobs = %d", cfg.Fuzz.Jobs)
	}
	// не заданные ключи остаются по умолчанию
	if cfg.Fuzz.MaxInput != 1<<16 || !cfg.Fuzz.ProbeFalse || !cfg.Cache.Enabled || !cfg.Prelude.AllowAxioms {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestDiscoverDefaults(t *testing.T) {
	cfg, found, err := Discover(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// a kernelfuzz.toml above the temp dir would make this flaky
	if found {
		t.Skip("a kernelfuzz.toml exists above the temp directory")
	}
	if *cfg != *Default() {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name, body, want string
	}{
		{"syntax", "[fuzz\n", "failed to parse TOML"},
		{"unknown key", "[fuzz]\nmax_inptu = 3\n", "unknown keys: fuzz.max_inptu"},
		{"missing prelude path", "[prelude]\nallow_axioms = false\n", "missing [prelude].path"},
		{"max input", "[fuzz]\nmax_input = 0\n", "max_input"},
		{"jobs", "[fuzz]\njobs = -1\n", "jobs"},
		{"memory", "[fuzz]\nmax_memory_mb = -5\n", "max_memory_mb"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tc.body)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	cfg := &Config{Root: "/srv/fuzz"}
	if got := cfg.Resolve(""); got != "" {
		t.Errorf("empty = %q", got)
	}
	if got := cfg.Resolve("/abs"); got != "/abs" {
		t.Errorf("abs = %q", got)
	}
	if got := cfg.Resolve("corpus/bin"); got != filepath.Join("/srv/fuzz", "corpus", "bin") {
		t.Errorf("rel = %q", got)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "testdata", FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := filepath.Base(cfg.Resolve(cfg.Prelude.Path)); got != "prelude.export" {
		t.Errorf("prelude = %q", got)
	}
	if cfg.Fuzz.MaxInput != 1<<16 || !cfg.Fuzz.ProbeFalse || !cfg.Cache.Enabled {
		t.Errorf("unexpected fuzz settings: %+v %+v", cfg.Fuzz, cfg.Cache)
	}
}
