package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".cache", appName)
	if dir != expected {
		t.Errorf("cacheDir() = %q, want %q", dir, expected)
	}
}

func TestCacheDirXDG(t *testing.T) {
	customCache := filepath.Join(t.TempDir(), "custom-cache")
	t.Setenv("XDG_CACHE_HOME", customCache)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	expected := filepath.Join(customCache, appName)
	if dir != expected {
		t.Errorf("cacheDir() with XDG_CACHE_HOME = %q, want %q", dir, expected)
	}
}

func TestNotebookPaths(t *testing.T) {
	tests := []struct {
		script   string
		notebook string
	}{
		{"TFRM-001.py", filepath.Join(".stepbook", "TFRM-001.nb.py")},
		{filepath.Join("jobs", "clean.py"), filepath.Join("jobs", ".stepbook", "clean.nb.py")},
	}

	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			if got := notebookPathFor(tt.script); got != tt.notebook {
				t.Errorf("notebookPathFor(%q) = %q, want %q", tt.script, got, tt.notebook)
			}
			if got := scriptPathFor(tt.notebook); got != tt.script {
				t.Errorf("scriptPathFor(%q) = %q, want %q", tt.notebook, got, tt.script)
			}
		})
	}

	if got := scriptPathFor(filepath.Join("out", "clean.txt")); got != filepath.Join("out", "clean.py") {
		t.Errorf("scriptPathFor outside .stepbook = %q", got)
	}
}

func TestResolveNotebook(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "clean.py")
	nb := notebookPathFor(script)

	if err := os.WriteFile(script, []byte("def transform(sources):\n    return 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := resolveNotebook(script); got != script {
		t.Errorf("without a notebook, resolveNotebook = %q, want the argument", got)
	}

	if err := os.MkdirAll(filepath.Dir(nb), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(nb, []byte("# stepbook notebook v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// the script exists too; its notebook still wins
	if got := resolveNotebook(script); got != nb {
		t.Errorf("resolveNotebook(%q) = %q, want %q", script, got, nb)
	}
	if got := resolveNotebook(nb); got != nb {
		t.Errorf("resolveNotebook(notebook) = %q", got)
	}
}

func TestWriteOutput(t *testing.T) {
	var buf strings.Builder
	if err := writeOutput(&buf, stdoutPath, []byte("text")); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "text" {
		t.Errorf("stdout output = %q", buf.String())
	}

	p := filepath.Join(t.TempDir(), "nested", "out.py")
	if err := writeOutput(&buf, p, []byte("x = 1\n")); err != nil {
		t.Fatalf("writeOutput: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil || string(data) != "x = 1\n" {
		t.Errorf("file output = %q, %v", data, err)
	}
}

func TestDataDir(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		cfg   string
		input string
		want  string
	}{
		{"relative to input", "data", "", filepath.Join("jobs", "a.py"), filepath.Join("jobs", "data")},
		{"relative to config", "data", filepath.Join("etc", "stepbook.toml"), filepath.Join("jobs", "a.py"), filepath.Join("etc", "data")},
		{"absolute", "/srv/data", "", "a.py", "/srv/data"},
		{"empty", "", "", "a.py", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.DataPath = tt.data
			cfg.Path = tt.cfg
			if got := dataDir(cfg, tt.input); got != tt.want {
				t.Errorf("dataDir() = %q, want %q", got, tt.want)
			}
		})
	}
}
