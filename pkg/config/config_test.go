package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/stepbook/pkg/errors"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
entry = "run"
sample = 50
known_ops = ["head"]
main_block = true

[cache]
redis_url = "redis://localhost:6379/1"
namespace = "staging"
ttl = "90m"

[server]
addr = ":9090"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Entry != "run" || cfg.Sample != 50 || !cfg.MainBlock {
		t.Errorf("scalars not decoded: %+v", cfg)
	}
	if cfg.Marker != "step" {
		t.Errorf("unset keys should keep defaults, Marker = %q", cfg.Marker)
	}
	if got := cfg.CacheTTL(time.Hour); got != 90*time.Minute {
		t.Errorf("CacheTTL = %v", got)
	}
	if cfg.Server.Addr != ":9090" || cfg.Cache.RedisURL == "" || cfg.Cache.Namespace != "staging" {
		t.Errorf("tables not decoded: %+v", cfg)
	}
	if ops := cfg.KnownOpsSet(); !ops["head"] || ops["str_upper"] {
		t.Errorf("KnownOpsSet = %v", ops)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q", cfg.Path)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code errors.Code
	}{
		{"unknown key", "entyr = \"x\"\n", errors.ErrCodeInvalidInput},
		{"bad toml", "entry = \n", errors.ErrCodeInvalidInput},
		{"bad identifier", "marker = \"1step\"\n", errors.ErrCodeInvalidInput},
		{"negative sample", "sample = -1\n", errors.ErrCodeInvalidInput},
		{"bad duration", "[cache]\nttl = \"soon\"\n", errors.ErrCodeInvalidInput},
		{"namespace with colon", "[cache]\nnamespace = \"a:b\"\n", errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file: err = %v", err)
	}
}

func TestFind(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()

	if got := Find(dir); got != "" {
		t.Errorf("Find with no files = %q", got)
	}
	cfg, err := LoadFor(dir)
	if err != nil || cfg.Path != "" || cfg.Entry != "transform" {
		t.Errorf("LoadFor defaults = %+v, %v", cfg, err)
	}

	global := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), appName)
	if err := os.MkdirAll(global, 0755); err != nil {
		t.Fatal(err)
	}
	globalPath := writeConfig(t, global, "sample = 3\n")
	if got := Find(dir); got != globalPath {
		t.Errorf("Find = %q, want global %q", got, globalPath)
	}

	localPath := writeConfig(t, dir, "sample = 7\n")
	if got := Find(dir); got != localPath {
		t.Errorf("Find = %q, want local %q", got, localPath)
	}
	cfg, err = LoadFor(dir)
	if err != nil || cfg.Sample != 7 {
		t.Errorf("LoadFor = %+v, %v", cfg, err)
	}
}

func TestNotebookOptions(t *testing.T) {
	cfg := Default()
	cfg.Sample = 10
	opts := cfg.NotebookOptions("TFRM-001.py")
	if opts.Source != "TFRM-001.py" || opts.Sample != 10 || opts.Param != "sources" {
		t.Errorf("NotebookOptions = %+v", opts)
	}
	if !opts.KnownOps["filter_isin"] {
		t.Error("default known ops should include the frame vocabulary")
	}
	if to := cfg.TransformerOptions(); to.Entry != "transform" || to.Marker != "step" {
		t.Errorf("TransformerOptions = %+v", to)
	}
}
