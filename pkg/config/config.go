// Package config loads stepbook settings from an optional stepbook.toml.
//
// Lookup order for [Find]: the directory of the input file, then
// $XDG_CONFIG_HOME/stepbook (or the platform config directory). A missing
// file is not an error; [Default] applies. Command-line flags override file
// values, which is left to the caller.
//
//	entry = "transform"
//	marker = "step"
//	sources_param = "sources"
//	runtime_module = "migrator_studio.notebook"
//	sample = 100
//	data_path = "data"
//	known_ops = ["filter_isin", "str_upper"]
//
//	[cache]
//	dir = "/var/cache/stepbook"
//	redis_url = "redis://localhost:6379/0"
//	namespace = "staging"
//	ttl = "24h"
//
//	[server]
//	addr = ":8080"
package config

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/frame"
	"github.com/matzehuels/stepbook/pkg/notebook"
	"github.com/matzehuels/stepbook/pkg/transformer"
)

// FileName is the configuration file looked up by [Find].
const FileName = "stepbook.toml"

const appName = "stepbook"

// DefaultAddr is the server listen address.
const DefaultAddr = ":8080"

// Config holds every file-configurable setting.
type Config struct {
	Entry         string   `toml:"entry"`
	Marker        string   `toml:"marker"`
	SourcesParam  string   `toml:"sources_param"`
	SourcesVar    string   `toml:"sources_var"`
	RuntimeModule string   `toml:"runtime_module"`
	LoaderModule  string   `toml:"loader_module"`
	Sample        int      `toml:"sample"`
	DataPath      string   `toml:"data_path"`
	MainBlock     bool     `toml:"main_block"`
	KnownOps      []string `toml:"known_ops"`

	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

// CacheConfig selects the cache backend. RedisURL wins over Dir. Namespace
// separates deployments that share one backend.
type CacheConfig struct {
	Dir       string   `toml:"dir"`
	RedisURL  string   `toml:"redis_url"`
	Namespace string   `toml:"namespace"`
	TTL       Duration `toml:"ttl"`
	Disabled  bool     `toml:"disabled"`
}

// ServerConfig configures `stepbook serve`.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Duration is a time.Duration written as a string ("24h", "90m").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Entry:         notebook.DefaultEntry,
		Marker:        notebook.DefaultMarker,
		SourcesParam:  notebook.DefaultParam,
		SourcesVar:    notebook.DefaultSourcesVar,
		RuntimeModule: notebook.DefaultRuntimeModule,
		LoaderModule:  notebook.DefaultLoaderModule,
		DataPath:      "data",
		KnownOps:      slices.Clone(frame.OpNames),
		Server:        ServerConfig{Addr: DefaultAddr},
	}
}

// Load reads the file at path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
	}
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidPath, err, "config %s", path)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return cfg, errors.New(errors.ErrCodeInvalidInput, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	return cfg, cfg.Validate()
}

// Find returns the first config file for an input in dir, or "".
func Find(dir string) string {
	candidates := []string{}
	if dir != "" {
		candidates = append(candidates, filepath.Join(dir, FileName))
	}
	if d, err := userConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(d, FileName))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// LoadFor loads the config applying to an input in dir, or the defaults if
// there is none.
func LoadFor(dir string) (Config, error) {
	path := Find(dir)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func userConfigDir() (string, error) {
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, appName), nil
	}
	d, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, appName), nil
}

// Validate checks value ranges and identifier fields.
func (c Config) Validate() error {
	fields := []struct{ key, value string }{
		{"entry", c.Entry},
		{"marker", c.Marker},
		{"sources_param", c.SourcesParam},
		{"sources_var", c.SourcesVar},
	}
	for _, f := range fields {
		if err := errors.ValidateIdentifier("config "+f.key, f.value); err != nil {
			return err
		}
	}
	if c.Sample < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "config sample: must be >= 0, got %d", c.Sample)
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "config cache.ttl: must be >= 0")
	}
	if strings.ContainsAny(c.Cache.Namespace, " \t\n:") {
		return errors.New(errors.ErrCodeInvalidInput, "config cache.namespace: %q must not contain spaces or colons", c.Cache.Namespace)
	}
	return nil
}

// KnownOpsSet returns KnownOps as a set.
func (c Config) KnownOpsSet() map[string]bool {
	set := make(map[string]bool, len(c.KnownOps))
	for _, op := range c.KnownOps {
		set[op] = true
	}
	return set
}

// TransformerOptions returns the parse options.
func (c Config) TransformerOptions() transformer.Options {
	return transformer.Options{
		Entry:      c.Entry,
		Marker:     c.Marker,
		SourcesVar: c.SourcesVar,
	}
}

// NotebookOptions returns generation and export options. source is the
// input file name recorded in generated notebooks.
func (c Config) NotebookOptions(source string) notebook.Options {
	return notebook.Options{
		Source:        source,
		RuntimeModule: c.RuntimeModule,
		LoaderModule:  c.LoaderModule,
		Sample:        c.Sample,
		Param:         c.SourcesParam,
		Entry:         c.Entry,
		Marker:        c.Marker,
		SourcesVar:    c.SourcesVar,
		MainBlock:     c.MainBlock,
		KnownOps:      c.KnownOpsSet(),
	}
}

// CacheTTL returns the configured TTL, or fallback when unset.
func (c Config) CacheTTL(fallback time.Duration) time.Duration {
	if c.Cache.TTL > 0 {
		return time.Duration(c.Cache.TTL)
	}
	return fallback
}
