package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stepbook/pkg/buildinfo"
	"github.com/matzehuels/stepbook/pkg/cache"
	"github.com/matzehuels/stepbook/pkg/config"
	"github.com/matzehuels/stepbook/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "stepbook"

	// redisPrefix namespaces stepbook keys in a shared Redis.
	redisPrefix = appName + ":"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Out receives command output when no -o file is given.
	Out io.Writer

	configPath string
	noCache    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Stepbook converts transformer scripts to step notebooks and back",
		Long: `Stepbook turns a transformer script, a module whose entry function is
divided by step markers, into a reactive notebook with one cell per step,
and exports such a notebook back into an equivalent script.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		return nil
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: stepbook.toml next to the input)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "disable the result cache")

	// Register all subcommands
	root.AddCommand(c.generateCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.runCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Config & Runner Factory
// =============================================================================

// loadConfig reads --config when given, else the stepbook.toml that applies
// to input.
func (c *CLI) loadConfig(input string) (config.Config, error) {
	if c.configPath != "" {
		return config.Load(c.configPath)
	}
	dir := "."
	if input != "" {
		dir = filepath.Dir(input)
	}
	cfg, err := config.LoadFor(dir)
	if err != nil {
		return cfg, err
	}
	if cfg.Path != "" {
		c.Logger.Debug("loaded config", "path", cfg.Path)
	}
	return cfg, nil
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config) *pipeline.Runner {
	r := pipeline.NewRunner(c.newCache(ctx, cfg), keyerFor(cfg), c.Logger)
	r.TTL = cfg.CacheTTL(0)
	return r
}

// keyerFor scopes cache keys to the configured namespace, e.g.
// "staging:notebook:<hash>". Without one the default keys are used.
func keyerFor(cfg config.Config) cache.Keyer {
	if cfg.Cache.Namespace == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(nil, cfg.Cache.Namespace+":")
}

// newCache picks the backend named by cfg. Backends that cannot be opened
// degrade to the next option: Redis, then the file cache, then no cache.
func (c *CLI) newCache(ctx context.Context, cfg config.Config) cache.Cache {
	if c.noCache || cfg.Cache.Disabled {
		return cache.NewNullCache()
	}
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{URL: cfg.Cache.RedisURL, Prefix: redisPrefix})
		if err == nil {
			c.Logger.Debug("using redis cache")
			return rc
		}
		c.Logger.Warn("redis cache unavailable, using file cache", "err", err)
	}
	dir, err := cfgCacheDir(cfg)
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("file cache unavailable", "dir", dir, "err", err)
		return cache.NewNullCache()
	}
	return fc
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/stepbook/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// cfgCacheDir prefers the configured cache directory over the XDG default.
func cfgCacheDir(cfg config.Config) (string, error) {
	if cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return cacheDir()
}

// dataDir resolves the configured data path. Relative paths are taken from
// the config file's directory, or from the input's directory without one.
func dataDir(cfg config.Config, input string) string {
	p := cfg.DataPath
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	base := filepath.Dir(input)
	if cfg.Path != "" {
		base = filepath.Dir(cfg.Path)
	}
	return filepath.Join(base, p)
}
