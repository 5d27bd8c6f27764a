package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/stepbook/pkg/cache"
	"github.com/matzehuels/stepbook/pkg/io"
	"github.com/matzehuels/stepbook/pkg/notebook"
	"github.com/matzehuels/stepbook/pkg/observability"
)

// Cache key types reported to the cache hooks.
const (
	keyNotebook = "notebook"
	keyScript   = "script"
	keyGraph    = "graph"
)

// Runner executes pipeline operations with caching. Identical concurrent
// calls share one execution. A Runner is safe for concurrent use; results
// it returns must be treated as read-only.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// TTL overrides the per-artifact default TTLs when positive.
	TTL time.Duration

	group singleflight.Group
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Generate converts a script into notebook text. Rendered notebooks are
// cached by the script's content hash and the options that shape the
// output.
func (r *Runner) Generate(ctx context.Context, src string, opts Options) (*Result, error) {
	if err := r.prepare(&opts); err != nil {
		return nil, err
	}
	hash := cache.HashString(src)
	key := r.Keyer.NotebookKey(hash, opts.notebookKeyOpts())

	v, err, shared := r.group.Do(key, func() (any, error) {
		if !opts.Refresh {
			if data, ok := r.lookup(ctx, key, keyNotebook); ok {
				if doc, err := notebook.Parse(string(data)); err == nil {
					return &Result{
						Notebook: string(data),
						Document: doc,
						Stats:    Stats{Cells: len(doc.Cells), Steps: len(doc.Steps())},
						CacheHit: true,
					}, nil
				}
				r.Logger.Warn("discarding unreadable cached notebook", "key", key)
			}
		}
		res, err := Generate(ctx, src, opts)
		if err != nil {
			return nil, err
		}
		r.store(ctx, key, keyNotebook, []byte(res.Notebook), r.ttl(cache.NotebookTTL))
		return res, nil
	})
	if err != nil {
		r.Logger.Debug("generate failed", "source", opts.Source, "err", err)
		return nil, err
	}
	res := *v.(*Result)
	res.Hash = hash
	r.Logger.Info("generated notebook",
		"source", opts.Source,
		"cells", res.Stats.Cells,
		"steps", res.Stats.Steps,
		"cached", res.CacheHit,
		"shared", shared,
		"duration", res.Stats.Total())
	return &res, nil
}

// Export converts notebook text into a script, caching by content hash.
func (r *Runner) Export(ctx context.Context, text string, opts Options) (*ExportResult, error) {
	if err := r.prepare(&opts); err != nil {
		return nil, err
	}
	hash := cache.HashString(text)
	key := r.Keyer.ScriptKey(hash, opts.scriptKeyOpts())

	v, err, _ := r.group.Do(key, func() (any, error) {
		if !opts.Refresh {
			if data, ok := r.lookup(ctx, key, keyScript); ok {
				return &ExportResult{Script: string(data), CacheHit: true}, nil
			}
		}
		res, err := Export(ctx, text, opts)
		if err != nil {
			return nil, err
		}
		r.store(ctx, key, keyScript, []byte(res.Script), r.ttl(cache.ScriptTTL))
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*ExportResult)
	res.Hash = hash
	r.Logger.Info("exported script",
		"cells", res.Stats.Cells,
		"cached", res.CacheHit,
		"duration", res.Stats.Total())
	return &res, nil
}

// Graph derives the cell graph of a script or notebook and renders it in
// opts.Format. The graph itself is cached as JSON; rendering runs on every
// call.
func (r *Runner) Graph(ctx context.Context, text string, opts Options) (*GraphResult, error) {
	if err := r.prepare(&opts); err != nil {
		return nil, err
	}
	input := opts.Input
	if input == "" {
		input = DetectInput(text)
	}
	key := r.Keyer.GraphKey(cache.HashString(text), opts.graphKeyOpts(input))

	v, err, _ := r.group.Do(key, func() (any, error) {
		if !opts.Refresh {
			if data, ok := r.lookup(ctx, key, keyGraph); ok {
				if g, err := io.UnmarshalJSON(data); err == nil {
					return &GraphResult{Graph: g, CacheHit: true}, nil
				}
				r.Logger.Warn("discarding unreadable cached graph", "key", key)
			}
		}
		doc, err := Document(ctx, text, input, opts)
		if err != nil {
			return nil, err
		}
		g, d, err := BuildGraph(ctx, doc, opts)
		if err != nil {
			return nil, err
		}
		if data, err := io.MarshalJSON(g); err == nil {
			r.store(ctx, key, keyGraph, data, r.ttl(cache.GraphTTL))
		}
		return &GraphResult{Graph: g, Stats: Stats{Cells: len(doc.Cells), GraphTime: d}}, nil
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*GraphResult)
	res.Input = input
	res.Format = opts.Format

	start := time.Now()
	out, err := RenderGraph(ctx, res.Graph, opts.Format, opts.Detailed)
	if err != nil {
		return nil, err
	}
	res.Output = out
	res.Stats.RenderTime = time.Since(start)
	r.Logger.Info("built cell graph",
		"input", input,
		"nodes", res.Graph.NodeCount(),
		"edges", res.Graph.EdgeCount(),
		"format", opts.Format,
		"cached", res.CacheHit)
	return &res, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) prepare(opts *Options) error {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	return nil
}

// lookup reads key from the cache. Cache failures are logged and treated as
// misses.
func (r *Runner) lookup(ctx context.Context, key, kind string) ([]byte, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "kind", kind, "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, kind)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, kind)
	return data, true
}

func (r *Runner) store(ctx context.Context, key, kind string, data []byte, ttl time.Duration) {
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "kind", kind, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, kind, len(data))
}

func (r *Runner) ttl(fallback time.Duration) time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return fallback
}
