package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	sberrors "github.com/matzehuels/stepbook/pkg/errors"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnStageStart(ctx, StageParse)
	p.OnStageComplete(ctx, StageParse, time.Second, nil)
	p.OnNotebook(ctx, 5, 2)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "notebook")
	c.OnCacheMiss(ctx, "script")
	c.OnCacheSet(ctx, "graph", 1024)

	s := NoopServerHooks{}
	s.OnRequest(ctx, "POST", "/v1/generate")
	s.OnResponse(ctx, "POST", "/v1/generate", 200, time.Second)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	defer Reset()

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := Server().(NoopServerHooks); !ok {
		t.Error("Server() should return NoopServerHooks by default")
	}

	m := NewMetrics(prometheus.NewRegistry())
	m.Install()
	if Pipeline() != PipelineHooks(m) || Cache() != CacheHooks(m) || Server() != ServerHooks(m) {
		t.Error("Install should register the metrics as every hook")
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testPipelineHooks{}
	SetPipelineHooks(custom)
	SetPipelineHooks(nil)
	if Pipeline() != custom {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())

	m.OnStageStart(ctx, StageParse)
	if got := testutil.ToFloat64(m.inflight.WithLabelValues(StageParse)); got != 1 {
		t.Errorf("in flight = %v", got)
	}
	m.OnStageComplete(ctx, StageParse, time.Millisecond, sberrors.New(sberrors.ErrCodeSyntax, "bad"))
	m.OnStageComplete(ctx, StageRender, time.Millisecond, errors.New("plain"))
	if got := testutil.ToFloat64(m.stageErrors.WithLabelValues(StageParse, "SYNTAX_ERROR")); got != 1 {
		t.Errorf("syntax errors = %v", got)
	}
	if got := testutil.ToFloat64(m.stageErrors.WithLabelValues(StageRender, "UNKNOWN")); got != 1 {
		t.Errorf("uncoded errors = %v", got)
	}

	m.OnCacheHit(ctx, "notebook")
	m.OnCacheMiss(ctx, "notebook")
	m.OnCacheSet(ctx, "notebook", 100)
	if got := testutil.ToFloat64(m.cacheBytes.WithLabelValues("notebook")); got != 100 {
		t.Errorf("cache bytes = %v", got)
	}

	m.OnResponse(ctx, "POST", "/v1/export", 400, time.Millisecond)
	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/v1/export", "400")); got != 1 {
		t.Errorf("requests = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "stepbook_cache_operations_total") {
		t.Error("handler should expose stepbook metrics")
	}
}

type testPipelineHooks struct{ NoopPipelineHooks }
