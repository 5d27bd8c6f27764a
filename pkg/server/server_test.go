package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/stepbook/pkg/cache"
	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/observability"
	"github.com/matzehuels/stepbook/pkg/pipeline"
)

const script = `from migrator_studio import step, filter_isin

SOURCES = ["DAT-1"]


def transform(sources):
    df = sources["DAT-1"]

    step("Filter active")
    df = filter_isin(df, "Status", ["Active"])

    return df
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := log.New(io.Discard)
	m := observability.NewMetrics(prometheus.NewRegistry())
	srv := New(Options{
		Runner:  pipeline.NewRunner(cache.NewMemoryCache(0), nil, logger),
		Logger:  logger,
		Metrics: m,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func decodeProblem(t *testing.T, resp *http.Response) problem {
	t.Helper()
	var p problem
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return p
}

func TestGenerate(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/v1/generate?sample=5&source=TFRM-001.py", script, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}
	body := readBody(t, resp)
	if !strings.HasPrefix(body, "# stepbook notebook v1\n# source: TFRM-001.py\n") {
		t.Errorf("body:\n%s", body)
	}
	if !strings.Contains(body, "sample=5") {
		t.Error("sample query parameter not applied")
	}
	if resp.Header.Get(HeaderCache) != "miss" || resp.Header.Get(HeaderSteps) != "1" {
		t.Errorf("headers: cache=%q steps=%q", resp.Header.Get(HeaderCache), resp.Header.Get(HeaderSteps))
	}
	if _, err := uuid.Parse(resp.Header.Get(HeaderRequestID)); err != nil {
		t.Errorf("X-Request-ID should be a UUID: %q", resp.Header.Get(HeaderRequestID))
	}

	resp = post(t, ts, "/v1/generate?sample=5&source=TFRM-001.py", script, map[string]string{
		"Accept":        "application/json",
		HeaderRequestID: "abc-123",
	})
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Cached || out.Notebook != body || out.Steps != 1 {
		t.Errorf("json response = %+v", out)
	}
	if resp.Header.Get(HeaderRequestID) != "abc-123" {
		t.Errorf("incoming request ID should be kept, got %q", resp.Header.Get(HeaderRequestID))
	}
}

func TestExport(t *testing.T) {
	ts := newTestServer(t)
	nb := readBody(t, post(t, ts, "/v1/generate", script, nil))

	resp := post(t, ts, "/v1/export?main_block=true", nb, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "def transform(sources):") || !strings.Contains(body, `if __name__ == "__main__":`) {
		t.Errorf("exported script:\n%s", body)
	}
}

func TestGraph(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/v1/graph", script, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var g struct {
		Nodes []struct{ ID string } `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) == 0 {
		t.Error("graph has no nodes")
	}

	resp = post(t, ts, "/v1/graph?format=dot&reduce=1", script, nil)
	if body := readBody(t, resp); !strings.HasPrefix(body, "digraph G {") {
		t.Errorf("dot body:\n%s", body)
	}
}

func TestErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
		line   int
	}{
		{"syntax", "/v1/generate", "def transform(:\n", http.StatusBadRequest, "SYNTAX_ERROR", 1},
		{"structure", "/v1/generate", "x = 1\n", http.StatusBadRequest, "STRUCTURE_ERROR", 0},
		{"malformed notebook", "/v1/export", "# stepbook notebook v1\n\n# %% {not json}\n", http.StatusBadRequest, "MALFORMED_CELL", 0},
		{"bad sample", "/v1/generate?sample=many", script, http.StatusBadRequest, "INVALID_INPUT", 0},
		{"bad format", "/v1/graph?format=gif", script, http.StatusBadRequest, "INVALID_INPUT", 0},
		{"empty body", "/v1/generate", "", http.StatusBadRequest, "INVALID_INPUT", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.path, tt.body, nil)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			p := decodeProblem(t, resp)
			if p.Code != tt.code {
				t.Errorf("code = %q, want %q (%s)", p.Code, tt.code, p.Message)
			}
			if tt.line > 0 && p.Line != tt.line {
				t.Errorf("line = %d, want %d", p.Line, tt.line)
			}
		})
	}
}

func TestProblemFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"input", errors.New(errors.ErrCodeSyntax, "unexpected token").AtLine(2), http.StatusBadRequest, "SYNTAX_ERROR"},
		{"internal", errors.New(errors.ErrCodeInternal, "unbalanced scope"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"wrapped internal", fmt.Errorf("generate: %w", errors.New(errors.ErrCodeInternal, "unbalanced scope")), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"uncoded", io.ErrUnexpectedEOF, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, "UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, p := problemFor(tt.err)
			if status != tt.status || p.Code != tt.code {
				t.Errorf("problemFor = %d %s, want %d %s", status, p.Code, tt.status, tt.code)
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	srv := New(Options{Logger: log.New(io.Discard), MaxBodyBytes: 16})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := post(t, ts, "/v1/generate", script, nil)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health["status"] != "ok" {
		t.Errorf("health = %v, %v", health, err)
	}

	resp, err = ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}

	resp, err = ts.Client().Get(ts.URL + "/v1/generate")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /v1/generate status = %d", resp.StatusCode)
	}
}

func TestServeShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(Options{Logger: log.New(io.Discard)})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
