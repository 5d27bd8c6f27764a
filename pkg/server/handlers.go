package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/matzehuels/stepbook/pkg/buildinfo"
	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/pipeline"
	"github.com/matzehuels/stepbook/pkg/render"
)

// Response headers.
const (
	HeaderCache = "X-Stepbook-Cache"
	HeaderCells = "X-Stepbook-Cells"
	HeaderSteps = "X-Stepbook-Steps"
)

const (
	contentNotebook = "text/x-stepbook-notebook; charset=utf-8"
	contentScript   = "text/x-python; charset=utf-8"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// generateResponse is the JSON form of POST /v1/generate when the client
// accepts application/json.
type generateResponse struct {
	Notebook string `json:"notebook"`
	Hash     string `json:"hash"`
	Cells    int    `json:"cells"`
	Steps    int    `json:"steps"`
	Cached   bool   `json:"cached"`
}

type exportResponse struct {
	Script string `json:"script"`
	Hash   string `json:"hash"`
	Cached bool   `json:"cached"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	body, opts, ok := s.request(w, r)
	if !ok {
		return
	}
	res, err := s.runner.Generate(r.Context(), body, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set(HeaderCache, cacheStatus(res.CacheHit))
	w.Header().Set(HeaderCells, strconv.Itoa(res.Stats.Cells))
	w.Header().Set(HeaderSteps, strconv.Itoa(res.Stats.Steps))
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, generateResponse{
			Notebook: res.Notebook,
			Hash:     res.Hash,
			Cells:    res.Stats.Cells,
			Steps:    res.Stats.Steps,
			Cached:   res.CacheHit,
		})
		return
	}
	writeText(w, contentNotebook, res.Notebook)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	body, opts, ok := s.request(w, r)
	if !ok {
		return
	}
	res, err := s.runner.Export(r.Context(), body, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set(HeaderCache, cacheStatus(res.CacheHit))
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, exportResponse{Script: res.Script, Hash: res.Hash, Cached: res.CacheHit})
		return
	}
	writeText(w, contentScript, res.Script)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	body, opts, ok := s.request(w, r)
	if !ok {
		return
	}
	res, err := s.runner.Graph(r.Context(), body, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set(HeaderCache, cacheStatus(res.CacheHit))
	w.Header().Set("Content-Type", render.ContentType(res.Format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Output)
}

// request reads the body and the query options. On failure it has already
// written the error response.
func (s *Server) request(w http.ResponseWriter, r *http.Request) (string, pipeline.Options, bool) {
	opts, err := s.options(r)
	if err != nil {
		s.fail(w, r, err)
		return "", opts, false
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeProblem(w, http.StatusRequestEntityTooLarge, problem{
				Code:    string(errors.ErrCodeInvalidInput),
				Message: "request body exceeds " + strconv.FormatInt(s.maxBody, 10) + " bytes",
				Cell:    -1,
			})
			return "", opts, false
		}
		s.fail(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "read request body"))
		return "", opts, false
	}
	if len(data) == 0 {
		s.fail(w, r, errors.New(errors.ErrCodeInvalidInput, "request body is empty"))
		return "", opts, false
	}
	return string(data), opts, true
}

// options applies query parameters over the server defaults.
func (s *Server) options(r *http.Request) (pipeline.Options, error) {
	opts := s.defaults
	q := r.URL.Query()
	var err error
	if v := q.Get("source"); v != "" {
		opts.Source = v
	}
	if v := q.Get("format"); v != "" {
		opts.Format = v
	}
	if v := q.Get("input"); v != "" {
		opts.Input = v
	}
	if opts.Sample, err = queryInt(q.Get("sample"), "sample", opts.Sample); err != nil {
		return opts, err
	}
	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{"refresh", &opts.Refresh},
		{"main_block", &opts.MainBlock},
		{"reduce", &opts.Reduce},
		{"skip_imports", &opts.SkipImports},
		{"detailed", &opts.Detailed},
	} {
		if *b.dst, err = queryBool(q.Get(b.name), b.name, *b.dst); err != nil {
			return opts, err
		}
	}
	opts.Logger = s.logger.With("request_id", RequestID(r.Context()))
	return opts, nil
}

func queryInt(v, name string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(errors.ErrCodeInvalidInput, "query parameter %s: %q is not an integer", name, v)
	}
	return n, nil
}

func queryBool(v, name string, fallback bool) (bool, error) {
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(errors.ErrCodeInvalidInput, "query parameter %s: %q is not a boolean", name, v)
	}
	return b, nil
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func cacheStatus(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func writeText(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
