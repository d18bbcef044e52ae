// Package httpapi exposes the service's HTTP surface spec.md §6 treats as
// an external collaborator: POST /solve, the admin purge endpoint, and
// the observability endpoints SPEC_FULL.md adds (/metrics, /healthz).
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/rattler-go/repodata-solver/apierrors"
	"github.com/rattler-go/repodata-solver/indexcache"
	"github.com/rattler-go/repodata-solver/metrics"
	"github.com/rattler-go/repodata-solver/pipeline"
)

// Server bundles every dependency the HTTP surface needs to serve
// requests.
type Server struct {
	Pipeline   *pipeline.Pipeline
	IndexCache *indexcache.Cache
	Metrics    *metrics.Collector
	Log        logr.Logger

	mux *http.ServeMux
}

// NewServer constructs the request router with every route wired; Handler
// applies the access-log/rate-limit middleware on top of it.
func NewServer(p *pipeline.Pipeline, ic *indexcache.Cache, m *metrics.Collector, log logr.Logger) *Server {
	s := &Server{Pipeline: p, IndexCache: ic, Metrics: m, Log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /solve", s.handleSolve)
	mux.HandleFunc("DELETE /cache", s.handlePurge)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux = mux
	return s
}

// Handler returns the fully wrapped http.Handler (routes plus request
// logging and inbound rate limiting).
func (s *Server) Handler() http.Handler {
	throttle := newOriginThrottle(50, 100)
	return chain(s.mux, requestLogger(s.Log), rateLimited(throttle))
}

// solveRequestBody is the wire shape of a POST /solve body.
type solveRequestBody struct {
	Specs           []string `json:"specs"`
	VirtualPackages []string `json:"virtual_packages"`
	Platform        string   `json:"platform"`
	Channels        []string `json:"channels"`
}

type packageView struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Build       string   `json:"build"`
	BuildNumber int64    `json:"build_number"`
	Subdir      string   `json:"subdir"`
	Depends     []string `json:"depends,omitempty"`
	Channel     string   `json:"channel"`
	URL         string   `json:"url"`
}

type solveResponseBody struct {
	Packages []packageView `json:"packages"`
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if s.Metrics != nil {
		s.Metrics.InFlightStart()
		defer s.Metrics.InFlightEnd()
	}

	var body solveRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &apierrors.Error{Kind: apierrors.Validation, Status: 400, Message: "malformed JSON body: " + err.Error()})
		return
	}

	resp, err := s.Pipeline.Solve(r.Context(), pipeline.Request{
		Specs:           body.Specs,
		VirtualPackages: body.VirtualPackages,
		Platform:        body.Platform,
		Channels:        body.Channels,
	})
	if err != nil {
		writeError(w, apierrors.Map(err))
		return
	}

	packages := make([]packageView, len(resp.Packages))
	for i, r := range resp.Packages {
		packages[i] = packageView{
			Name:        r.Name,
			Version:     r.Version,
			Build:       r.Build,
			BuildNumber: r.BuildNumber,
			Subdir:      r.Subdir,
			Depends:     r.Depends,
			Channel:     r.Channel,
			URL:         r.URL,
		}
	}

	writeJSON(w, http.StatusOK, solveResponseBody{Packages: packages})
}

// handlePurge implements the admin purge endpoint (SPEC_FULL.md §4.5):
// DELETE /cache?pattern=<glob> evicts every cached index whose subdir URL
// matches pattern, or every entry when pattern is absent.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")

	var evicted int
	if pattern == "" {
		evicted = s.IndexCache.ForgetMatching(func(string) bool { return true })
	} else {
		matcher, err := globMatcher(pattern)
		if err != nil {
			writeError(w, &apierrors.Error{Kind: apierrors.Validation, Status: 400, Message: "invalid pattern: " + err.Error()})
			return
		}
		evicted = s.IndexCache.ForgetMatching(matcher)
	}

	writeJSON(w, http.StatusOK, map[string]int{"evicted": evicted})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Metrics.Snapshot())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, apiErr *apierrors.Error) {
	writeJSON(w, apiErr.Status, apiErr)
}
