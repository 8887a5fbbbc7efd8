// Package status serves a read-only view of the station: source states,
// buffer depths, recent log lines and Prometheus metrics. Nothing served
// here can influence polling or reporting.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Guliveer/aerostat/internal/config"
	"github.com/Guliveer/aerostat/internal/source"
)

const (
	defaultLogLimit = 100
	shutdownTimeout = 5 * time.Second
)

// SourceLister reports the state of the station's sources.
type SourceLister interface {
	Snapshot() []source.Status
	Describe(name string) (source.Status, bool)
}

// Server is the status HTTP server.
type Server struct {
	httpServer *http.Server
	sources    SourceLister
	recorder   *Recorder
	limiter    *rate.Limiter
	logger     *zap.Logger
	runID      string
	version    string
	started    time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithRunID sets the run identifier shown on the page.
func WithRunID(id string) Option {
	return func(s *Server) { s.runID = id }
}

// WithVersion sets the version shown on the page.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates the server. recorder may be nil, in which case the
// log endpoints return nothing.
func NewServer(cfg config.StatusConfig, sources SourceLister, recorder *Recorder, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	s := &Server{
		sources:  sources,
		recorder: recorder,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		logger:   logger,
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.rateLimited(s.handleIndex))
	mux.HandleFunc("GET /api/sources", s.rateLimited(s.handleSources))
	mux.HandleFunc("GET /api/sources/{name}", s.rateLimited(s.handleSource))
	mux.HandleFunc("GET /api/logs", s.rateLimited(s.handleLogs))
	mux.Handle("GET /metrics", s.rateLimited(promhttp.Handler().ServeHTTP))
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Status server listening", zap.String("address", s.httpServer.Addr))

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown stops the server, waiting briefly for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down status server")
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

type healthResponse struct {
	Status  string    `json:"status"`
	RunID   string    `json:"run_id,omitempty"`
	Version string    `json:"version,omitempty"`
	Started time.Time `json:"started"`
	Ready   int       `json:"ready_sources"`
	Total   int       `json:"total_sources"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		RunID:   s.runID,
		Version: s.version,
		Started: s.started,
	}
	for _, st := range s.sources.Snapshot() {
		resp.Total++
		if st.State == source.Ready.String() {
			resp.Ready++
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.sources.Snapshot())
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sources.Describe(r.PathValue("name"))
	if !ok {
		http.Error(w, "unknown source", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	respondJSON(w, http.StatusOK, s.logs(limit))
}

func (s *Server) logs(limit int) []Entry {
	if s.recorder == nil {
		return []Entry{}
	}
	return s.recorder.Tail(limit)
}

type indexData struct {
	RunID   string
	Version string
	Uptime  time.Duration
	Sources []source.Status
	Logs    []Entry
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data := indexData{
		RunID:   s.runID,
		Version: s.version,
		Uptime:  time.Since(s.started).Truncate(time.Second),
		Sources: s.sources.Snapshot(),
		Logs:    s.logs(defaultLogLimit),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Warn("Failed to render status page", zap.Error(err))
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>aerostat</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { padding: 0.2em 0.8em; text-align: left; }
.failed { color: #b00; }
.ready { color: #070; }
pre { background: #f4f4f4; padding: 1em; overflow-x: auto; }
</style>
</head>
<body>
<h1>aerostat</h1>
<p>version {{.Version}} &middot; run {{.RunID}} &middot; up {{.Uptime}}</p>
<h2>Sources</h2>
<table>
<tr><th>Name</th><th>State</th><th>Shape</th><th>Pending</th><th>Polling</th></tr>
{{range .Sources}}<tr><td>{{.Name}}</td><td class="{{.State}}">{{.State}}</td><td>{{.Shape}}</td><td>{{.Pending}}</td><td>{{.Running}}</td></tr>
{{end}}</table>
<h2>Recent log</h2>
<pre>{{range .Logs}}{{.Time.Format "15:04:05"}} {{.Level}} {{.Message}}{{range $k, $v := .Fields}} {{$k}}={{$v}}{{end}}
{{end}}</pre>
</body>
</html>
`))
