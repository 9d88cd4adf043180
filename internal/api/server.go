// Package api provides the read-only REST API over harvested news plus the
// on-demand sweep trigger.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/news"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/pipeline"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/store"
)

// Reader is the query surface the API serves from.
type Reader interface {
	List(ctx context.Context, q store.Query) (*store.Page, error)
	Get(ctx context.Context, id int64) (*news.Item, error)
	Search(ctx context.Context, keyword string, page, limit int) (*store.Page, error)
	Distinct(ctx context.Context, field store.Field) ([]store.ValueCount, error)
	Related(ctx context.Context, baseID int64, mode store.RelatedMode, limit int) ([]news.Item, error)
	Count(ctx context.Context, f store.Filter) (int, error)
}

// Sweeper runs harvest sweeps on demand.
type Sweeper interface {
	RunFullSweep(ctx context.Context) *pipeline.SweepReport
	RunSweepForCategory(ctx context.Context, category string) (*pipeline.SweepReport, error)
}

// Server holds the dependencies for the API.
type Server struct {
	reader  Reader
	sweeper Sweeper
	metrics http.Handler
	logger  *zap.Logger
	secret  []byte

	// base is the parent context of manual sweeps; cancelling it stops them.
	base     context.Context
	sweeping atomic.Bool
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithSweeper enables POST /api/scrape.
func WithSweeper(s Sweeper) Option {
	return func(srv *Server) { srv.sweeper = s }
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(srv *Server) { srv.metrics = h }
}

// WithAuthSecret requires a bearer token signed with secret on
// POST /api/scrape. An empty secret leaves the route open.
func WithAuthSecret(secret string) Option {
	return func(srv *Server) { srv.secret = []byte(secret) }
}

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(srv *Server) {
		if logger != nil {
			srv.logger = logger
		}
	}
}

// WithBaseContext sets the context manual sweeps derive from.
func WithBaseContext(ctx context.Context) Option {
	return func(srv *Server) { srv.base = ctx }
}

// NewServer creates a new API Server instance.
func NewServer(reader Reader, opts ...Option) *Server {
	s := &Server{reader: reader, logger: zap.NewNop(), base: context.Background()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler (ServeMux) for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth())

	mux.HandleFunc("GET /api/noticias", s.handleList())
	mux.HandleFunc("GET /api/noticias/buscar", s.handleSearch())
	mux.HandleFunc("GET /api/noticias/{id}", s.handleGet())
	mux.HandleFunc("GET /api/noticias/{id}/relacionadas", s.handleRelated())
	mux.HandleFunc("GET /api/meta", s.handleMeta())

	if s.sweeper != nil {
		mux.Handle("POST /api/scrape", s.requireOperator(s.handleScrape()))
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.logRequests(mux)
}

// Wait blocks until manual sweeps started by the server have returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// --- Helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
