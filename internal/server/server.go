// Package server exposes the conversion service over HTTP.
package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ytconvert/internal/convert"
	"ytconvert/internal/store"
)

// History is the download log backing /history. *store.History satisfies it.
type History interface {
	Add(e *store.Entry) error
	List(limit int) ([]store.Entry, error)
	Delete(id string) error
	Count() (int, error)
}

type Options struct {
	// ToolPath is probed by /health.
	ToolPath string
	// TempRoot is where work areas live; the janitor sweeps it.
	TempRoot           string
	WorkAreaExpiration time.Duration
	JanitorInterval    time.Duration
	HealthInterval     time.Duration

	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int

	// History is optional.
	History History
}

type counters struct {
	metadataRequests   atomic.Int64
	metadataFailed     atomic.Int64
	activeDownloads    atomic.Int64
	completedDownloads atomic.Int64
	failedDownloads    atomic.Int64
	bytesServed        atomic.Int64
	rateLimited        atomic.Int64
}

type Server struct {
	svc       *convert.Service
	opts      Options
	limiter   *rate.Limiter
	log       *zap.Logger
	stats     counters
	startedAt time.Time
}

func New(svc *convert.Service, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Server{
		svc:       svc,
		opts:      opts,
		limiter:   rate.NewLimiter(limit, opts.Burst),
		log:       logger.Named("server"),
		startedAt: time.Now(),
	}
}

// Handler returns the routed handler with CORS, rate limiting and request
// logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /metadata", s.handleMetadata)
	mux.HandleFunc("GET /download-single", s.handleDownloadSingle)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("DELETE /history/{id}", s.handleDeleteHistory)

	var h http.Handler = mux
	h = s.rateLimitMiddleware(h)
	h = corsMiddleware(h)
	h = s.requestLogMiddleware(h)
	return h
}
