// Package handler provides the admin HTTP API of the content store.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/prn-tf/contentstore/internal/domain"
	"github.com/prn-tf/contentstore/internal/service"
	"github.com/prn-tf/contentstore/internal/splitter"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ContentLoader streams the bytes of content.
type ContentLoader interface {
	Load(ctx context.Context, content domain.Content) (io.ReadCloser, error)
}

// ContentSplitter splits stored content into row-bounded children.
type ContentSplitter interface {
	SplitContent(ctx context.Context, content domain.Content, params splitter.Params) ([]domain.Content, error)
}

// UsageReporter answers storage accounting queries.
type UsageReporter interface {
	OwnerUsage(ctx context.Context, ownerID uuid.UUID) (service.Usage, error)
	Owners(ctx context.Context) (int64, error)
}

// HealthChecker reports the health of a dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router serves the admin API.
type Router struct {
	loader      ContentLoader
	splitter    ContentSplitter
	usage       UsageReporter
	health      HealthChecker
	metrics     http.Handler
	metricsPath string
	params      splitter.Params
	logger      zerolog.Logger
}

// RouterConfig contains configuration for the router.
// Usage, Health and Metrics are optional.
type RouterConfig struct {
	Loader   ContentLoader
	Splitter ContentSplitter
	Usage    UsageReporter
	Health   HealthChecker
	Metrics  http.Handler

	// MetricsPath is where Metrics is served. Defaults to /metrics.
	MetricsPath string

	// SplitParams are the defaults for split requests.
	SplitParams splitter.Params

	Logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	metricsPath := config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Router{
		loader:      config.Loader,
		splitter:    config.Splitter,
		usage:       config.Usage,
		health:      config.Health,
		metrics:     config.Metrics,
		metricsPath: metricsPath,
		params:      config.SplitParams,
		logger:      config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rt.requestLogger)

	r.Get("/health", rt.handleHealth)
	if rt.metrics != nil {
		r.Method(http.MethodGet, rt.metricsPath, rt.metrics)
	}

	r.Route("/content", func(r chi.Router) {
		r.Post("/load", rt.handleLoad)
		r.Post("/split", rt.handleSplit)
	})

	r.Route("/usage", func(r chi.Router) {
		r.Get("/", rt.handleOwners)
		r.Get("/{ownerID}", rt.handleOwnerUsage)
	})

	return r
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		rt.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.health != nil {
		if err := rt.health.Health(r.Context()); err != nil {
			rt.logger.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleLoad streams the bytes of the Content in the request body.
func (rt *Router) handleLoad(w http.ResponseWriter, r *http.Request) {
	var content domain.Content
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		writeError(w, http.StatusBadRequest, "invalid content: "+err.Error())
		return
	}

	rc, err := rt.loader.Load(r.Context(), content)
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}
	defer rc.Close()

	if content.MediaType != "" {
		w.Header().Set("Content-Type", content.MediaType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(content.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		rt.logger.Warn().Err(err).Str("content", content.Name).Msg("failed to stream content")
	}
}

// handleSplit splits the Content in the request body. Query parameters
// override the configured split defaults.
func (rt *Router) handleSplit(w http.ResponseWriter, r *http.Request) {
	var content domain.Content
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		writeError(w, http.StatusBadRequest, "invalid content: "+err.Error())
		return
	}

	params, err := rt.splitParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	children, err := rt.splitter.SplitContent(r.Context(), content, params)
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func (rt *Router) splitParams(r *http.Request) (splitter.Params, error) {
	q := r.URL.Query()
	opts := []splitter.Option{
		splitter.WithHeaders(rt.params.IncludeHeaders()),
		splitter.WithCommentChars(rt.params.CommentChars()),
		splitter.WithMaxRows(rt.params.MaxRows()),
		splitter.WithMaxSize(rt.params.MaxSize()),
	}

	if v := q.Get("headers"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return splitter.Params{}, errors.New("headers must be a boolean")
		}
		opts = append(opts, splitter.WithHeaders(b))
	}
	if q.Has("comment_chars") {
		opts = append(opts, splitter.WithCommentChars(q.Get("comment_chars")))
	}
	if v := q.Get("max_rows"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return splitter.Params{}, errors.New("max_rows must be an integer")
		}
		opts = append(opts, splitter.WithMaxRows(n))
	}
	if v := q.Get("max_size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return splitter.Params{}, errors.New("max_size must be an integer")
		}
		opts = append(opts, splitter.WithMaxSize(n))
	}

	return splitter.NewParams(opts...)
}

// handleOwners reports how many owners reference stored bytes.
func (rt *Router) handleOwners(w http.ResponseWriter, r *http.Request) {
	if rt.usage == nil {
		writeError(w, http.StatusNotImplemented, "segment index is disabled")
		return
	}
	n, err := rt.usage.Owners(r.Context())
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"owners": n})
}

// handleOwnerUsage reports the storage usage of one owner.
func (rt *Router) handleOwnerUsage(w http.ResponseWriter, r *http.Request) {
	if rt.usage == nil {
		writeError(w, http.StatusNotImplemented, "segment index is disabled")
		return
	}
	ownerID, err := uuid.Parse(chi.URLParam(r, "ownerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner id")
		return
	}

	usage, err := rt.usage.OwnerUsage(r.Context(), ownerID)
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// writeDomainError maps domain errors to HTTP status codes.
func (rt *Router) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrObjectNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrOutOfRange),
		errors.Is(err, domain.ErrInvalidSplitterParams),
		errors.Is(err, domain.ErrLineOverflow),
		errors.Is(err, domain.ErrSegmentOverflow),
		errors.Is(err, domain.ErrHeaderNotFound):
		status = http.StatusUnprocessableEntity
	default:
		rt.logger.Error().Err(err).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
