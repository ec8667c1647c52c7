// Package httpapi serves searches over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"semsearch/internal/domain"
)

// Searcher answers ranked, projected searches.
type Searcher interface {
	Search(ctx context.Context, query string, k int, fields []string) ([]domain.Result, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Addr string
	// DefaultK and DefaultFields apply when a request omits k or output_keys.
	DefaultK      int
	DefaultFields []string
}

// Server provides HTTP endpoints for semantic search.
type Server struct {
	echo     *echo.Echo
	searcher Searcher
	logger   *zap.Logger
	config   Config
}

// NewServer creates a new HTTP server.
func NewServer(searcher Searcher, logger *zap.Logger, cfg Config) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("searcher cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 5
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{echo: e, searcher: searcher, logger: logger, config: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/search", s.handleSearch)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// SearchRequest is the request body for POST /search.
// A missing k or output_keys falls back to the server defaults; an empty
// output_keys list returns results without fields.
type SearchRequest struct {
	Query      string   `json:"query"`
	K          *int     `json:"k,omitempty"`
	OutputKeys []string `json:"output_keys,omitempty"`
}

// SearchResponse is the response body for POST /search.
type SearchResponse struct {
	Results []domain.Result `json:"results"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	k := s.config.DefaultK
	if req.K != nil {
		k = *req.K
	}
	fields := req.OutputKeys
	if fields == nil {
		fields = s.config.DefaultFields
	}

	results, err := s.searcher.Search(c.Request().Context(), req.Query, k, fields)
	if err != nil {
		return s.searchError(err)
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: results})
}

func (s *Server) searchError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrInvalidLimit),
		errors.Is(err, domain.ErrUnknownField):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmbeddingMismatch):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search cancelled")
	default:
		s.logger.Error("search failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
