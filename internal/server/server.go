package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spacesedan/bluesense/internal/analysis"
	"github.com/spacesedan/bluesense/internal/clients"
	"github.com/spacesedan/bluesense/internal/dashboard"
	"github.com/spacesedan/bluesense/internal/models"
	"github.com/spacesedan/bluesense/internal/processing"
)

// Analyzer is satisfied by *processing.Pipeline.
type Analyzer interface {
	Run(ctx context.Context, topic string) (*models.AnalysisSet, error)
	Options() analysis.Options
}

// ScorerStatus describes the scoring backend for /health and the page header.
type ScorerStatus struct {
	Provider string
	Degraded bool
	// Healthy is updated by the background health monitor. Nil means
	// the scorer is not monitored.
	Healthy *atomic.Bool
}

type Server struct {
	analyzer       Analyzer
	renderer       *dashboard.Renderer
	scorer         ScorerStatus
	requestTimeout time.Duration
	engine         *gin.Engine
}

func New(analyzer Analyzer, scorer ScorerStatus, requestTimeout time.Duration) (*Server, error) {
	renderer, err := dashboard.NewRenderer()
	if err != nil {
		return nil, err
	}
	if requestTimeout <= 0 {
		requestTimeout = time.Minute
	}

	s := &Server{
		analyzer:       analyzer,
		renderer:       renderer,
		scorer:         scorer,
		requestTimeout: requestTimeout,
		engine:         gin.New(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.Use(Recovery(), RequestLogging())

	s.engine.StaticFS("/static", dashboard.StaticFS())

	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/analyze", s.handleAnalyze)
	s.engine.GET("/api/analysis", s.handleAPIAnalysis)
	s.engine.GET("/health", s.handleHealth)
}

func (s *Server) handleIndex(c *gin.Context) {
	s.render(c, http.StatusOK, dashboard.PAGE_INDEX, dashboard.PageData{})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	topic := c.Query("topic")

	set, err := s.run(c, topic)
	if errors.Is(err, clients.ErrEmptyTopic) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	if err != nil {
		status, page := errorPage(err)
		setRetryAfter(c, err)
		s.render(c, status, dashboard.PAGE_ERROR, dashboard.PageData{Topic: topic, Error: &page})
		return
	}

	view := dashboard.BuildView(set, s.analyzer.Options())
	s.render(c, http.StatusOK, dashboard.PAGE_DASHBOARD, dashboard.PageData{Topic: set.Topic, View: &view})
}

func (s *Server) handleAPIAnalysis(c *gin.Context) {
	set, err := s.run(c, c.Query("topic"))
	if err != nil {
		status, page := errorPage(err)
		setRetryAfter(c, err)
		c.JSON(status, gin.H{"error": page.Message})
		return
	}

	c.JSON(http.StatusOK, models.AnalysisReport{
		Analysis:   set,
		Aggregates: analysis.Summarize(set, s.analyzer.Options()),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	body := gin.H{
		"scorer":   s.scorer.Provider,
		"degraded": s.scorer.Degraded,
	}
	if s.scorer.Healthy != nil {
		healthy := s.scorer.Healthy.Load()
		body["scorer_healthy"] = healthy
		if !healthy {
			status = "degraded"
		}
	}
	if s.scorer.Degraded {
		status = "degraded"
	}
	body["status"] = status

	c.JSON(http.StatusOK, body)
}

func (s *Server) run(c *gin.Context, topic string) (*models.AnalysisSet, error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.requestTimeout)
	defer cancel()
	return s.analyzer.Run(ctx, topic)
}

func (s *Server) render(c *gin.Context, status int, page string, data dashboard.PageData) {
	data.ScorerState = s.scorerState()

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Render(c.Writer, page, data); err != nil {
		c.String(http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) scorerState() string {
	state := s.scorer.Provider
	if s.scorer.Degraded {
		state += " (local fallback)"
	}
	if s.scorer.Healthy != nil && !s.scorer.Healthy.Load() {
		state += ", currently failing health checks"
	}
	return state
}

// errorPage maps a pipeline error to a status code and user-facing copy.
func errorPage(err error) (int, dashboard.ErrorPage) {
	var (
		authErr      *clients.AuthError
		rateLimitErr *clients.RateLimitError
	)

	switch {
	case errors.Is(err, clients.ErrEmptyTopic):
		return http.StatusBadRequest, dashboard.ErrorPage{
			Title:   "Missing topic",
			Message: "Enter a keyword to search for.",
		}
	case errors.As(err, &rateLimitErr):
		message := "Bluesky is rate limiting requests right now. Please try again later."
		if rateLimitErr.RetryAfter > 0 {
			message = fmt.Sprintf("Bluesky is rate limiting requests right now. Please try again in %s.", rateLimitErr.RetryAfter.Round(time.Second))
		}
		return http.StatusTooManyRequests, dashboard.ErrorPage{
			Title:   "Too many requests",
			Message: message,
			Hint:    "Logging in with `BSKY_USERNAME` and `BSKY_PASSWORD` raises the limits.",
		}
	case errors.As(err, &authErr):
		return http.StatusBadGateway, dashboard.ErrorPage{
			Title:   "Bluesky login failed",
			Message: authErr.Error(),
			Hint:    "Check `BSKY_USERNAME` and `BSKY_PASSWORD`, or enable `fallback_unauthenticated` to search without logging in.",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, dashboard.ErrorPage{
			Title:   "Search timed out",
			Message: "Bluesky did not answer in time. Please try again.",
		}
	default:
		if !errors.Is(err, processing.ErrUnexpected) {
			slog.Error("[Server] Analysis failed", slog.String("error", err.Error()))
		}
		return http.StatusInternalServerError, dashboard.ErrorPage{
			Title:   "Something went wrong",
			Message: processing.ErrUnexpected.Error(),
		}
	}
}

func setRetryAfter(c *gin.Context, err error) {
	var rateLimitErr *clients.RateLimitError
	if errors.As(err, &rateLimitErr) && rateLimitErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(rateLimitErr.RetryAfter.Round(time.Second).Seconds())))
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("[Server] Listening", slog.String("addr", "http://localhost"+srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("[Server] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
