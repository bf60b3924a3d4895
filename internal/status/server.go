// Package status serves the HTTP status surface: prometheus metrics, the
// current switch state with recent readings, and a liveness probe.
package status

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/vueswitch/internal/models"
)

const shutdownTimeout = 5 * time.Second

type StateReader interface {
	On() bool
}

type ReadingHistory interface {
	Readings() []models.Reading
	Latest() (models.Reading, bool)
}

// PollHealth reports whether the last poll succeeded.
type PollHealth interface {
	Serving() bool
}

type Options struct {
	Port           int
	ChannelName    string
	ThresholdWatts float64
	Gatherer       prometheus.Gatherer
	State          StateReader
	History        ReadingHistory
	Health         PollHealth
}

// Status is the /status response body.
type Status struct {
	Channel        string           `json:"channel"`
	ThresholdWatts float64          `json:"threshold_watts"`
	On             bool             `json:"on"`
	PollHealthy    bool             `json:"poll_healthy"`
	Latest         *models.Reading  `json:"latest,omitempty"`
	Readings       []models.Reading `json:"readings"`
}

type Server struct {
	opts   Options
	router *gin.Engine
	logger *logrus.Logger
}

func NewServer(opts Options, logger *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{opts: opts, router: gin.New(), logger: logger}
	s.router.Use(gin.Recovery())

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/healthz", s.handleHealth)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleStatus(c *gin.Context) {
	status := Status{
		Channel:        s.opts.ChannelName,
		ThresholdWatts: s.opts.ThresholdWatts,
		On:             s.opts.State.On(),
		PollHealthy:    s.opts.Health.Serving(),
		Readings:       s.opts.History.Readings(),
	}
	if latest, ok := s.opts.History.Latest(); ok {
		status.Latest = &latest
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"poll_healthy": s.opts.Health.Serving(),
	})
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("port", s.opts.Port).Info("Starting status server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	return nil
}
