package httpserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/version"
	"golang.org/x/sync/errgroup"
)

// HealthCheck is a named dependency probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.probe(2*time.Second))
	s.echo.GET("/health/ready", s.probe(5*time.Second))
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, version.Get())
	})
	if s.metricsPage != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsPage))
	}
}

// probe runs every health check in parallel under timeout and answers 503 if any fails.
func (s *Server) probe(timeout time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		report := s.checkDependencies(ctx)
		code := http.StatusOK
		if report.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, report)
	}
}

func (s *Server) checkDependencies(ctx context.Context) probeReport {
	report := probeReport{Status: "ready"}
	if len(s.healthChecks) == 0 {
		return report
	}

	var mu sync.Mutex
	report.Checks = make(map[string]string, len(s.healthChecks))
	var g errgroup.Group
	for _, hc := range s.healthChecks {
		g.Go(func() error {
			result := "ok"
			if err := hc.Check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			report.Checks[hc.Name] = result
			if result != "ok" {
				report.Status = "unhealthy"
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(s.clock.Since(s.startTime).Seconds()),
	})
}
