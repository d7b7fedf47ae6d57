// Package httpserver exposes the poll engine, result reads and live streams over HTTP.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
	"github.com/svssathvik7/catalog-pollings-backend/internal/app"
	"github.com/svssathvik7/catalog-pollings-backend/internal/broadcast"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/config"
)

type pollService interface {
	CreatePoll(ctx context.Context, title, ownerID string, optionTexts []string) (string, error)
	GetPoll(ctx context.Context, pollID, requesterID string) (domain.PollDetail, bool, error)
	CastVote(ctx context.Context, pollID, voterID, optionID string) (domain.VoteOutcome, error)
	ClosePoll(ctx context.Context, pollID, requesterID string) error
	ResetPoll(ctx context.Context, pollID, requesterID string) error
	DeletePoll(ctx context.Context, pollID, requesterID string) error
	ListLive(ctx context.Context, page, perPage int) (app.Page, error)
	ListClosed(ctx context.Context, page, perPage int) (app.Page, error)
	ListByOwner(ctx context.Context, ownerID string, sortBy domain.PollSort, ascending bool, page, perPage int) (app.Page, error)
}

type resultsService interface {
	Get(ctx context.Context, pollID string) (domain.ResultsView, error)
}

type subscriber interface {
	Subscribe(opts ...broadcast.SubscribeOption) (*broadcast.Subscription, error)
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Polls        pollService
	Results      resultsService
	Hub          subscriber
	Sessions     domain.SessionSigner
	Identities   domain.IdentityVerifier
	Metrics      *metrics.HTTPMetrics
	MetricsPage  http.Handler
	HealthChecks []HealthCheck
	Clock        clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	polls      pollService
	results    resultsService
	hub        subscriber
	sessions   domain.SessionSigner
	identities domain.IdentityVerifier
	upgrader   *websocket.Upgrader

	metrics      *metrics.HTTPMetrics
	metricsPage  http.Handler
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		polls:        deps.Polls,
		results:      deps.Results,
		hub:          deps.Hub,
		sessions:     deps.Sessions,
		identities:   deps.Identities,
		upgrader:     newUpgrader(cfg),
		metrics:      deps.Metrics,
		metricsPage:  deps.MetricsPage,
		healthChecks: deps.HealthChecks,
		clock:        deps.Clock,
		startTime:    deps.Clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets tests drive the full middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
