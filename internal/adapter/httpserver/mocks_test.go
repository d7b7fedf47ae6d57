package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/auth"
	"github.com/svssathvik7/catalog-pollings-backend/internal/app"
	"github.com/svssathvik7/catalog-pollings-backend/internal/broadcast"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/config"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// --- Mock poll service ---

type mockPollService struct {
	createPollFn  func(ctx context.Context, title, ownerID string, optionTexts []string) (string, error)
	getPollFn     func(ctx context.Context, pollID, requesterID string) (domain.PollDetail, bool, error)
	castVoteFn    func(ctx context.Context, pollID, voterID, optionID string) (domain.VoteOutcome, error)
	closePollFn   func(ctx context.Context, pollID, requesterID string) error
	resetPollFn   func(ctx context.Context, pollID, requesterID string) error
	deletePollFn  func(ctx context.Context, pollID, requesterID string) error
	listLiveFn    func(ctx context.Context, page, perPage int) (app.Page, error)
	listClosedFn  func(ctx context.Context, page, perPage int) (app.Page, error)
	listByOwnerFn func(ctx context.Context, ownerID string, sortBy domain.PollSort, ascending bool, page, perPage int) (app.Page, error)
}

func (m *mockPollService) CreatePoll(ctx context.Context, title, ownerID string, optionTexts []string) (string, error) {
	if m.createPollFn != nil {
		return m.createPollFn(ctx, title, ownerID, optionTexts)
	}
	return "poll-1", nil
}

func (m *mockPollService) GetPoll(ctx context.Context, pollID, requesterID string) (domain.PollDetail, bool, error) {
	if m.getPollFn != nil {
		return m.getPollFn(ctx, pollID, requesterID)
	}
	return domain.PollDetail{}, false, domain.ErrPollNotFound
}

func (m *mockPollService) CastVote(ctx context.Context, pollID, voterID, optionID string) (domain.VoteOutcome, error) {
	if m.castVoteFn != nil {
		return m.castVoteFn(ctx, pollID, voterID, optionID)
	}
	return domain.Accepted(), nil
}

func (m *mockPollService) ClosePoll(ctx context.Context, pollID, requesterID string) error {
	if m.closePollFn != nil {
		return m.closePollFn(ctx, pollID, requesterID)
	}
	return nil
}

func (m *mockPollService) ResetPoll(ctx context.Context, pollID, requesterID string) error {
	if m.resetPollFn != nil {
		return m.resetPollFn(ctx, pollID, requesterID)
	}
	return nil
}

func (m *mockPollService) DeletePoll(ctx context.Context, pollID, requesterID string) error {
	if m.deletePollFn != nil {
		return m.deletePollFn(ctx, pollID, requesterID)
	}
	return nil
}

func (m *mockPollService) ListLive(ctx context.Context, page, perPage int) (app.Page, error) {
	if m.listLiveFn != nil {
		return m.listLiveFn(ctx, page, perPage)
	}
	return app.Page{}, nil
}

func (m *mockPollService) ListClosed(ctx context.Context, page, perPage int) (app.Page, error) {
	if m.listClosedFn != nil {
		return m.listClosedFn(ctx, page, perPage)
	}
	return app.Page{}, nil
}

func (m *mockPollService) ListByOwner(ctx context.Context, ownerID string, sortBy domain.PollSort, ascending bool, page, perPage int) (app.Page, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerID, sortBy, ascending, page, perPage)
	}
	return app.Page{}, nil
}

// --- Mock results service ---

type mockResultsService struct {
	getFn func(ctx context.Context, pollID string) (domain.ResultsView, error)
}

func (m *mockResultsService) Get(ctx context.Context, pollID string) (domain.ResultsView, error) {
	if m.getFn != nil {
		return m.getFn(ctx, pollID)
	}
	return domain.ResultsView{}, domain.ErrPollNotFound
}

// --- Test server ---

type testServer struct {
	*Server
	clock  *clockwork.FakeClock
	signer *auth.JWTSigner
	hub    *broadcast.Hub
}

type testServerOption func(*config.Config, *Deps)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(_ *config.Config, d *Deps) {
		d.HealthChecks = checks
	}
}

func withResults(results resultsService) testServerOption {
	return func(_ *config.Config, d *Deps) {
		d.Results = results
	}
}

func withoutDevLogin() testServerOption {
	return func(cfg *config.Config, _ *Deps) {
		cfg.DevLoginEnabled = false
	}
}

func newTestServer(t *testing.T, polls pollService, opts ...testServerOption) *testServer {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	signer := auth.NewJWTSigner(testSecret, time.Hour, clock)
	hub := broadcast.NewHub(broadcast.Options{
		BufferSize:        8,
		KeepAliveInterval: time.Hour,
		MaxSubscribers:    4,
		Clock:             clock,
	})
	t.Cleanup(hub.Stop)

	cfg := &config.Config{
		AppEnv:          "test",
		Port:            "0",
		SessionSecret:   testSecret,
		SessionMaxAge:   time.Hour,
		AllowedOrigins:  "http://localhost:3000",
		DevLoginEnabled: true,
	}
	deps := Deps{
		Polls:      polls,
		Results:    &mockResultsService{},
		Hub:        hub,
		Sessions:   signer,
		Identities: auth.DevVerifier{},
		Clock:      clock,
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	return &testServer{Server: NewServer(cfg, deps), clock: clock, signer: signer, hub: hub}
}

// sessionCookie issues a valid auth cookie for identity.
func (ts *testServer) sessionCookie(t *testing.T, identity string) *http.Cookie {
	t.Helper()
	token, _, err := ts.signer.Issue(identity)
	require.NoError(t, err)
	return &http.Cookie{Name: sessionCookieName, Value: token}
}

// do runs a request through the full middleware chain.
func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

// callHandler runs a handler behind the error middleware, as the router does.
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware()(handler)(c)
}
