package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	apperrors "github.com/svssathvik7/catalog-pollings-backend/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func limitedRequest(t *testing.T, handler echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	handler := routeLimit{perSecond: 10, burst: 3}.middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for range 3 {
		rec := limitedRequest(t, handler, testRemoteAddr)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	handler := routeLimit{perSecond: 0.01, burst: 1}.middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, testRemoteAddr).Code)

	rec := limitedRequest(t, handler, testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("Retry-After"))

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp.Error)
	assert.Equal(t, apperrors.TypeRateLimited, resp.Type)
}

func TestRateLimiterDifferentIPsAreIndependent(t *testing.T) {
	handler := routeLimit{perSecond: 0.01, burst: 1}.middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, testRemoteAddr).Code)
	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, "5.6.7.8:5678").Code)
	assert.Equal(t, http.StatusTooManyRequests, limitedRequest(t, handler, testRemoteAddr).Code)
}

func TestVoteRouteIsRateLimited(t *testing.T) {
	srv := newTestServer(t, &mockPollService{})
	cookie := srv.sessionCookie(t, "alice")

	var last int
	for range voteLimit.burst + 1 {
		req := httptest.NewRequest(http.MethodPost, "/api/polls/p1/vote", strings.NewReader(`{"option_id":"o1"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.RemoteAddr = testRemoteAddr
		req.AddCookie(cookie)
		last = srv.do(req).Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRateLimiterKeysByUserWhenSignedIn(t *testing.T) {
	handler := routeLimit{perSecond: 0.01, burst: 1}.middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	asUser := func(id string) *httptest.ResponseRecorder {
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.RemoteAddr = testRemoteAddr
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(userIDKey, id)
		require.NoError(t, handler(c))
		return rec
	}

	assert.Equal(t, http.StatusOK, asUser("alice").Code)
	assert.Equal(t, http.StatusOK, asUser("bob").Code)
	assert.Equal(t, http.StatusTooManyRequests, asUser("alice").Code)
}

func TestRouteLimitRetryAfter(t *testing.T) {
	assert.Equal(t, "1", voteLimit.retryAfter())
	assert.Equal(t, "1", createLimit.retryAfter())
	assert.Equal(t, "4", routeLimit{perSecond: 0.25}.retryAfter())
	assert.Equal(t, "60", routeLimit{}.retryAfter())
}
