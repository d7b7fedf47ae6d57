package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", sessionCookieName)
	return nil
}

func TestLogin_IssuesSessionCookie(t *testing.T) {
	srv := newTestServer(t, &mockPollService{})

	rec := srv.do(jsonRequest(http.MethodPost, "/api/auth/login", `{"username":"  Alice "}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)

	cookie := findCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)

	identity, err := srv.signer.Validate(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)
}

func TestLogin_RejectsBadUsername(t *testing.T) {
	srv := newTestServer(t, &mockPollService{})

	rec := srv.do(jsonRequest(http.MethodPost, "/api/auth/login", `{"username":"a b"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_DisabledWithoutDevLogin(t *testing.T) {
	srv := newTestServer(t, &mockPollService{}, withoutDevLogin())

	rec := srv.do(jsonRequest(http.MethodPost, "/api/auth/login", `{"username":"alice"}`))

	assert.NotEqual(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogout_ClearsCookie(t *testing.T) {
	srv := newTestServer(t, &mockPollService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(srv.sessionCookie(t, "alice"))
	rec := srv.do(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	cookie := findCookie(t, rec)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestMe(t *testing.T) {
	srv := newTestServer(t, &mockPollService{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(srv.sessionCookie(t, "alice"))
	rec := srv.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"alice"}`, rec.Body.String())
}

func TestMe_ExpiredSession(t *testing.T) {
	srv := newTestServer(t, &mockPollService{})
	cookie := srv.sessionCookie(t, "alice")
	srv.clock.Advance(2 * time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	rec := srv.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Negative(t, findCookie(t, rec).MaxAge)
}
