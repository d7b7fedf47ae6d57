package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readEvent reads one SSE event block.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			return b.String()
		}
		b.WriteString(line)
	}
}

func TestSSE_StreamsPollResults(t *testing.T) {
	srv := newTestServer(t, &mockPollService{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/sse?poll=p1", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	assert.Equal(t, "data: connected\n", readEvent(t, r))

	srv.hub.Publish(domain.ResultsView{PollID: "other", Title: "ignored"})
	srv.hub.Publish(domain.ResultsView{PollID: "p1", Title: "Lunch?", TotalVotes: 1})

	event := readEvent(t, r)
	assert.True(t, strings.HasPrefix(event, "event: poll_results\ndata: "), event)
	assert.Contains(t, event, `"title":"Lunch?"`)
	assert.NotContains(t, event, "ignored")

	srv.hub.PublishDeleted("p1")
	assert.True(t, strings.HasPrefix(readEvent(t, r), "event: poll_deleted\n"))
}

func TestSSE_HubFull(t *testing.T) {
	srv := newTestServer(t, &mockPollService{})
	for range 4 {
		sub, err := srv.hub.Subscribe()
		require.NoError(t, err)
		t.Cleanup(sub.Close)
	}

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/sse?poll=p1", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebSocket_StreamsPollResults(t *testing.T) {
	srv := newTestServer(t, &mockPollService{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws?poll=p1", header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	srv.hub.Publish(domain.ResultsView{PollID: "p1", Title: "Lunch?", TotalVotes: 2})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Event string             `json:"event"`
		Data  domain.ResultsView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "poll_results", msg.Event)
	assert.Equal(t, int64(2), msg.Data.TotalVotes)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t, &mockPollService{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", header)
	require.Error(t, err)
	if resp != nil {
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
	assert.Eventually(t, func() bool { return srv.hub.Len() == 0 }, time.Second, 10*time.Millisecond)
}
