package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtr002/bansu-harness/internal/jobs"
)

func serveUpdates(t *testing.T, messages []string, hold bool) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		updates := make(chan []byte, len(messages))
		for _, m := range messages {
			updates <- []byte(m)
		}
		if !hold {
			close(updates)
		}
		HandleJobChannel(w, r, updates)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/job"
}

func TestSourceReadsUntilClosed(t *testing.T) {
	server := serveUpdates(t, []string{`{"status":"Running"}`, `{"status":"Finished"}`}, false)
	src := NewSource(wsURL(server), nil)
	ctx := context.Background()

	require.NoError(t, src.Open(ctx))
	defer src.Close()

	msg, err := src.Next(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Running"}`, string(msg))

	msg, err = src.Next(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Finished"}`, string(msg))

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, jobs.ErrChannelClosed)
}

func TestSourceNextHonoursContext(t *testing.T) {
	server := serveUpdates(t, nil, true)
	src := NewSource(wsURL(server), nil)
	require.NoError(t, src.Open(context.Background()))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSourceOpenRejected(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	src := NewSource(wsURL(server), nil)

	err := src.Open(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestSourceNextBeforeOpen(t *testing.T) {
	_, err := NewSource("ws://localhost:1/ws/job", nil).Next(context.Background())
	assert.Error(t, err)
}

func TestCloseWithoutOpen(t *testing.T) {
	assert.NoError(t, NewSource("ws://localhost:1/ws/job", nil).Close())
}
