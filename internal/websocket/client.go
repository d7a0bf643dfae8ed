package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/mtr002/bansu-harness/internal/jobs"
)

const (
	handshakeTimeout = 45 * time.Second
	writeWait        = 10 * time.Second
)

// Source is a receive-only job channel backed by a WebSocket connection
type Source struct {
	url    string
	header http.Header
	dialer *gws.Dialer
	conn   *gws.Conn
}

// NewSource creates a source for the given ws:// or wss:// URL
func NewSource(url string, header http.Header) *Source {
	return &Source{
		url:    url,
		header: header,
		dialer: &gws.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// URL returns the address the source dials
func (s *Source) URL() string {
	return s.url
}

// Open performs the WebSocket handshake
func (s *Source) Open(ctx context.Context) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket handshake with %s failed with status %d: %w", s.url, resp.StatusCode, err)
		}
		return fmt.Errorf("failed to dial %s: %w", s.url, err)
	}
	s.conn = conn
	return nil
}

// Next blocks until the next data message arrives. An orderly close from
// the server is reported as jobs.ErrChannelClosed. Cancelling ctx tears
// the connection down.
func (s *Source) Next(ctx context.Context) ([]byte, error) {
	if s.conn == nil {
		return nil, errors.New("websocket source is not open")
	}

	conn := s.conn
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway, gws.CloseNoStatusReceived) {
			return nil, jobs.ErrChannelClosed
		}
		return nil, err
	}
	return data, nil
}

// Close sends a close frame and releases the connection
func (s *Source) Close() error {
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil

	msg := gws.FormatCloseMessage(gws.CloseNormalClosure, "")
	_ = conn.WriteControl(gws.CloseMessage, msg, time.Now().Add(writeWait))
	return conn.Close()
}
