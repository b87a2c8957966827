package backend

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/scribe/logging"
)

// WebSocketSource opens event streams as WebSocket connections to
// /api/ws/{stream}. Every text or binary message is one frame.
type WebSocketSource struct {
	dialer  *websocket.Dialer
	baseURL string
	log     *logrus.Entry
}

// NewWebSocketSource streams from an http(s) or ws(s) base URL, or host:port.
func NewWebSocketSource(address string) (*WebSocketSource, error) {
	base, err := normalizeAddress(strings.Replace(strings.Replace(address, "wss://", "https://", 1), "ws://", "http://", 1))
	if err != nil {
		return nil, err
	}
	base = "ws" + strings.TrimPrefix(base, "http")
	return &WebSocketSource{
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		baseURL: base,
		log:     logging.NewLogger("backend"),
	}, nil
}

// NewUnixWebSocketSource streams over the backend's Unix socket.
func NewUnixWebSocketSource(socketPath string) *WebSocketSource {
	return &WebSocketSource{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
		baseURL: "ws://unix",
		log:     logging.NewLogger("backend"),
	}
}

// Open dials the stream. The returned channel closes when ctx is done or the
// connection ends.
func (s *WebSocketSource) Open(ctx context.Context, stream string) (<-chan []byte, error) {
	endpoint := s.baseURL + "/api/ws/" + url.PathEscape(stream)
	conn, resp, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open websocket %s (status %d): %w", stream, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to open websocket %s: %w", stream, err)
	}
	if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return nil, fmt.Errorf("websocket %s returned status %d", stream, resp.StatusCode)
	}

	frames := make(chan []byte, 16)
	go func() {
		defer close(frames)
		defer conn.Close()

		stop := context.AfterFunc(ctx, func() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		})
		defer stop()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.WithError(err).WithField("stream", stream).Warn("Websocket stream interrupted")
				}
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	return frames, nil
}
