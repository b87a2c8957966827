package backend

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"time"

	"github.com/grovetools/scribe/config"
	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/pkg/channel"
	"github.com/grovetools/scribe/pkg/gateway"
)

// Conn bundles the command invoker and the event source for one backend.
type Conn struct {
	Client *RemoteClient
	Source channel.Source
}

var (
	_ gateway.Invoker = (*RemoteClient)(nil)
	_ channel.Source  = (*RemoteClient)(nil)
	_ channel.Source  = (*WebSocketSource)(nil)
	_ gateway.Invoker = (*Conn)(nil)
)

// Invoke forwards to the command client.
func (c *Conn) Invoke(ctx context.Context, command string, args interface{}) (json.RawMessage, error) {
	return c.Client.Invoke(ctx, command, args)
}

// Close releases the client's connections.
func (c *Conn) Close() error {
	return c.Client.Close()
}

// Connect picks the backend endpoint from cfg. The Unix socket is used when
// it exists and accepts a connection; otherwise the TCP address, if any.
func Connect(ctx context.Context, cfg config.BackendConfig) (*Conn, error) {
	log := logging.NewLogger("backend")
	opts := []ClientOption{WithTimeout(cfg.Timeout)}

	if cfg.Socket != "" && socketReachable(ctx, cfg.Socket) {
		log.WithField("socket", cfg.Socket).Debug("Using backend socket")
		client := NewUnixClient(cfg.Socket, opts...)
		conn := &Conn{Client: client, Source: client}
		if cfg.Transport == config.TransportWebSocket {
			conn.Source = NewUnixWebSocketSource(cfg.Socket)
		}
		return conn, nil
	}

	if cfg.Address != "" {
		log.WithField("address", cfg.Address).Debug("Using backend address")
		client, err := NewHTTPClient(cfg.Address, opts...)
		if err != nil {
			return nil, err
		}
		conn := &Conn{Client: client, Source: client}
		if cfg.Transport == config.TransportWebSocket {
			ws, err := NewWebSocketSource(client.BaseURL())
			if err != nil {
				return nil, err
			}
			conn.Source = ws
		}
		return conn, nil
	}

	return nil, errors.New(errors.KindNetworkError, "backend is not reachable").
		WithDetail("socket", cfg.Socket)
}

func socketReachable(ctx context.Context, path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	d := net.Dialer{Timeout: 200 * time.Millisecond}
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
