// Package backend connects to the native backend process: commands over HTTP
// and event streams over SSE or WebSocket, via a Unix socket or TCP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/version"
)

// unixBaseURL is the dummy host used for requests that go through a Unix socket.
const unixBaseURL = "http://unix"

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 1 << 20

// RemoteClient issues commands and opens SSE streams against the backend.
// It implements gateway.Invoker and channel.Source.
type RemoteClient struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
	socketPath   string
	log          *logrus.Entry
}

// ClientOption configures a RemoteClient.
type ClientOption func(*RemoteClient)

// WithTimeout bounds each command round-trip. Streams are never timed out.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *RemoteClient) { c.httpClient.Timeout = d }
}

func WithLogger(log *logrus.Entry) ClientOption {
	return func(c *RemoteClient) { c.log = log }
}

// NewUnixClient talks to the backend on socketPath.
func NewUnixClient(socketPath string, opts ...ClientOption) *RemoteClient {
	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", socketPath)
	}
	c := newClient(unixBaseURL, dial, opts...)
	c.socketPath = socketPath
	return c
}

// NewHTTPClient talks to the backend at address, either host:port or an
// http(s) URL.
func NewHTTPClient(address string, opts ...ClientOption) (*RemoteClient, error) {
	base, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return newClient(base, nil, opts...), nil
}

func newClient(base string, dial func(ctx context.Context, network, addr string) (net.Conn, error), opts ...ClientOption) *RemoteClient {
	transport := &http.Transport{
		DialContext:     dial,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
	streamTransport := &http.Transport{DialContext: dial}

	c := &RemoteClient{
		httpClient:   &http.Client{Transport: transport, Timeout: 10 * time.Second},
		streamClient: &http.Client{Transport: streamTransport},
		baseURL:      base,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logging.NewLogger("backend")
	}
	return c
}

func normalizeAddress(address string) (string, error) {
	if address == "" {
		return "", errors.InvalidInput("backend.address", "empty")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", errors.Wrap(err, errors.KindInvalidInput, "invalid backend address").
			WithDetail("address", address)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.InvalidInput("backend.address", "scheme must be http or https")
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

// BaseURL returns the HTTP base used for requests.
func (c *RemoteClient) BaseURL() string {
	return c.baseURL
}

// Invoke runs a command. Backend failures come back as *errors.AppError
// decoded from the response body; transport failures are returned as is.
func (c *RemoteClient) Invoke(ctx context.Context, command string, args interface{}) (json.RawMessage, error) {
	body := []byte("null")
	if args != nil {
		var err error
		if body, err = json.Marshal(args); err != nil {
			return nil, errors.Wrap(err, errors.KindInvalidInput, "failed to encode arguments").
				WithDetail("command", command)
		}
	}

	endpoint := c.baseURL + "/api/commands/" + url.PathEscape(command)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", command, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		appErr := errors.FromPayload(data)
		if appErr.Kind == errors.KindUnknown && len(bytes.TrimSpace(data)) == 0 {
			appErr.Message = fmt.Sprintf("backend returned status %d", resp.StatusCode)
		}
		return nil, appErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("command %s: read response: %w", command, err)
	}
	return json.RawMessage(data), nil
}

// IsRunning reports whether the backend answers its health check.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	c.streamClient.CloseIdleConnections()
	return nil
}
