package backend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/version"
)

// Open subscribes to stream over Server-Sent Events. Each SSE event (one or
// more data lines) becomes one frame. The channel closes when ctx is done or
// the backend ends the stream.
func (c *RemoteClient) Open(ctx context.Context, stream string) (<-chan []byte, error) {
	endpoint := c.baseURL + "/api/events/" + url.PathEscape(stream)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream %s: %w", stream, err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		if len(data) > 0 {
			return nil, errors.FromPayload(data).WithDetail("stream", stream)
		}
		return nil, fmt.Errorf("stream %s returned status %d", stream, resp.StatusCode)
	}

	frames := make(chan []byte, 16)
	go func() {
		defer close(frames)
		defer resp.Body.Close()

		// Unblock the scanner when the subscriber goes away.
		stop := context.AfterFunc(ctx, func() { resp.Body.Close() })
		defer stop()

		err := readSSE(resp.Body, func(frame []byte) bool {
			select {
			case frames <- frame:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			c.log.WithError(err).WithField("stream", stream).Warn("Event stream interrupted")
		}
	}()

	return frames, nil
}

// readSSE parses an event stream and calls emit with the joined data lines of
// each event. It stops when emit returns false or the stream ends.
func readSSE(r io.Reader, emit func([]byte) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var data []string
	flush := func() bool {
		if len(data) == 0 {
			return true
		}
		frame := []byte(strings.Join(data, "\n"))
		data = data[:0]
		return emit(frame)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !flush() {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			data = append(data, strings.TrimPrefix(value, " "))
		}
	}
	// An event without its terminating blank line is incomplete and dropped.
	return scanner.Err()
}
