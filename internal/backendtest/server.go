// Package backendtest runs an in-process stand-in for the native backend:
// named commands over HTTP, event streams over SSE and WebSocket.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/grovetools/scribe/errors"
)

// CommandFunc handles one command. args is the raw JSON body ("null" when the
// caller sent no arguments).
type CommandFunc func(args json.RawMessage) (interface{}, *errors.AppError)

// Call records one received command.
type Call struct {
	Command string
	Args    json.RawMessage
}

// Server is a fake backend. It is safe for concurrent use.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	commands map[string]CommandFunc
	calls    []Call
	streams  map[string]map[chan []byte]struct{}
	upgrader websocket.Upgrader
}

// New starts a server on a loopback TCP port and closes it when t ends.
func New(t testing.TB) *Server {
	s := newServer()
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// NewUnix starts a server listening on socketPath.
func NewUnix(t testing.TB, socketPath string) *Server {
	s := newServer()
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen on %s: %v", socketPath, err)
	}
	s.Server = httptest.NewUnstartedServer(s.routes())
	s.Server.Listener.Close()
	s.Server.Listener = ln
	s.Server.Start()
	t.Cleanup(s.Close)
	return s
}

func newServer() *Server {
	return &Server{
		commands: make(map[string]CommandFunc),
		streams:  make(map[string]map[chan []byte]struct{}),
	}
}

// Close drops every stream subscriber, then stops the HTTP server.
func (s *Server) Close() {
	s.mu.Lock()
	for name, subs := range s.streams {
		for ch := range subs {
			close(ch)
		}
		delete(s.streams, name)
	}
	s.mu.Unlock()
	s.Server.CloseClientConnections()
	s.Server.Close()
}

// Handle registers fn for command.
func (s *Server) Handle(command string, fn CommandFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[command] = fn
}

// Reply registers a command that always returns result.
func (s *Server) Reply(command string, result interface{}) {
	s.Handle(command, func(json.RawMessage) (interface{}, *errors.AppError) { return result, nil })
}

// Fail registers a command that always fails with err.
func (s *Server) Fail(command string, err *errors.AppError) {
	s.Handle(command, func(json.RawMessage) (interface{}, *errors.AppError) { return nil, err })
}

// Calls returns the commands received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded calls of one command.
func (s *Server) CallsTo(command string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Command == command {
			out = append(out, c)
		}
	}
	return out
}

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.NewString()
}

// Emit marshals payload and sends it to every subscriber of stream, in call
// order. Frames emitted with no subscriber are lost, like the real backend.
func (s *Server) Emit(stream string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("backendtest: marshal %T: %v", payload, err))
	}
	s.EmitRaw(stream, data)
}

// EmitRaw sends an already encoded frame.
func (s *Server) EmitRaw(stream string, frame []byte) {
	s.mu.Lock()
	subs := make([]chan []byte, 0, len(s.streams[stream]))
	for ch := range s.streams[stream] {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		func() {
			defer func() { _ = recover() }() // subscriber left meanwhile
			select {
			case ch <- frame:
			case <-time.After(time.Second):
			}
		}()
	}
}

// Subscribers returns the number of open subscriptions to stream.
func (s *Server) Subscribers(stream string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams[stream])
}

// WaitSubscribers blocks until stream has at least n subscribers.
func (s *Server) WaitSubscribers(t testing.TB, stream string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Subscribers(stream) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("stream %q: want %d subscribers, have %d", stream, n, s.Subscribers(stream))
}

// WSURL returns the ws:// base of the server.
func (s *Server) WSURL() string {
	return "ws" + s.URL[len("http"):]
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/commands/{name}", s.handleCommand)
	mux.HandleFunc("GET /api/events/{stream}", s.handleSSE)
	mux.HandleFunc("GET /api/ws/{stream}", s.handleWebSocket)
	return mux
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var args json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		args = json.RawMessage("null")
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Command: name, Args: args})
	fn, ok := s.commands[name]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		writeError(w, errors.New(errors.KindNotFound, "unknown command "+name))
		return
	}

	result, appErr := fn(args)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	_ = json.NewEncoder(w).Encode(result)
}

func writeError(w http.ResponseWriter, e *errors.AppError) {
	var details interface{} = e.Message
	if e.Details != nil {
		details = e.Details
	}
	body, _ := json.Marshal(map[string]interface{}{"code": e.Kind, "details": details})
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write(body)
}

func (s *Server) subscribe(stream string) chan []byte {
	ch := make(chan []byte, 256)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streams[stream] == nil {
		s.streams[stream] = make(map[chan []byte]struct{})
	}
	s.streams[stream][ch] = struct{}{}
	return ch
}

func (s *Server) unsubscribe(stream string, ch chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[stream][ch]; ok {
		delete(s.streams[stream], ch)
		close(ch)
	}
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	stream := r.PathValue("stream")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.subscribe(stream)
	defer s.unsubscribe(stream, ch)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	stream := r.PathValue("stream")
	ch := s.subscribe(stream)
	defer s.unsubscribe(stream, ch)

	// Detect client close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case frame, ok := <-ch:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}
