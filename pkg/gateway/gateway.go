// Package gateway issues named commands to the native backend and turns every
// failure into a typed *errors.AppError.
//
// Failures whose kind is not on the suppress list are also published to the
// process-wide alert slot so the UI can show them. The typed error is always
// returned to the caller either way.
package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/pkg/alert"
	"github.com/grovetools/scribe/pkg/metrics"
)

// DefaultSuppress lists the kinds that are returned but not published.
var DefaultSuppress = []errors.Kind{errors.KindNotFound, errors.KindInvalidInput}

// Invoker performs one command round-trip. Backend-reported failures must be
// returned as *errors.AppError; any other error is treated as a transport
// failure.
type Invoker interface {
	Invoke(ctx context.Context, command string, args interface{}) (json.RawMessage, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, command string, args interface{}) (json.RawMessage, error)

func (f InvokerFunc) Invoke(ctx context.Context, command string, args interface{}) (json.RawMessage, error) {
	return f(ctx, command, args)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithSlot sets where unsuppressed failures are published.
func WithSlot(slot *alert.Slot) Option {
	return func(g *Gateway) { g.slot = slot }
}

// WithSuppress replaces the suppress list.
func WithSuppress(kinds ...errors.Kind) Option {
	return func(g *Gateway) {
		g.suppress = make(map[errors.Kind]bool, len(kinds))
		for _, k := range kinds {
			g.suppress[k] = true
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(g *Gateway) { g.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// Gateway is safe for concurrent use.
type Gateway struct {
	invoker  Invoker
	slot     *alert.Slot
	suppress map[errors.Kind]bool
	log      *logrus.Entry
	metrics  *metrics.Metrics
}

// New creates a Gateway over inv with the default suppress list.
func New(inv Invoker, opts ...Option) *Gateway {
	g := &Gateway{invoker: inv}
	WithSuppress(DefaultSuppress...)(g)
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logging.NewLogger("gateway")
	}
	return g
}

// Slot returns the alert slot, which may be nil.
func (g *Gateway) Slot() *alert.Slot {
	return g.slot
}

// Suppressed reports whether failures of kind are kept out of the slot.
func (g *Gateway) Suppressed(kind errors.Kind) bool {
	return g.suppress[kind]
}

// Call invokes command and returns its raw result. A non-nil error is always
// an *errors.AppError.
func (g *Gateway) Call(ctx context.Context, command string, args interface{}) (json.RawMessage, error) {
	start := time.Now()
	raw, err := g.invoker.Invoke(ctx, command, args)
	if err == nil {
		g.metrics.ObserveCommand(command, time.Since(start), "")
		g.log.WithField("command", command).Debug("Command succeeded")
		return raw, nil
	}

	appErr := classify(command, err)
	g.metrics.ObserveCommand(command, time.Since(start), string(appErr.Kind))
	g.fail(ctx, command, appErr)
	return nil, appErr
}

// Exec invokes command and discards the result.
func (g *Gateway) Exec(ctx context.Context, command string, args interface{}) error {
	_, err := g.Call(ctx, command, args)
	return err
}

// Call invokes command and decodes the result into T. A result that does not
// decode is reported like any other failure, as UNKNOWN.
func Call[T any](ctx context.Context, g *Gateway, command string, args interface{}) (T, error) {
	var out T
	raw, err := g.Call(ctx, command, args)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		appErr := errors.Wrap(err, errors.KindUnknown, "unexpected response from "+command).
			WithDetail("command", command)
		g.fail(ctx, command, appErr)
		return out, appErr
	}
	return out, nil
}

func (g *Gateway) fail(ctx context.Context, command string, appErr *errors.AppError) {
	entry := g.log.WithFields(logrus.Fields{
		"command": command,
		"code":    appErr.Kind,
	}).WithError(appErr)

	switch {
	case ctx.Err() != nil && stderrors.Is(appErr, ctx.Err()):
		entry.Debug("Command abandoned by caller")
	case g.suppress[appErr.Kind]:
		entry.Debug("Command failed")
	default:
		entry.Warn("Command failed")
		if g.slot != nil {
			g.slot.Set(appErr)
		}
	}
}

func classify(command string, err error) *errors.AppError {
	if appErr, ok := errors.As(err); ok {
		return appErr
	}
	return errors.NetworkError(command, err)
}
