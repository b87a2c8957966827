// Package channel subscribes handlers to named backend event streams.
//
// Frames of one stream reach the handler strictly in arrival order and one at
// a time, from a single goroutine per subscription. Unsubscribe is idempotent
// and safe to call from any goroutine, including from inside the handler and
// after the consumer is gone. Failures to open a stream are logged and passed
// to an optional callback; they never surface as panics.
package channel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/pkg/metrics"
)

// Source opens named event streams. The returned channel yields raw frames in
// arrival order and is closed when the stream ends or ctx is cancelled.
type Source interface {
	Open(ctx context.Context, stream string) (<-chan []byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, stream string) (<-chan []byte, error)

func (f SourceFunc) Open(ctx context.Context, stream string) (<-chan []byte, error) {
	return f(ctx, stream)
}

// Handler receives one raw frame.
type Handler func(frame []byte)

// Unsubscribe stops a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

type options struct {
	log     *logrus.Entry
	metrics *metrics.Metrics
	onError func(*errors.AppError)
	onReady func()
	onEnd   func()
}

// Option configures Subscribe.
type Option func(*options)

func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// OnError is called once if the stream cannot be opened, with a
// NETWORK_ERROR wrapping the cause.
func OnError(fn func(*errors.AppError)) Option {
	return func(o *options) { o.onError = fn }
}

// OnReady is called once the stream is open, before the first frame.
func OnReady(fn func()) Option {
	return func(o *options) { o.onReady = fn }
}

// OnEnd is called when delivery stops for any reason other than a setup failure.
func OnEnd(fn func()) Option {
	return func(o *options) { o.onEnd = fn }
}

// Subscribe opens stream on src in the background and calls handler for every
// frame until ctx is cancelled, the stream ends or the returned Unsubscribe is
// called. Once Unsubscribe returns, no new handler call starts.
func Subscribe(ctx context.Context, src Source, stream string, handler Handler, opts ...Option) Unsubscribe {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.NewLogger("channel")
	}
	log := o.log.WithField("stream", stream)

	ctx, cancel := context.WithCancel(ctx)
	var stopped atomic.Bool

	go func() {
		frames, err := src.Open(ctx, stream)
		if err != nil {
			if ctx.Err() != nil || stopped.Load() {
				log.WithError(err).Debug("Subscription cancelled during setup")
				return
			}
			appErr := errors.NetworkError("subscribe:"+stream, err)
			log.WithError(err).Error("Failed to subscribe to event stream")
			if o.onError != nil {
				o.onError(appErr)
			}
			return
		}

		log.Debug("Subscribed to event stream")
		if o.onReady != nil {
			o.onReady()
		}
		defer func() {
			log.Debug("Event stream delivery stopped")
			if o.onEnd != nil {
				o.onEnd()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				if stopped.Load() {
					return
				}
				o.metrics.Received(stream)
				handler(frame)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			cancel()
		})
	}
}

// SubscribeDecoded is Subscribe with a typed handler. Frames that fail to
// decode are logged and skipped.
func SubscribeDecoded[T any](
	ctx context.Context,
	src Source,
	stream string,
	decode func([]byte) (T, error),
	handler func(T),
	opts ...Option,
) Unsubscribe {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log
	if log == nil {
		log = logging.NewLogger("channel")
	}

	return Subscribe(ctx, src, stream, func(frame []byte) {
		v, err := decode(frame)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"stream": stream,
				"frame":  truncate(frame, 256),
			}).Warn("Dropping malformed event")
			o.metrics.Dropped(stream, "malformed")
			return
		}
		handler(v)
	}, opts...)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
