package sync

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/pkg/channel"
	"github.com/grovetools/scribe/pkg/gateway"
	"github.com/grovetools/scribe/pkg/metrics"
)

// Deps are the collaborators shared by every synchronized store.
type Deps struct {
	Gateway *gateway.Gateway
	Source  channel.Source
	Metrics *metrics.Metrics
}

// subscribe opens a decoded stream and waits until it is either ready or has
// failed. A failure is published to the gateway's error slot and returned;
// the subscription handle is valid in both cases.
func subscribe[T any](
	ctx context.Context,
	d Deps,
	log *logrus.Entry,
	stream string,
	decode func([]byte) (T, error),
	handler func(T),
) (channel.Unsubscribe, error) {
	ready := make(chan struct{})
	failed := make(chan *errors.AppError, 1)

	unsub := channel.SubscribeDecoded(ctx, d.Source, stream, decode, handler,
		channel.WithLogger(log),
		channel.WithMetrics(d.Metrics),
		channel.OnReady(func() { close(ready) }),
		channel.OnError(func(err *errors.AppError) {
			if slot := d.Gateway.Slot(); slot != nil {
				slot.Set(err)
			}
			failed <- err
		}),
	)

	select {
	case <-ready:
		return unsub, nil
	case err := <-failed:
		return unsub, err
	case <-ctx.Done():
		unsub()
		return unsub, ctx.Err()
	}
}
