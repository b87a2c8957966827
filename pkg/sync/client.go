package sync

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/scribe/config"
	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/pkg/alert"
	"github.com/grovetools/scribe/pkg/backend"
	"github.com/grovetools/scribe/pkg/channel"
	"github.com/grovetools/scribe/pkg/gateway"
	"github.com/grovetools/scribe/pkg/metrics"
	"github.com/grovetools/scribe/pkg/profiling"
	"github.com/grovetools/scribe/pkg/settings"
)

// Client owns every synchronized store for one backend connection.
type Client struct {
	Config    *config.Config
	Slot      *alert.Slot
	Gateway   *gateway.Gateway
	Metrics   *metrics.Metrics
	Settings  *settings.Store
	Downloads *DownloadStore
	Summaries *SummaryStore
	Progress  *ProgressTracker
	Catalog   *Catalog

	closer io.Closer
	cancel context.CancelFunc
	log    *logrus.Entry
}

// Dial connects to the backend described by cfg and builds a Client on it.
func Dial(ctx context.Context, cfg *config.Config) (*Client, error) {
	conn, err := backend.Connect(ctx, cfg.Backend)
	if err != nil {
		return nil, err
	}
	c, err := New(cfg, conn, conn.Source)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.closer = conn
	return c, nil
}

// New builds a Client over an existing transport. Nothing is fetched or
// subscribed until Start.
func New(cfg *config.Config, inv gateway.Invoker, src channel.Source) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log := logging.NewLogger("client")

	m := metrics.New()
	slot := alert.NewSlot(alert.WithTTL(cfg.Errors.TTL))
	gwOpts := []gateway.Option{
		gateway.WithSlot(slot),
		gateway.WithMetrics(m),
	}
	if cfg.Errors.Suppress != nil {
		gwOpts = append(gwOpts, gateway.WithSuppress(cfg.Errors.Suppress...))
	}
	gw := gateway.New(inv, gwOpts...)

	var prefs *settings.Store
	if cfg.Settings.Path != "" {
		var err error
		prefs, err = settings.Open(cfg.Settings.Path)
		if err != nil {
			return nil, err
		}
	}

	d := Deps{Gateway: gw, Source: src, Metrics: m}
	summaries := NewSummaryStore(d, cfg.Streams.Chat)
	return &Client{
		Config:    cfg,
		Slot:      slot,
		Gateway:   gw,
		Metrics:   m,
		Settings:  prefs,
		Downloads: NewDownloadStore(d, cfg.Streams.Download),
		Summaries: summaries,
		Progress:  NewProgressTracker(d, cfg.Streams.Progress, summaries),
		Catalog:   NewCatalog(d),
		log:       log,
	}, nil
}

// Start subscribes every store and performs the initial fetches. The
// subscriptions live until Close, not until ctx ends. Stream failures are
// reported through the error slot; the first failed fetch is returned.
func (c *Client) Start(ctx context.Context) error {
	life, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	if c.Settings != nil && c.watchSettings() {
		if err := c.Settings.Watch(life, 0); err != nil {
			c.log.WithError(err).Warn("Settings will not reload on change")
		}
	}

	span := profiling.Start("sync.progress")
	err := c.Progress.Start(life)
	span.Stop()
	if err != nil {
		c.log.WithError(err).Warn("Summarization progress unavailable")
	}

	type result struct {
		name string
		err  error
	}
	done := make(chan result, 2)
	startTimed := func(name string, start func(context.Context) error) {
		span := profiling.Start("sync." + name)
		err := start(life)
		span.Stop()
		done <- result{name, err}
	}
	go startTimed("downloads", c.Downloads.Start)
	go startTimed("summaries", c.Summaries.Start)

	var first error
	for i := 0; i < 2; i++ {
		r := <-done
		if r.err != nil {
			c.log.WithError(r.err).WithField("store", r.name).Error("Initial fetch failed")
			if first == nil {
				first = r.err
			}
		}
	}
	return first
}

// SetupComplete reports the setup_complete setting.
func (c *Client) SetupComplete() bool {
	if c.Settings == nil {
		return false
	}
	return c.Settings.Bool(settings.KeySetupComplete, false)
}

// SpeechToTextModel returns the selected model, or "" when none is set.
func (c *Client) SpeechToTextModel() string {
	if c.Settings == nil {
		return ""
	}
	return c.Settings.String(settings.KeySpeechToTextModel, "")
}

// Close stops every subscription, closes the stores and releases the
// connection. Mutations still in flight are dropped.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.Progress.Stop()
	c.Downloads.Stop()
	c.Summaries.Stop()
	c.Slot.Clear()
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

func (c *Client) watchSettings() bool {
	return c.Config.Settings.Watch == nil || *c.Config.Settings.Watch
}
