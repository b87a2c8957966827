package sync

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/pkg/channel"
	"github.com/grovetools/scribe/pkg/gateway"
	"github.com/grovetools/scribe/pkg/models"
	"github.com/grovetools/scribe/pkg/reconcile"
	"github.com/grovetools/scribe/pkg/store"
)

// Backend commands used by the download store.
const (
	CmdGetDownloads  = "get_downloads"
	CmdDownloadModel = "download_speech_to_text_model"
)

// DownloadStore mirrors the backend's downloads.
type DownloadStore struct {
	*store.Store[models.Download, models.DownloadEvent]

	deps   Deps
	stream string
	log    *logrus.Entry
	unsub  channel.Unsubscribe
}

// NewDownloadStore creates an unstarted store fed by stream.
func NewDownloadStore(d Deps, stream string) *DownloadStore {
	log := logging.NewLogger("downloads")
	return &DownloadStore{
		Store: store.New[models.Download, models.DownloadEvent](reconcile.Downloads,
			store.WithName("downloads"),
			store.WithLogger(log),
			store.WithMetrics(d.Metrics),
		),
		deps:   d,
		stream: stream,
		log:    log,
	}
}

// Start subscribes to the download stream and seeds the store from
// get_downloads. A subscription failure is reported but does not stop the
// seed; a failed fetch is returned.
func (s *DownloadStore) Start(ctx context.Context) error {
	queue := newBacklog(func(ev models.DownloadEvent) { s.Dispatch(ev) })

	unsub, subErr := subscribe(ctx, s.deps, s.log, s.stream, models.DecodeDownloadEvent, queue.push)
	s.unsub = unsub
	if subErr != nil {
		s.log.WithError(subErr).Warn("Download updates unavailable")
	}

	downloads, err := gateway.Call[[]models.Download](ctx, s.deps.Gateway, CmdGetDownloads, nil)
	if err != nil {
		queue.release()
		return err
	}
	added := s.Append(downloads...)
	replayed := queue.release()
	s.log.WithFields(logrus.Fields{
		"seeded":   added,
		"replayed": replayed,
	}).Debug("Download store started")
	return nil
}

// DownloadModel asks the backend to fetch a speech-to-text model. Progress
// arrives on the download stream.
func (s *DownloadStore) DownloadModel(ctx context.Context, model models.SpeechToTextModel) error {
	if !model.IsValid() {
		return errors.InvalidInput("model", "unknown speech-to-text model "+string(model))
	}
	return s.deps.Gateway.Exec(ctx, CmdDownloadModel, map[string]string{"model": string(model)})
}

// Active returns the downloads still moving bytes or being verified.
func (s *DownloadStore) Active() []models.Download {
	var out []models.Download
	for _, d := range s.GetAll() {
		if d.Status.IsActive() {
			out = append(out, d)
		}
	}
	return out
}

// Stop ends the subscription and closes the store.
func (s *DownloadStore) Stop() {
	if s.unsub != nil {
		s.unsub()
	}
	s.Close()
}
