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

// Backend commands used by the summary store.
const (
	CmdGetSummaries  = "get_summaries"
	CmdGetSummary    = "get_summary"
	CmdGetChats      = "get_chats"
	CmdSendMessage   = "send_message"
	CmdDeleteSummary = "delete_summary"
	CmdSummarize     = "summarize"
)

// SummaryStore holds summaries and the chats attached to them. Chats grow
// token by token from the chat stream.
type SummaryStore struct {
	Summaries *store.Store[models.Summary, models.SummaryEvent]
	Chats     *store.Store[models.Chat, models.ChatEvent]

	deps    Deps
	stream  string
	log     *logrus.Entry
	unsub   channel.Unsubscribe
	replies *replyBuffer
}

// NewSummaryStore creates an unstarted store whose chats are fed by stream.
func NewSummaryStore(d Deps, stream string) *SummaryStore {
	log := logging.NewLogger("summaries")
	s := &SummaryStore{
		deps:   d,
		stream: stream,
		log:    log,
	}
	s.Summaries = store.New[models.Summary, models.SummaryEvent](reconcile.Summaries,
		store.WithName("summaries"),
		store.WithLogger(log),
		store.WithMetrics(d.Metrics),
		store.WithDeleter(s.deleteRemote),
	)
	s.Chats = store.New[models.Chat, models.ChatEvent](reconcile.Chats(nil),
		store.WithName("chats"),
		store.WithLogger(log),
		store.WithMetrics(d.Metrics),
	)
	s.replies = newReplyBuffer(
		func(id string) bool {
			_, ok := s.Chats.GetByID(id)
			return ok
		},
		func(ev models.ChatEvent) { s.Chats.Dispatch(ev) },
		func(ev models.ChatEvent) {
			s.log.WithField("chat", ev.TargetChatID()).Warn("Too many early reply chunks held, dispatching without waiting")
			s.Chats.Dispatch(ev)
		},
	)
	return s
}

// Start subscribes to the chat stream and seeds both collections. Summaries
// and chats are fetched concurrently.
func (s *SummaryStore) Start(ctx context.Context) error {
	queue := newBacklog(s.replies.apply)

	unsub, subErr := subscribe(ctx, s.deps, s.log, s.stream, models.DecodeChatEvent, queue.push)
	s.unsub = unsub
	if subErr != nil {
		s.log.WithError(subErr).Warn("Chat updates unavailable")
	}

	type chatsResult struct {
		chats []models.Chat
		err   error
	}
	chatsCh := make(chan chatsResult, 1)
	go func() {
		chats, err := gateway.Call[[]models.Chat](ctx, s.deps.Gateway, CmdGetChats, nil)
		chatsCh <- chatsResult{chats, err}
	}()

	summaries, sumErr := gateway.Call[[]models.Summary](ctx, s.deps.Gateway, CmdGetSummaries, nil)
	res := <-chatsCh

	if sumErr == nil {
		s.Summaries.Append(summaries...)
	}
	if res.err == nil {
		s.Chats.Append(res.chats...)
	}
	replayed := queue.release()

	if sumErr != nil {
		return sumErr
	}
	if res.err != nil {
		return res.err
	}
	s.log.WithFields(logrus.Fields{
		"summaries": len(summaries),
		"chats":     len(res.chats),
		"replayed":  replayed,
	}).Debug("Summary store started")
	return nil
}

// AddSummaries appends summaries not yet present.
func (s *SummaryStore) AddSummaries(summaries ...models.Summary) int {
	return s.Summaries.Append(summaries...)
}

// GetSummaryByID returns the summary with id.
func (s *SummaryStore) GetSummaryByID(id string) (models.Summary, bool) {
	return s.Summaries.GetByID(id)
}

// GetSummary fetches one summary from the backend and adds it to the store
// when it is not there yet. The stored copy is never overwritten.
func (s *SummaryStore) GetSummary(ctx context.Context, summaryID string) (models.Summary, error) {
	if summaryID == "" {
		return models.Summary{}, errors.InvalidInput("summaryId", "empty")
	}
	summary, err := gateway.Call[models.Summary](ctx, s.deps.Gateway, CmdGetSummary, map[string]string{
		"summaryId": summaryID,
	})
	if err != nil {
		return models.Summary{}, err
	}
	if summary.ID == "" {
		return models.Summary{}, errors.New(errors.KindNotFound, "summary "+summaryID+" not found")
	}
	s.Summaries.Append(summary)
	return summary, nil
}

// ChatsFor returns the chats of summaryID in insertion order.
func (s *SummaryStore) ChatsFor(summaryID string) []models.Chat {
	var out []models.Chat
	for _, c := range s.Chats.GetAll() {
		if c.SummaryID == summaryID {
			out = append(out, c)
		}
	}
	return out
}

// SendMessage posts message to the conversation of summaryID. The backend
// answers with the chats it created (the user message and an empty assistant
// reply); they are appended and the reply fills in from the chat stream.
// Reply chunks that arrive before the answer are held and applied after it.
func (s *SummaryStore) SendMessage(ctx context.Context, summaryID, message string) ([]models.Chat, error) {
	if summaryID == "" {
		return nil, errors.InvalidInput("summaryId", "empty")
	}
	s.replies.begin()
	chats, err := gateway.Call[[]models.Chat](ctx, s.deps.Gateway, CmdSendMessage, map[string]string{
		"message":   message,
		"summaryId": summaryID,
	})
	s.replies.finish(func() {
		if err == nil {
			s.Chats.Append(chats...)
		}
	})
	if err != nil {
		return nil, err
	}
	return chats, nil
}

// DeleteSummary removes the summary on the backend, then drops it and its
// chats locally. Nothing changes locally when the backend refuses.
func (s *SummaryStore) DeleteSummary(ctx context.Context, summaryID string) error {
	if err := s.Summaries.Remove(ctx, summaryID); err != nil {
		return err
	}
	n := s.Chats.RemoveWhere(func(c models.Chat) bool { return c.SummaryID == summaryID })
	s.log.WithFields(logrus.Fields{"id": summaryID, "chats": n}).Debug("Summary deleted")
	return nil
}

// Summarize starts a summarization run. Its progress arrives on the progress
// stream.
func (s *SummaryStore) Summarize(ctx context.Context, filePath, language string) error {
	return s.deps.Gateway.Exec(ctx, CmdSummarize, map[string]string{
		"filePath": filePath,
		"language": language,
	})
}

// Stop ends the chat subscription and closes both collections.
func (s *SummaryStore) Stop() {
	if s.unsub != nil {
		s.unsub()
	}
	s.Summaries.Close()
	s.Chats.Close()
}

func (s *SummaryStore) deleteRemote(ctx context.Context, id string) error {
	return s.deps.Gateway.Exec(ctx, CmdDeleteSummary, map[string]string{"summaryId": id})
}
