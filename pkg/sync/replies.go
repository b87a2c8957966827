package sync

import (
	stdsync "sync"

	"github.com/grovetools/scribe/pkg/models"
)

// maxHeldChunks bounds the chunks held while send_message calls are in flight.
const maxHeldChunks = 4096

// replyBuffer holds chunks for chats the store does not know yet while a
// send_message call is in flight. The backend starts streaming the reply
// before it returns the chats it created, so the first chunks can arrive
// ahead of their chat.
type replyBuffer struct {
	mu       stdsync.Mutex
	inFlight int
	held     map[string][]models.ChatEvent
	count    int

	known    func(chatID string) bool
	dispatch func(models.ChatEvent)
	overflow func(models.ChatEvent)
}

func newReplyBuffer(known func(string) bool, dispatch, overflow func(models.ChatEvent)) *replyBuffer {
	return &replyBuffer{
		held:     make(map[string][]models.ChatEvent),
		known:    known,
		dispatch: dispatch,
		overflow: overflow,
	}
}

// apply dispatches ev, or holds it when it targets an unknown chat while a
// send is in flight.
func (r *replyBuffer) apply(ev models.ChatEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if text, ok := ev.(models.TextAppended); ok && r.inFlight > 0 && !r.known(text.ChatID) {
		if r.count >= maxHeldChunks {
			r.overflow(ev)
			return
		}
		r.held[text.ChatID] = append(r.held[text.ChatID], ev)
		r.count++
		return
	}
	r.dispatch(ev)
}

// begin marks a send as in flight.
func (r *replyBuffer) begin() {
	r.mu.Lock()
	r.inFlight++
	r.mu.Unlock()
}

// finish runs settle, which adds the created chats, then replays the held
// chunks in arrival order. Chunks still unmatched once no send is in flight
// are dispatched too, so the store reports them as unknown.
func (r *replyBuffer) finish(settle func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inFlight--
	if settle != nil {
		settle()
	}
	for id, events := range r.held {
		if r.inFlight > 0 && !r.known(id) {
			continue
		}
		for _, ev := range events {
			r.dispatch(ev)
		}
		r.count -= len(events)
		delete(r.held, id)
	}
}
