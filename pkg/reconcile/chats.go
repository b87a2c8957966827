package reconcile

import (
	"fmt"
	"time"

	"github.com/grovetools/scribe/pkg/models"
)

// Chats returns the reducer for the chat collection. now stamps UpdatedAt on
// appended text; nil means time.Now.
//
// Chunks are concatenated in the order they are applied. Delivery order is
// guaranteed by the subscription channel, so no sequencing happens here.
func Chats(now func() time.Time) Reducer[models.Chat, models.ChatEvent] {
	if now == nil {
		now = time.Now
	}
	return func(c Collection[models.Chat], ev models.ChatEvent) (Collection[models.Chat], *Anomaly) {
		switch e := ev.(type) {
		case models.ChatAdded:
			if e.Chat.ID == "" {
				return c, anomaly("", "chat-added", ReasonMalformed, "missing id")
			}
			next, added := c.Add(e.Chat)
			if !added {
				return c, anomaly(e.Chat.ID, "chat-added", ReasonDuplicate, "")
			}
			return next, nil

		case models.TextAppended:
			current, ok := c.Get(e.ChatID)
			if !ok {
				return c, anomaly(e.ChatID, "text-appended", ReasonUnknownID, "")
			}
			if e.Text == "" {
				return c, nil
			}
			current.Message += e.Text
			current.UpdatedAt = models.NewTimestamp(now())
			next, _ := c.Replace(e.ChatID, current)
			return next, nil

		case nil:
			return c, anomaly("", "chat", ReasonMalformed, "nil event")
		}
		return c, anomaly(ev.TargetChatID(), fmt.Sprintf("%T", ev), ReasonMalformed, "unhandled event variant")
	}
}

// Summaries reconciles summary events.
func Summaries(c Collection[models.Summary], ev models.SummaryEvent) (Collection[models.Summary], *Anomaly) {
	switch e := ev.(type) {
	case models.SummaryAdded:
		if e.Summary.ID == "" {
			return c, anomaly("", "summary-added", ReasonMalformed, "missing id")
		}
		next, added := c.Add(e.Summary)
		if !added {
			return c, anomaly(e.Summary.ID, "summary-added", ReasonDuplicate, "")
		}
		return next, nil

	case nil:
		return c, anomaly("", "summary", ReasonMalformed, "nil event")
	}
	return c, anomaly(ev.TargetSummaryID(), fmt.Sprintf("%T", ev), ReasonMalformed, "unhandled event variant")
}
