package reconcile

import "fmt"

// Reason classifies why an event did not change the collection as asked.
type Reason string

const (
	// ReasonUnknownID: the event targets an id that was never added.
	ReasonUnknownID Reason = "unknown_id"
	// ReasonDuplicate: an Added event for an id that is already present.
	ReasonDuplicate Reason = "duplicate"
	// ReasonTerminal: a status change for an entity that already finished.
	ReasonTerminal Reason = "terminal_status"
	// ReasonRegressed: progress lower than what was already shown.
	ReasonRegressed Reason = "progress_regressed"
	// ReasonMalformed: an event that is nil, unknown or fails validation.
	ReasonMalformed Reason = "malformed"
	// ReasonReported: the backend reported a failure for the entity.
	ReasonReported Reason = "reported_error"
)

// Anomaly is the diagnostic produced alongside an ignored or informational event.
// Anomalies never abort reconciliation; callers log and count them.
type Anomaly struct {
	ID     string
	Event  string
	Reason Reason
	Detail string
}

// Error implements error so anomalies can be logged with WithError.
func (a *Anomaly) Error() string {
	if a.Detail != "" {
		return fmt.Sprintf("%s event for %q: %s (%s)", a.Event, a.ID, a.Reason, a.Detail)
	}
	return fmt.Sprintf("%s event for %q: %s", a.Event, a.ID, a.Reason)
}

func anomaly(id, event string, reason Reason, detail string) *Anomaly {
	return &Anomaly{ID: id, Event: event, Reason: reason, Detail: detail}
}

// Reducer folds one event into a collection. Implementations must be total: they
// never panic and return the input collection unchanged when they reject an event.
type Reducer[E Entity, Ev any] func(Collection[E], Ev) (Collection[E], *Anomaly)
