// Package reconcile folds backend stream events into ordered, de-duplicated
// entity collections.
//
// Reducers are pure: they take a Collection and one event and return the next
// Collection plus an optional Anomaly describing why the event was ignored.
// They never panic and never retain the collection. The owning store decides
// what to do with anomalies (log, count, drop).
package reconcile
