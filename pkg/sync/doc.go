// Package sync keeps the client's entity stores in step with the backend.
//
// Each store follows the same lifecycle: subscribe to its event stream, fetch
// the initial collection, seed the store, then replay the events that arrived
// while the fetch was in flight. Events are never applied before the seed, so
// an update for an entity the fetch returns is not lost as an unknown id.
package sync
