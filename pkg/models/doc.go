// Package models defines the entities mirrored from the native backend and the
// closed event unions of each backend stream.
//
// Every stream has its own sealed interface (DownloadEvent, ChatEvent,
// SummaryEvent). Reducers switch over the concrete variants, so adding a variant
// means touching every switch that must handle it.
package models
