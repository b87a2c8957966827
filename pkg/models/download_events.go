package models

import (
	"encoding/json"
	"fmt"
)

// DownloadEventType is the wire discriminator of the download stream.
type DownloadEventType string

const (
	DownloadEventAdded         DownloadEventType = "added"
	DownloadEventProgress      DownloadEventType = "progress"
	DownloadEventStatusChanged DownloadEventType = "status-changed"
	DownloadEventError         DownloadEventType = "error"
)

// DownloadEvent is the closed set of events carried by the download stream.
// The unexported marker keeps the set closed to this package.
type DownloadEvent interface {
	DownloadID() string
	Type() DownloadEventType
	downloadEvent()
}

// DownloadAdded announces a new download.
type DownloadAdded struct {
	Download Download
}

// DownloadProgress replaces the byte counters of a download.
type DownloadProgress struct {
	ID            string `json:"id"`
	ProgressBytes int64  `json:"progressBytes"`
	SpeedBytes    int64  `json:"speedBytes"`
}

// DownloadStatusChanged moves a download through its lifecycle.
type DownloadStatusChanged struct {
	ID     string
	Status DownloadStatus
	Reason string
}

// DownloadFailed reports a backend failure for a download. The status change to
// DownloadError arrives separately.
type DownloadFailed struct {
	ID      string `json:"id"`
	Message string `json:"error"`
}

func (e DownloadAdded) DownloadID() string         { return e.Download.ID }
func (e DownloadProgress) DownloadID() string      { return e.ID }
func (e DownloadStatusChanged) DownloadID() string { return e.ID }
func (e DownloadFailed) DownloadID() string        { return e.ID }

func (DownloadAdded) Type() DownloadEventType         { return DownloadEventAdded }
func (DownloadProgress) Type() DownloadEventType      { return DownloadEventProgress }
func (DownloadStatusChanged) Type() DownloadEventType { return DownloadEventStatusChanged }
func (DownloadFailed) Type() DownloadEventType        { return DownloadEventError }

func (DownloadAdded) downloadEvent()         {}
func (DownloadProgress) downloadEvent()      {}
func (DownloadStatusChanged) downloadEvent() {}
func (DownloadFailed) downloadEvent()        {}

// Envelope is the {type, payload} frame shared by tagged streams.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type statusChangedJSON struct {
	ID     string          `json:"id"`
	Status json.RawMessage `json:"status"`
}

// DecodeDownloadEvent parses one frame of the download stream.
func DecodeDownloadEvent(data []byte) (DownloadEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode download envelope: %w", err)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("download event %q has no payload", env.Type)
	}

	switch DownloadEventType(env.Type) {
	case DownloadEventAdded:
		var d Download
		if err := json.Unmarshal(env.Payload, &d); err != nil {
			return nil, fmt.Errorf("decode added payload: %w", err)
		}
		return DownloadAdded{Download: d}, nil

	case DownloadEventProgress:
		var p DownloadProgress
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode progress payload: %w", err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("progress event without id")
		}
		return p, nil

	case DownloadEventStatusChanged:
		var raw statusChangedJSON
		if err := json.Unmarshal(env.Payload, &raw); err != nil {
			return nil, fmt.Errorf("decode status payload: %w", err)
		}
		if raw.ID == "" {
			return nil, fmt.Errorf("status event without id")
		}
		status, reason, err := decodeStatus(raw.Status)
		if err != nil {
			return nil, fmt.Errorf("status event %s: %w", raw.ID, err)
		}
		return DownloadStatusChanged{ID: raw.ID, Status: status, Reason: reason}, nil

	case DownloadEventError:
		var f DownloadFailed
		if err := json.Unmarshal(env.Payload, &f); err != nil {
			return nil, fmt.Errorf("decode error payload: %w", err)
		}
		if f.ID == "" {
			return nil, fmt.Errorf("error event without id")
		}
		return f, nil
	}

	return nil, fmt.Errorf("unknown download event type %q", env.Type)
}

// EncodeDownloadEvent writes the wire frame for ev.
func EncodeDownloadEvent(ev DownloadEvent) ([]byte, error) {
	var payload interface{}
	switch e := ev.(type) {
	case DownloadAdded:
		payload = e.Download
	case DownloadProgress:
		payload = e
	case DownloadStatusChanged:
		payload = map[string]interface{}{
			"id":     e.ID,
			"status": encodeStatus(e.Status, e.Reason),
		}
	case DownloadFailed:
		payload = e
	default:
		return nil, fmt.Errorf("unsupported download event %T", ev)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: string(ev.Type()), Payload: body})
}
