package models

import (
	"encoding/json"
	"fmt"
)

// DownloadStatus is the lifecycle state of a backend-managed download.
type DownloadStatus string

const (
	DownloadPending     DownloadStatus = "pending"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadVerifying   DownloadStatus = "verifying"
	DownloadComplete    DownloadStatus = "complete"
	DownloadError       DownloadStatus = "error"
)

// String returns the string representation of DownloadStatus
func (s DownloadStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known statuses.
func (s DownloadStatus) IsValid() bool {
	switch s {
	case DownloadPending, DownloadDownloading, DownloadVerifying, DownloadComplete, DownloadError:
		return true
	}
	return false
}

// IsTerminal returns true once no further status changes are accepted.
func (s DownloadStatus) IsTerminal() bool {
	return s == DownloadComplete || s == DownloadError
}

// IsActive returns true while bytes are moving or being checked.
func (s DownloadStatus) IsActive() bool {
	return s == DownloadDownloading || s == DownloadVerifying
}

// decodeStatus accepts "downloading" as well as {"error": "reason"}.
func decodeStatus(raw json.RawMessage) (DownloadStatus, string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", "", fmt.Errorf("status is required")
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		status := DownloadStatus(name)
		if !status.IsValid() {
			return "", "", fmt.Errorf("unknown download status %q", name)
		}
		return status, "", nil
	}

	var tagged map[string]string
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return "", "", fmt.Errorf("status must be a string or tagged object: %w", err)
	}
	if reason, ok := tagged[string(DownloadError)]; ok && len(tagged) == 1 {
		return DownloadError, reason, nil
	}
	return "", "", fmt.Errorf("unknown tagged download status %v", tagged)
}

func encodeStatus(status DownloadStatus, reason string) interface{} {
	if status == DownloadError && reason != "" {
		return map[string]string{string(DownloadError): reason}
	}
	return string(status)
}

// Checksum identifies the expected digest of a downloaded file.
type Checksum struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Download mirrors one backend download.
type Download struct {
	ID            string         `json:"id"`
	Size          int64          `json:"size"`
	ProgressBytes int64          `json:"progressBytes"`
	SpeedBytes    int64          `json:"speedBytes"`
	URL           string         `json:"url"`
	SavePath      string         `json:"savePath"`
	Name          string         `json:"name,omitempty"`
	Checksum      *Checksum      `json:"checksum,omitempty"`
	Status        DownloadStatus `json:"status"`
	// StatusReason carries the backend's message when Status is DownloadError.
	StatusReason string `json:"-"`
}

// EntityID implements reconcile.Entity.
func (d Download) EntityID() string {
	return d.ID
}

// Fraction returns completion in [0, 1], or 0 when the size is unknown.
func (d Download) Fraction() float64 {
	if d.Size <= 0 {
		return 0
	}
	f := float64(d.ProgressBytes) / float64(d.Size)
	if f > 1 {
		return 1
	}
	return f
}

type downloadJSON struct {
	ID            string          `json:"id"`
	Size          int64           `json:"size"`
	ProgressBytes int64           `json:"progressBytes"`
	SpeedBytes    int64           `json:"speedBytes"`
	URL           string          `json:"url"`
	SavePath      string          `json:"savePath"`
	Name          *string         `json:"name,omitempty"`
	Checksum      *Checksum       `json:"checksum,omitempty"`
	Status        json.RawMessage `json:"status"`
}

// UnmarshalJSON decodes the backend representation, including tagged error statuses.
func (d *Download) UnmarshalJSON(data []byte) error {
	var raw downloadJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ID == "" {
		return fmt.Errorf("download id is required")
	}
	status, reason, err := decodeStatus(raw.Status)
	if err != nil {
		return fmt.Errorf("download %s: %w", raw.ID, err)
	}

	*d = Download{
		ID:            raw.ID,
		Size:          raw.Size,
		ProgressBytes: raw.ProgressBytes,
		SpeedBytes:    raw.SpeedBytes,
		URL:           raw.URL,
		SavePath:      raw.SavePath,
		Checksum:      raw.Checksum,
		Status:        status,
		StatusReason:  reason,
	}
	if raw.Name != nil {
		d.Name = *raw.Name
	}
	return nil
}

// MarshalJSON writes the backend representation.
func (d Download) MarshalJSON() ([]byte, error) {
	status, err := json.Marshal(encodeStatus(d.Status, d.StatusReason))
	if err != nil {
		return nil, err
	}
	raw := downloadJSON{
		ID:            d.ID,
		Size:          d.Size,
		ProgressBytes: d.ProgressBytes,
		SpeedBytes:    d.SpeedBytes,
		URL:           d.URL,
		SavePath:      d.SavePath,
		Checksum:      d.Checksum,
		Status:        status,
	}
	if d.Name != "" {
		raw.Name = &d.Name
	}
	return json.Marshal(raw)
}
