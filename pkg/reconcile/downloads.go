package reconcile

import (
	"fmt"

	"github.com/grovetools/scribe/pkg/models"
)

// Downloads reconciles the download stream.
//
//   - added: appended once; repeats are ignored without touching the stored entity
//   - progress: replaces only the byte counters; a lower byte count is rejected
//   - status-changed: replaces only the status; rejected once the status is terminal
//   - error: reported, the entity stays (its status changes by a separate event)
func Downloads(c Collection[models.Download], ev models.DownloadEvent) (Collection[models.Download], *Anomaly) {
	switch e := ev.(type) {
	case models.DownloadAdded:
		if e.Download.ID == "" {
			return c, anomaly("", string(e.Type()), ReasonMalformed, "missing id")
		}
		next, added := c.Add(e.Download)
		if !added {
			return c, anomaly(e.Download.ID, string(e.Type()), ReasonDuplicate, "")
		}
		return next, nil

	case models.DownloadProgress:
		current, ok := c.Get(e.ID)
		if !ok {
			return c, anomaly(e.ID, string(e.Type()), ReasonUnknownID, "")
		}
		if e.ProgressBytes < current.ProgressBytes {
			return c, anomaly(e.ID, string(e.Type()), ReasonRegressed,
				fmt.Sprintf("%d < %d", e.ProgressBytes, current.ProgressBytes))
		}
		if current.ProgressBytes == e.ProgressBytes && current.SpeedBytes == e.SpeedBytes {
			return c, nil
		}
		current.ProgressBytes = e.ProgressBytes
		current.SpeedBytes = e.SpeedBytes
		next, _ := c.Replace(e.ID, current)
		return next, nil

	case models.DownloadStatusChanged:
		current, ok := c.Get(e.ID)
		if !ok {
			return c, anomaly(e.ID, string(e.Type()), ReasonUnknownID, "")
		}
		if !e.Status.IsValid() {
			return c, anomaly(e.ID, string(e.Type()), ReasonMalformed, fmt.Sprintf("status %q", e.Status))
		}
		if current.Status.IsTerminal() {
			return c, anomaly(e.ID, string(e.Type()), ReasonTerminal,
				fmt.Sprintf("%s -> %s", current.Status, e.Status))
		}
		if current.Status == e.Status && current.StatusReason == e.Reason {
			return c, nil
		}
		current.Status = e.Status
		current.StatusReason = e.Reason
		next, _ := c.Replace(e.ID, current)
		return next, nil

	case models.DownloadFailed:
		if !c.Contains(e.ID) {
			return c, anomaly(e.ID, string(e.Type()), ReasonUnknownID, e.Message)
		}
		return c, anomaly(e.ID, string(e.Type()), ReasonReported, e.Message)

	case nil:
		return c, anomaly("", "download", ReasonMalformed, "nil event")
	}

	return c, anomaly(ev.DownloadID(), fmt.Sprintf("%T", ev), ReasonMalformed, "unhandled event variant")
}
