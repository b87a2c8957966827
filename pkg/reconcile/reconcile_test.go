package reconcile

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/scribe/pkg/models"
)

func applyDownloads(events ...models.DownloadEvent) (Collection[models.Download], []*Anomaly) {
	var c Collection[models.Download]
	var anomalies []*Anomaly
	for _, ev := range events {
		var a *Anomaly
		c, a = Downloads(c, ev)
		if a != nil {
			anomalies = append(anomalies, a)
		}
	}
	return c, anomalies
}

func TestDownloads_NoDuplicateIDs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		k := 1 + rng.Intn(5)
		var events []models.DownloadEvent
		for i := 0; i < k; i++ {
			events = append(events, models.DownloadAdded{Download: models.Download{ID: "X", Size: int64(i)}})
		}
		for i := 0; i < 10; i++ {
			events = append(events, models.DownloadAdded{Download: models.Download{ID: fmt.Sprintf("other-%d", rng.Intn(4))}})
		}
		rng.Shuffle(len(events), func(i, j int) { events[i], events[j] = events[j], events[i] })

		c, _ := applyDownloads(events...)

		count := 0
		for _, d := range c.All() {
			if d.ID == "X" {
				count++
			}
		}
		require.Equal(t, 1, count, "round %d: want exactly one X", round)
		assert.LessOrEqual(t, c.Len(), 5)
	}
}

func TestDownloads_DuplicateAddedDoesNotResetFields(t *testing.T) {
	c, anomalies := applyDownloads(
		models.DownloadAdded{Download: models.Download{ID: "a", Size: 100, Status: models.DownloadPending}},
		models.DownloadProgress{ID: "a", ProgressBytes: 40},
		models.DownloadAdded{Download: models.Download{ID: "a", Size: 100, Status: models.DownloadPending}},
	)

	d, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(40), d.ProgressBytes)
	require.Len(t, anomalies, 1)
	assert.Equal(t, ReasonDuplicate, anomalies[0].Reason)
}

func TestDownloads_FieldMerge(t *testing.T) {
	c, anomalies := applyDownloads(
		models.DownloadAdded{Download: models.Download{ID: "a", Name: "n", Size: 100, ProgressBytes: 0, Status: models.DownloadPending}},
		models.DownloadProgress{ID: "a", ProgressBytes: 50},
	)
	require.Empty(t, anomalies)

	d, _ := c.Get("a")
	assert.Equal(t, models.Download{ID: "a", Name: "n", Size: 100, ProgressBytes: 50, Status: models.DownloadPending}, d)
}

func TestDownloads_StatusChangeKeepsOtherFields(t *testing.T) {
	c, _ := applyDownloads(
		models.DownloadAdded{Download: models.Download{ID: "a", Name: "ggml-base.bin", URL: "https://x", Size: 9, Status: models.DownloadPending}},
		models.DownloadStatusChanged{ID: "a", Status: models.DownloadDownloading},
	)
	d, _ := c.Get("a")
	assert.Equal(t, models.DownloadDownloading, d.Status)
	assert.Equal(t, "ggml-base.bin", d.Name)
	assert.Equal(t, "https://x", d.URL)
}

func TestDownloads_UnknownIDIsNoop(t *testing.T) {
	var empty Collection[models.Download]

	for _, ev := range []models.DownloadEvent{
		models.DownloadProgress{ID: "missing", ProgressBytes: 10},
		models.DownloadStatusChanged{ID: "missing", Status: models.DownloadComplete},
		models.DownloadFailed{ID: "missing", Message: "boom"},
	} {
		var c Collection[models.Download]
		var a *Anomaly
		assert.NotPanics(t, func() { c, a = Downloads(empty, ev) })
		assert.Equal(t, 0, c.Len())
		require.NotNil(t, a)
		assert.Equal(t, ReasonUnknownID, a.Reason)
	}
}

func TestDownloads_TerminalStateIsImmutable(t *testing.T) {
	for _, terminal := range []models.DownloadStatus{models.DownloadComplete, models.DownloadError} {
		t.Run(string(terminal), func(t *testing.T) {
			c, _ := applyDownloads(
				models.DownloadAdded{Download: models.Download{ID: "a", Status: models.DownloadPending}},
				models.DownloadStatusChanged{ID: "a", Status: terminal},
			)
			before, _ := c.Get("a")
			version := c.Version()

			next, a := Downloads(c, models.DownloadStatusChanged{ID: "a", Status: models.DownloadDownloading})
			require.NotNil(t, a)
			assert.Equal(t, ReasonTerminal, a.Reason)

			after, _ := next.Get("a")
			assert.Equal(t, before, after)
			assert.Equal(t, version, next.Version())
		})
	}
}

func TestDownloads_ErrorReachableFromAnyNonTerminal(t *testing.T) {
	for _, from := range []models.DownloadStatus{models.DownloadPending, models.DownloadDownloading, models.DownloadVerifying} {
		c, _ := applyDownloads(
			models.DownloadAdded{Download: models.Download{ID: "a", Status: from}},
			models.DownloadStatusChanged{ID: "a", Status: models.DownloadError, Reason: "Checksum mismatch"},
		)
		d, _ := c.Get("a")
		assert.Equal(t, models.DownloadError, d.Status, "from %s", from)
		assert.Equal(t, "Checksum mismatch", d.StatusReason)
	}
}

func TestDownloads_ErrorEventKeepsEntity(t *testing.T) {
	c, anomalies := applyDownloads(
		models.DownloadAdded{Download: models.Download{ID: "a", Status: models.DownloadDownloading}},
		models.DownloadFailed{ID: "a", Message: "connection reset"},
	)
	require.Equal(t, 1, c.Len())
	d, _ := c.Get("a")
	assert.Equal(t, models.DownloadDownloading, d.Status)
	require.Len(t, anomalies, 1)
	assert.Equal(t, ReasonReported, anomalies[0].Reason)
	assert.Equal(t, "connection reset", anomalies[0].Detail)
}

func TestDownloads_ProgressRegressionRejected(t *testing.T) {
	c, anomalies := applyDownloads(
		models.DownloadAdded{Download: models.Download{ID: "a"}},
		models.DownloadProgress{ID: "a", ProgressBytes: 500, SpeedBytes: 10},
		models.DownloadProgress{ID: "a", ProgressBytes: 300, SpeedBytes: 20},
	)
	d, _ := c.Get("a")
	assert.Equal(t, int64(500), d.ProgressBytes)
	assert.Equal(t, int64(10), d.SpeedBytes)
	require.Len(t, anomalies, 1)
	assert.Equal(t, ReasonRegressed, anomalies[0].Reason)
}

func TestDownloads_MalformedEvents(t *testing.T) {
	var c Collection[models.Download]

	next, a := Downloads(c, nil)
	require.NotNil(t, a)
	assert.Equal(t, ReasonMalformed, a.Reason)
	assert.Equal(t, 0, next.Len())

	next, a = Downloads(c, &models.DownloadAdded{Download: models.Download{ID: "p"}})
	require.NotNil(t, a)
	assert.Equal(t, ReasonMalformed, a.Reason)
	assert.Equal(t, 0, next.Len())

	next, a = Downloads(c, models.DownloadAdded{})
	require.NotNil(t, a)
	assert.Equal(t, 0, next.Len())
}

func TestDownloads_InputCollectionUnchanged(t *testing.T) {
	c, _ := applyDownloads(models.DownloadAdded{Download: models.Download{ID: "a"}})
	snapshot := c

	next, _ := Downloads(c, models.DownloadProgress{ID: "a", ProgressBytes: 5})
	before, _ := snapshot.Get("a")
	after, _ := next.Get("a")
	assert.Equal(t, int64(0), before.ProgressBytes, "snapshots must not observe later mutations")
	assert.Equal(t, int64(5), after.ProgressBytes)
}

func TestChats_TextAppendedIsOrderSensitive(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reduce := Chats(func() time.Time { return fixed })

	run := func(chunks ...string) (models.Chat, Collection[models.Chat]) {
		c, a := reduce(Collection[models.Chat]{}, models.ChatAdded{Chat: models.Chat{ID: "c", Message: ""}})
		require.Nil(t, a)
		for _, chunk := range chunks {
			c, a = reduce(c, models.TextAppended{ChatID: "c", Text: chunk})
			require.Nil(t, a)
		}
		chat, _ := c.Get("c")
		return chat, c
	}

	inOrder, _ := run("Hel", "lo")
	assert.Equal(t, "Hello", inOrder.Message)
	assert.Equal(t, fixed, inOrder.UpdatedAt.Time)

	reversed, _ := run("lo", "Hel")
	assert.NotEqual(t, "Hello", reversed.Message)
	assert.Equal(t, "loHel", reversed.Message)
}

func TestChats_UnknownChat(t *testing.T) {
	reduce := Chats(nil)
	c, a := reduce(Collection[models.Chat]{}, models.TextAppended{ChatID: "ghost", Text: "x"})
	require.NotNil(t, a)
	assert.Equal(t, ReasonUnknownID, a.Reason)
	assert.Equal(t, 0, c.Len())
}

func TestSummaries(t *testing.T) {
	c, a := Summaries(Collection[models.Summary]{}, models.SummaryAdded{Summary: models.Summary{ID: "s1", Title: "one"}})
	require.Nil(t, a)
	c, a = Summaries(c, models.SummaryAdded{Summary: models.Summary{ID: "s1", Title: "changed"}})
	require.NotNil(t, a)
	assert.Equal(t, ReasonDuplicate, a.Reason)

	s, _ := c.Get("s1")
	assert.Equal(t, "one", s.Title)
}

func TestCollection_OrderAndRemoval(t *testing.T) {
	c := NewCollection(
		models.Summary{ID: "a"},
		models.Summary{ID: "b"},
		models.Summary{ID: "a"},
		models.Summary{ID: "c"},
	)
	require.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"a", "b", "c"}, ids(c.All()))

	next, removed := c.Remove("b")
	require.True(t, removed)
	assert.Equal(t, []string{"a", "c"}, ids(next.All()))
	assert.Equal(t, []string{"a", "b", "c"}, ids(c.All()), "receiver must be untouched")

	_, removed = next.Remove("b")
	assert.False(t, removed)

	got, ok := next.Get("c")
	require.True(t, ok)
	assert.Equal(t, "c", got.ID)
}

func TestCollection_RevisionTracksPerEntityChanges(t *testing.T) {
	c := NewCollection(models.Download{ID: "a"}, models.Download{ID: "b"})
	revA, _ := c.Revision("a")
	revB, _ := c.Revision("b")

	c, _ = Downloads(c, models.DownloadProgress{ID: "b", ProgressBytes: 1})

	newA, _ := c.Revision("a")
	newB, _ := c.Revision("b")
	assert.Equal(t, revA, newA, "unrelated entity keeps its revision")
	assert.Greater(t, newB, revB)
}

func ids[E Entity](items []E) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.EntityID()
	}
	return out
}
