package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/scribe/pkg/metrics"
	"github.com/grovetools/scribe/pkg/models"
	"github.com/grovetools/scribe/pkg/reconcile"
)

type downloads = Store[models.Download, models.DownloadEvent]

func newDownloads(opts ...Option) *downloads {
	return New[models.Download, models.DownloadEvent](reconcile.Downloads, opts...)
}

func added(id string) models.DownloadEvent {
	return models.DownloadAdded{Download: models.Download{ID: id, Size: 100, Status: models.DownloadPending}}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	panic("unreachable")
}

func assertQuiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_DispatchAndRead(t *testing.T) {
	s := newDownloads()

	assert.True(t, s.Dispatch(added("d1")))
	assert.False(t, s.Dispatch(added("d1")), "repeat add must not change the store")
	assert.True(t, s.Dispatch(models.DownloadProgress{ID: "d1", ProgressBytes: 50}))
	assert.False(t, s.Dispatch(models.DownloadProgress{ID: "ghost", ProgressBytes: 50}))

	all := s.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, int64(50), all[0].ProgressBytes)

	d, ok := s.GetByID("d1")
	require.True(t, ok)
	assert.Equal(t, models.DownloadPending, d.Status)

	_, ok = s.GetByID("ghost")
	assert.False(t, ok)
}

func TestStore_AppendDeduplicates(t *testing.T) {
	s := newDownloads()
	n := s.Append(models.Download{ID: "a"}, models.Download{ID: "b"}, models.Download{ID: "a"})
	assert.Equal(t, 2, n)

	n = s.Append(models.Download{ID: "b"}, models.Download{ID: "c"})
	assert.Equal(t, 1, n)

	var ids []string
	for _, d := range s.GetAll() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestStore_SubscribeDeliversSnapshots(t *testing.T) {
	s := newDownloads()
	ch, cancel := s.Subscribe()
	defer cancel()

	initial := recv(t, ch)
	assert.Equal(t, 0, initial.Len())

	s.Dispatch(added("d1"))
	snap := recv(t, ch)
	require.Equal(t, 1, snap.Len())

	// Later mutations never show up in a delivered snapshot.
	s.Dispatch(models.DownloadProgress{ID: "d1", ProgressBytes: 10})
	d, _ := snap.Get("d1")
	assert.Equal(t, int64(0), d.ProgressBytes)

	// Rejected events do not notify.
	recv(t, ch)
	s.Dispatch(models.DownloadProgress{ID: "ghost", ProgressBytes: 10})
	assertQuiet(t, ch)
}

func TestStore_SlowSubscriberGetsLatest(t *testing.T) {
	s := newDownloads()
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 1; i <= 20; i++ {
		s.Dispatch(added(fmt.Sprintf("d%d", i)))
	}

	snap := recv(t, ch)
	assert.Equal(t, 20, snap.Len())
	assertQuiet(t, ch)
}

func TestStore_UnsubscribeIsIdempotent(t *testing.T) {
	m := metrics.New()
	s := newDownloads(WithName("downloads"), WithMetrics(m))
	ch, cancel := s.Subscribe()

	cancel()
	assert.NotPanics(t, cancel)

	<-ch // initial snapshot
	_, open := <-ch
	assert.False(t, open)

	assert.NotPanics(t, func() { s.Dispatch(added("d1")) })
}

func TestStore_RemoveCallsBackendFirst(t *testing.T) {
	var calls []string
	fail := errors.New("backend says no")
	s := newDownloads(WithDeleter(func(ctx context.Context, id string) error {
		calls = append(calls, id)
		if id == "keep" {
			return fail
		}
		return nil
	}))
	s.Append(models.Download{ID: "keep"}, models.Download{ID: "drop"})

	err := s.Remove(context.Background(), "keep")
	assert.ErrorIs(t, err, fail)
	_, ok := s.GetByID("keep")
	assert.True(t, ok, "failed backend removal must keep the entity")

	require.NoError(t, s.Remove(context.Background(), "drop"))
	_, ok = s.GetByID("drop")
	assert.False(t, ok)

	assert.Equal(t, []string{"keep", "drop"}, calls)
}

func TestStore_RemoveIgnoresCallerCancellation(t *testing.T) {
	var sawCancel bool
	s := newDownloads(WithDeleter(func(ctx context.Context, id string) error {
		sawCancel = ctx.Err() != nil
		return nil
	}))
	s.Append(models.Download{ID: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Remove(ctx, "a"))
	assert.False(t, sawCancel)
	assert.Equal(t, 0, len(s.GetAll()))
}

func TestStore_RemoveAfterCloseIsDropped(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	s := newDownloads(WithDeleter(func(ctx context.Context, id string) error {
		close(entered)
		<-release
		return nil
	}))
	s.Append(models.Download{ID: "a"})

	done := make(chan error, 1)
	go func() { done <- s.Remove(context.Background(), "a") }()

	<-entered
	s.Close()
	close(release)

	require.NoError(t, <-done)
	_, ok := s.GetByID("a")
	assert.True(t, ok, "a closed store keeps its final snapshot")
}

func TestStore_RemoveWhere(t *testing.T) {
	s := New[models.Chat, models.ChatEvent](reconcile.Chats(nil))
	s.Append(
		models.Chat{ID: "c1", SummaryID: "s1"},
		models.Chat{ID: "c2", SummaryID: "s2"},
		models.Chat{ID: "c3", SummaryID: "s1"},
	)

	n := s.RemoveWhere(func(c models.Chat) bool { return c.SummaryID == "s1" })
	assert.Equal(t, 2, n)
	require.Len(t, s.GetAll(), 1)
	assert.Equal(t, "c2", s.GetAll()[0].ID)

	assert.Equal(t, 0, s.RemoveWhere(func(c models.Chat) bool { return c.SummaryID == "s1" }))
}

func TestStore_Close(t *testing.T) {
	s := newDownloads()
	ch, cancel := s.Subscribe()
	recv(t, ch)

	s.Dispatch(added("d1"))
	s.Close()
	s.Close()
	assert.True(t, s.Closed())

	// Possibly one pending snapshot, then closed.
	for range ch {
	}
	assert.NotPanics(t, cancel)

	assert.False(t, s.Dispatch(added("d2")))
	assert.Equal(t, 0, s.Append(models.Download{ID: "d3"}))
	assert.False(t, s.RemoveLocal("d1"))
	assert.Len(t, s.GetAll(), 1)

	late, _ := s.Subscribe()
	_, open := <-late
	assert.False(t, open)
}

func TestStore_WatchOnlyFiresForSelectedEntity(t *testing.T) {
	s := newDownloads()
	s.Dispatch(added("a"))
	s.Dispatch(added("b"))

	ch, cancel := s.Watch("a")
	defer cancel()

	first := recv(t, ch)
	require.True(t, first.Present)
	assert.Equal(t, "a", first.Value.ID)

	s.Dispatch(models.DownloadProgress{ID: "b", ProgressBytes: 10})
	assertQuiet(t, ch)

	s.Dispatch(models.DownloadProgress{ID: "a", ProgressBytes: 20})
	got := recv(t, ch)
	assert.Equal(t, int64(20), got.Value.ProgressBytes)

	s.RemoveLocal("a")
	gone := recv(t, ch)
	assert.False(t, gone.Present)
}

func TestStore_WatchClosesWithStore(t *testing.T) {
	s := newDownloads()
	ch, _ := s.Watch("a")
	recv(t, ch)

	s.Close()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestCount(t *testing.T) {
	s := newDownloads()
	active := func(d models.Download) bool { return d.Status.IsActive() }

	ch, cancel := Count(s, active)
	defer cancel()
	assert.Equal(t, 0, recv(t, ch))

	s.Dispatch(added("a"))
	s.Dispatch(models.DownloadStatusChanged{ID: "a", Status: models.DownloadDownloading})
	require.Eventually(t, func() bool {
		select {
		case n := <-ch:
			return n == 1
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestStore_ConcurrentDispatchKeepsInvariants(t *testing.T) {
	s := newDownloads()
	ch, cancel := s.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("d%d", i%10)
				s.Dispatch(added(id))
				s.Dispatch(models.DownloadProgress{ID: id, ProgressBytes: int64(i)})
				_ = s.GetAll()
			}
		}(w)
	}

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
			case <-stop:
				return
			}
		}
	}()

	wg.Wait()
	close(stop)

	all := s.GetAll()
	assert.Len(t, all, 10)
	seen := map[string]bool{}
	for _, d := range all {
		assert.False(t, seen[d.ID], "duplicate %s", d.ID)
		seen[d.ID] = true
	}
}
