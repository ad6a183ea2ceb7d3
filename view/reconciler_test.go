package view

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/taskboard/taskboard/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFetcher serves canned results and records calls.
type fakeFetcher struct {
	mu      sync.Mutex
	results []task.Task
	err     error
	calls   int
	// block, when non-nil, is received from before returning; used to
	// simulate an in-flight fetch overtaken by a newer one.
	block chan struct{}
}

func (f *fakeFetcher) FetchTasks(_ context.Context, _ task.Filter, _ bool) ([]task.Task, error) {
	f.mu.Lock()
	f.calls++
	results, err, block := f.results, f.err, f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	out := make([]task.Task, len(results))
	copy(out, results)
	return out, nil
}

func (f *fakeFetcher) set(results []task.Task, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results, f.err, f.block = results, err, nil
}

func newTestReconciler(t *testing.T, filter task.Filter, viewAll bool) (*Reconciler, *fakeFetcher) {
	t.Helper()
	fetcher := &fakeFetcher{}
	rec := NewReconciler(NewStore(filter, viewAll), fetcher, nil, testLogger())
	return rec, fetcher
}

func TestReconciler_CreatedInsertsMatching(t *testing.T) {
	rec, _ := newTestReconciler(t, task.Filter{Status: task.StatusPending}, true)

	rec.TaskCreated(mkTask("a", time.Hour))
	if !rec.Store().Contains("a") {
		t.Fatal("matching created task should be inserted")
	}

	offFilter := mkTask("b", time.Hour)
	offFilter.Status = task.StatusCompleted
	rec.TaskCreated(offFilter)
	if rec.Store().Contains("b") {
		t.Error("non-matching created task should be ignored")
	}
}

func TestReconciler_CreatedIsIdempotent(t *testing.T) {
	rec, _ := newTestReconciler(t, task.Filter{}, true)

	ev := mkTask("a", time.Hour)
	rec.TaskCreated(ev)
	rec.TaskCreated(ev)
	if got := rec.Store().Len(); got != 1 {
		t.Errorf("Len = %d after duplicate created, want 1", got)
	}
}

func TestReconciler_UpdateMovesTaskOutOfView(t *testing.T) {
	rec, _ := newTestReconciler(t, task.Filter{Status: task.StatusPending}, true)

	rec.TaskCreated(mkTask("a", time.Hour))

	moved := mkTask("a", time.Hour)
	moved.Status = task.StatusInProgress
	rec.TaskUpdated(moved)

	if rec.Store().Contains("a") {
		t.Error("task updated out of the filter should be removed")
	}
}

func TestReconciler_UpdateMovesTaskIntoView(t *testing.T) {
	rec, _ := newTestReconciler(t, task.Filter{AssignedUserID: "u1"}, true)

	// Three tasks already visible, one absent under a different assignee.
	for i, id := range []string{"x", "y", "z"} {
		tk := mkTask(id, time.Duration(i+1)*time.Hour)
		tk.AssignedTo = task.UserIDs{"u1"}
		rec.TaskCreated(tk)
	}

	reassigned := mkTask("a", 90*time.Minute)
	reassigned.AssignedTo = task.UserIDs{"u2", "u1"}
	rec.TaskUpdated(reassigned)

	got := ids(rec.Store().Snapshot())
	want := []string{"x", "a", "y", "z"} // sorted position, not appended
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot after filter entry (-want +got):\n%s", diff)
	}
}

func TestReconciler_UpdatePreservesOrderOfUnaffected(t *testing.T) {
	rec, _ := newTestReconciler(t, task.Filter{}, true)
	for i, id := range []string{"a", "b", "c"} {
		rec.TaskCreated(mkTask(id, time.Duration(i+1)*time.Hour))
	}

	renamed := mkTask("b", 2*time.Hour)
	renamed.Title = "renamed"
	rec.TaskUpdated(renamed)

	got := ids(rec.Store().Snapshot())
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("order changed by field-only update (-want +got):\n%s", diff)
	}
}

func TestReconciler_DeletedUnknownIsNoop(t *testing.T) {
	rec, _ := newTestReconciler(t, task.Filter{}, true)
	rec.TaskCreated(mkTask("a", time.Hour))

	rec.TaskDeleted("never-seen")
	rec.TaskDeleted("a")
	if rec.Store().Len() != 0 {
		t.Errorf("Len = %d, want 0", rec.Store().Len())
	}
}

func TestReconciler_MalformedEventsDropped(t *testing.T) {
	rec, _ := newTestReconciler(t, task.Filter{}, true)

	rec.TaskCreated(task.Task{Title: "no id"})
	rec.TaskUpdated(task.Task{Title: "no id"})
	rec.TaskDeleted("")
	if rec.Store().Len() != 0 {
		t.Errorf("Len = %d, want 0", rec.Store().Len())
	}
}

func TestReconciler_RefreshReplacesContents(t *testing.T) {
	rec, fetcher := newTestReconciler(t, task.Filter{}, true)
	rec.TaskCreated(mkTask("stale", time.Hour))

	fetcher.set([]task.Task{mkTask("f1", time.Hour), mkTask("f2", 2 * time.Hour)}, nil)
	if err := rec.TasksRefreshed(context.Background()); err != nil {
		t.Fatalf("TasksRefreshed: %v", err)
	}

	got := ids(rec.Store().Snapshot())
	if diff := cmp.Diff([]string{"f1", "f2"}, got); diff != "" {
		t.Errorf("snapshot after refresh (-want +got):\n%s", diff)
	}
}

func TestReconciler_FailedRefreshRetainsContents(t *testing.T) {
	rec, fetcher := newTestReconciler(t, task.Filter{}, true)
	rec.TaskCreated(mkTask("keep", time.Hour))

	fetcher.set(nil, errors.New("boom"))
	if err := rec.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if !rec.Store().Contains("keep") {
		t.Error("failed refresh must not clear prior contents")
	}
}

func TestReconciler_SupersededFetchDiscarded(t *testing.T) {
	rec, fetcher := newTestReconciler(t, task.Filter{}, true)

	// First refresh blocks in flight with stale results.
	release := make(chan struct{})
	fetcher.mu.Lock()
	fetcher.results = []task.Task{mkTask("stale", time.Hour)}
	fetcher.block = release
	fetcher.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- rec.Refresh(context.Background()) }()

	// Wait for the first fetch to be issued before superseding it.
	for {
		fetcher.mu.Lock()
		calls := fetcher.calls
		fetcher.mu.Unlock()
		if calls == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// Second refresh under the new filter settles first.
	fetcher.set([]task.Task{mkTask("fresh", time.Hour)}, nil)
	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	got := ids(rec.Store().Snapshot())
	if diff := cmp.Diff([]string{"fresh"}, got); diff != "" {
		t.Errorf("stale fetch overwrote fresh result (-want +got):\n%s", diff)
	}
}

// Convergence: a mixed notification sequence consistent with the filter
// lands the store in the same state a fresh bulk fetch would produce.
func TestReconciler_Convergence(t *testing.T) {
	filter := task.Filter{Status: task.StatusPending}
	rec, fetcher := newTestReconciler(t, filter, true)

	a := mkTask("a", 3*time.Hour)
	b := mkTask("b", 2*time.Hour)
	c := mkTask("c", 1*time.Hour)

	rec.TaskCreated(a)
	rec.TaskCreated(b)
	rec.TaskCreated(b) // duplicate delivery
	rec.TaskCreated(c)

	bDone := b
	bDone.Status = task.StatusCompleted
	rec.TaskUpdated(bDone) // leaves the view
	rec.TaskDeleted("a")
	rec.TaskDeleted("a") // duplicate delivery

	incremental := ids(rec.Store().Snapshot())

	// What the server would return for the same end state.
	fetcher.set([]task.Task{c}, nil)
	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	fetched := ids(rec.Store().Snapshot())

	if diff := cmp.Diff(fetched, incremental); diff != "" {
		t.Errorf("incremental state diverged from bulk fetch (-fetch +incremental):\n%s", diff)
	}
}

// A watcher may react to a refresh by refreshing again (resync-on-resync);
// that callback must not deadlock against the reconciler's own locking.
func TestReconciler_WatcherMayRefreshDuringNotification(t *testing.T) {
	rec, fetcher := newTestReconciler(t, task.Filter{}, true)
	fetcher.set([]task.Task{mkTask("a", time.Hour)}, nil)

	// sync.Once.Do deadlocks when re-entered from its own f, so guard the
	// reentrant call with a depth counter instead.
	var depth atomic.Int32
	rec.Store().Watch(func() {
		defer depth.Add(-1)
		if depth.Add(1) == 1 {
			if err := rec.Refresh(context.Background()); err != nil {
				t.Errorf("nested refresh: %v", err)
			}
		}
	})

	done := make(chan error, 1)
	go func() { done <- rec.Refresh(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("refresh deadlocked against reentrant watcher")
	}
	if !rec.Store().Contains("a") {
		t.Error("refresh result missing after reentrant watcher")
	}
}

func TestReconciler_SeedFiltersCachedTasks(t *testing.T) {
	rec, _ := newTestReconciler(t, task.Filter{Status: task.StatusPending}, true)

	done := mkTask("done", time.Hour)
	done.Status = task.StatusCompleted
	rec.Seed([]task.Task{mkTask("a", time.Hour), done, {Title: "no id"}})

	got := ids(rec.Store().Snapshot())
	if diff := cmp.Diff([]string{"a"}, got); diff != "" {
		t.Errorf("seed should keep only matching tasks (-want +got):\n%s", diff)
	}
}
