package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/taskboard/taskboard/task"
)

// Fetcher performs the bulk read backing a view. Implementations pick the
// endpoint (all tasks, completed, on hold) and must honor the capability
// gating: without viewAll the search and user criteria are never sent.
type Fetcher interface {
	FetchTasks(ctx context.Context, f task.Filter, viewAll bool) ([]task.Task, error)
}

// FetchFunc adapts a plain function to the Fetcher interface.
type FetchFunc func(ctx context.Context, f task.Filter, viewAll bool) ([]task.Task, error)

// FetchTasks calls f.
func (f FetchFunc) FetchTasks(ctx context.Context, flt task.Filter, viewAll bool) ([]task.Task, error) {
	return f(ctx, flt, viewAll)
}

// Reconciler applies bulk-fetch results and push notifications to a Store,
// re-evaluating filter membership on every event. Events must be handed to
// it in arrival order; it performs no reordering or batching of its own.
type Reconciler struct {
	store   *Store
	fetcher Fetcher
	dir     task.Directory
	logger  *slog.Logger

	// Each bulk fetch is tagged with a generation so a response that
	// resolves after a newer fetch was issued is discarded instead of
	// overwriting fresher contents.
	genMu      sync.Mutex
	generation uint64
}

// NewReconciler wires a reconciler to its store and fetch source. dir may be
// nil when assignee resolution is unavailable.
func NewReconciler(store *Store, fetcher Fetcher, dir task.Directory, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, fetcher: fetcher, dir: dir, logger: logger}
}

// Store returns the store this reconciler mutates.
func (r *Reconciler) Store() *Store { return r.store }

func (r *Reconciler) matches(t task.Task) bool {
	return task.Matches(t, r.store.Filter(), r.store.ViewAll(), r.dir)
}

// TaskCreated handles a task:created notification. The task is inserted only
// if it matches the active filter and is not already present; a duplicate
// delivery is a no-op.
func (r *Reconciler) TaskCreated(t task.Task) {
	if t.ID == "" {
		r.logger.Warn("dropping created event without id")
		return
	}
	t.Normalize()
	if !r.matches(t) || r.store.Contains(t.ID) {
		return
	}
	r.store.Upsert(t)
}

// TaskUpdated handles a task:updated notification. Membership is always
// re-evaluated: a field change can push a task out of the active view, and a
// previously invisible task can move into it. An echo of a local optimistic
// mutation is handled by the same idempotent upsert as any other update.
func (r *Reconciler) TaskUpdated(t task.Task) {
	if t.ID == "" {
		r.logger.Warn("dropping updated event without id")
		return
	}
	t.Normalize()
	if r.matches(t) {
		r.store.Upsert(t)
		return
	}
	r.store.Remove(t.ID)
}

// TaskDeleted handles a task:deleted notification. Removal is unconditional
// and absence is not an error.
func (r *Reconciler) TaskDeleted(id string) {
	if id == "" {
		r.logger.Warn("dropping deleted event without id")
		return
	}
	r.store.Remove(id)
}

// TasksRefreshed handles a tasks:refreshed notification by discarding
// incremental state and refetching under the current filter. It is also the
// resync path after a stream reconnect.
func (r *Reconciler) TasksRefreshed(ctx context.Context) error {
	return r.Refresh(ctx)
}

// Refresh performs an authoritative bulk fetch and replaces the store's
// contents. On failure prior contents are retained. A response superseded by
// a newer refresh is discarded.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.genMu.Lock()
	r.generation++
	gen := r.generation
	filter, viewAll := r.store.Filter(), r.store.ViewAll()
	r.genMu.Unlock()

	tasks, err := r.fetcher.FetchTasks(ctx, filter, viewAll)
	if err != nil {
		return fmt.Errorf("refresh view: %w", err)
	}

	// The generation check and the swap stay under genMu so a superseded
	// response can never overwrite a fresher one, but watchers must only
	// fire after it is released: a watcher is free to call back into
	// Refresh or SetView.
	r.genMu.Lock()
	if gen != r.generation {
		r.logger.Debug("discarding superseded fetch result",
			slog.Uint64("generation", gen),
			slog.Uint64("current", r.generation))
		r.genMu.Unlock()
		return nil
	}

	kept := tasks[:0]
	for _, t := range tasks {
		if t.ID == "" {
			r.logger.Warn("dropping fetched task without id")
			continue
		}
		t.Normalize()
		kept = append(kept, t)
	}
	r.store.replaceAll(kept)
	r.genMu.Unlock()

	r.store.notify()
	return nil
}

// SetView switches the active filter and capability, then refetches. The
// store keeps serving the previous view until the fetch settles.
func (r *Reconciler) SetView(ctx context.Context, filter task.Filter, viewAll bool) error {
	r.store.SetView(filter, viewAll)
	return r.Refresh(ctx)
}

// Seed loads previously cached tasks without a remote round trip, keeping
// only those that match the active view. Used at startup before the first
// fetch settles.
func (r *Reconciler) Seed(tasks []task.Task) {
	kept := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		t.Normalize()
		if r.matches(t) {
			kept = append(kept, t)
		}
	}
	r.store.ReplaceAll(kept)
}
