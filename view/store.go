// Package view implements the live task view: an ordered in-memory store,
// the reconciler that keeps it consistent with remote events, and the
// coordinator for optimistic mutations.
package view

import (
	"sort"
	"sync"

	"github.com/taskboard/taskboard/task"
)

// Store holds the filtered, ordered task collection backing a single view.
// It is a cache of remote state, never the source of truth. Entries are
// sorted by createdAt descending; ties keep insertion order. All methods are
// safe for concurrent use, with mutations serialized by a single mutex.
type Store struct {
	mu      sync.RWMutex
	entries []task.Task
	filter  task.Filter
	viewAll bool

	watchers    map[int]func()
	nextWatcher int
}

// NewStore creates an empty store for the given view filter and caller
// capability.
func NewStore(filter task.Filter, viewAll bool) *Store {
	return &Store{filter: filter, viewAll: viewAll, watchers: make(map[int]func())}
}

// Watch registers fn to run after every mutation that may have changed the
// visible set, so readers know to take a fresh snapshot. Watchers are
// invoked with no store or reconciler locks held and may call back into
// either. The returned function unregisters it.
func (s *Store) Watch(fn func()) (unwatch func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextWatcher++
	id := s.nextWatcher
	s.watchers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// notify invokes watchers outside the lock.
func (s *Store) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// Filter returns the active filter.
func (s *Store) Filter() task.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// ViewAll reports whether the caller may see other users' tasks.
func (s *Store) ViewAll() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewAll
}

// SetView changes the active filter and capability. Contents are left alone;
// the caller is expected to follow with a refresh that replaces them.
func (s *Store) SetView(filter task.Filter, viewAll bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	s.viewAll = viewAll
}

// ReplaceAll swaps the entire contents for the given tasks, deduplicated by
// id (first occurrence wins) and re-sorted.
func (s *Store) ReplaceAll(tasks []task.Task) {
	s.replaceAll(tasks)
	s.notify()
}

// replaceAll is ReplaceAll without the watcher notification, for callers
// that must defer it until after their own locks are released.
func (s *Store) replaceAll(tasks []task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(tasks))
	s.entries = s.entries[:0]
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		s.entries = append(s.entries, t)
	}
	s.resortLocked()
}

// Upsert inserts t, or overwrites the entry with the same id, then restores
// sort order.
func (s *Store) Upsert(t task.Task) {
	s.mu.Lock()
	replaced := false
	for i := range s.entries {
		if s.entries[i].ID == t.ID {
			s.entries[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		s.entries = append(s.entries, t)
	}
	s.resortLocked()
	s.mu.Unlock()

	s.notify()
}

// Remove deletes the entry with the given id. Absence is not an error.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	removed := false
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if removed {
		s.notify()
	}
	return removed
}

// Get returns the entry with the given id, if present.
func (s *Store) Get(id string) (task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			return s.entries[i], true
		}
	}
	return task.Task{}, false
}

// Contains reports whether an entry with the given id is present.
func (s *Store) Contains(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a read-only ordered copy of the current contents.
func (s *Store) Snapshot() []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]task.Task, len(s.entries))
	copy(out, s.entries)
	return out
}

// resortLocked restores createdAt-descending order. The stable sort keeps
// insertion order among equal keys. A full re-sort per mutation is fine at
// the expected scale of hundreds of tasks.
func (s *Store) resortLocked() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].CreatedAt.After(s.entries[j].CreatedAt)
	})
}
