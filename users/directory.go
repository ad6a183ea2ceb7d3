// Package users caches the user directory for assignee resolution in the
// search predicate.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/taskboard/taskboard/client"
	"github.com/taskboard/taskboard/task"
)

// Lister fetches the remote user directory.
type Lister interface {
	ListUsers(ctx context.Context) ([]client.User, error)
}

// Directory is an in-memory user cache satisfying the predicate's lookup
// interface. Lookups never hit the network; Prime refreshes the cache.
type Directory struct {
	mu     sync.RWMutex
	byID   map[string]task.UserInfo
	lister Lister
	logger *slog.Logger
}

// New creates an empty directory backed by the given lister.
func New(lister Lister, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		byID:   make(map[string]task.UserInfo),
		lister: lister,
		logger: logger,
	}
}

// Prime replaces the cache with the current remote directory. On failure the
// previous contents are kept; search then degrades to raw-id matching for
// unknown users rather than breaking the view.
func (d *Directory) Prime(ctx context.Context) error {
	users, err := d.lister.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("prime user directory: %w", err)
	}

	byID := make(map[string]task.UserInfo, len(users))
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		byID[u.ID] = task.UserInfo{
			DisplayName: u.DisplayName,
			Username:    u.Username,
			Email:       u.Email,
		}
	}

	d.mu.Lock()
	d.byID = byID
	d.mu.Unlock()
	d.logger.Debug("user directory primed", slog.Int("users", len(byID)))
	return nil
}

// Lookup resolves an assignee id to a known user.
func (d *Directory) Lookup(id string) (task.UserInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	return u, ok
}
