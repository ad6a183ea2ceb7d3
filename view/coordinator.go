package view

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskboard/taskboard/task"
)

// Mutator issues task mutations against the remote system. The concrete
// implementation lives in the client package.
type Mutator interface {
	CreateTask(ctx context.Context, p task.CreatePayload) (task.Task, error)
	UpdateTask(ctx context.Context, id string, p task.Patch) (task.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Coordinator wraps remote mutations with optimistic local state changes.
// Any mutation that fails is followed by an authoritative resync, so the
// store never permanently diverges from server truth.
type Coordinator struct {
	mutator    Mutator
	reconciler *Reconciler
	logger     *slog.Logger
}

// NewCoordinator wires a coordinator to its remote mutator and reconciler.
func NewCoordinator(mutator Mutator, reconciler *Reconciler, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{mutator: mutator, reconciler: reconciler, logger: logger}
}

// Create issues a remote create and, on success, refetches the view so the
// new record's membership and sort position come from the server rather
// than a local guess. On failure the store is untouched.
func (c *Coordinator) Create(ctx context.Context, p task.CreatePayload) error {
	created, err := c.mutator.CreateTask(ctx, p)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	c.logger.Info("task created", slog.String("id", created.ID))
	if err := c.reconciler.Refresh(ctx); err != nil {
		return fmt.Errorf("refetch after create: %w", err)
	}
	return nil
}

// Update applies the patch to the local entry immediately, then issues the
// remote update. Membership is re-evaluated for the patched entry, so a
// change that moves the task out of the view takes effect right away. On
// failure the optimistic patch is discarded via a full refetch. On success
// nothing more happens; the confirming push notification reconciles
// idempotently.
func (c *Coordinator) Update(ctx context.Context, id string, p task.Patch) error {
	if cur, ok := c.reconciler.Store().Get(id); ok {
		p.Apply(&cur)
		c.reconciler.TaskUpdated(cur)
	}

	if _, err := c.mutator.UpdateTask(ctx, id, p); err != nil {
		c.resync(ctx, "update", id)
		return fmt.Errorf("update task %s: %w", id, err)
	}
	return nil
}

// Delete removes the local entry immediately, then issues the remote delete.
// On failure the view is refetched to restore the record if the deletion did
// not actually happen.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	c.reconciler.TaskDeleted(id)

	if err := c.mutator.DeleteTask(ctx, id); err != nil {
		c.resync(ctx, "delete", id)
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// resync restores server truth after a failed optimistic mutation. The
// original mutation error is what the caller sees; a resync failure is only
// logged, and the next refresh or notification will converge the store.
func (c *Coordinator) resync(ctx context.Context, op, id string) {
	if err := c.reconciler.Refresh(ctx); err != nil {
		c.logger.Error("resync after failed mutation",
			slog.String("op", op),
			slog.String("id", id),
			slog.Any("err", err))
	}
}
