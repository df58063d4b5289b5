package state

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"todo/internal/service"
)

// Fallback messages shown when a call fails without a store-reported message.
const (
	MsgLoadFailed   = "failed to load tasks"
	MsgAddFailed    = "failed to add task"
	MsgUpdateFailed = "failed to update task"
	MsgDeleteFailed = "failed to delete task"
)

// Container owns the task list of one signed-in session. Actions call the
// store and then apply exactly one reducer step; they never return errors,
// failures end up in State.Err.
//
// Store calls run without holding the lock, so several actions may be in
// flight at once. Each resolution is applied atomically.
type Container struct {
	store  service.Store
	logger log.Logger
	now    func() time.Time

	life context.Context
	stop context.CancelFunc

	mu     sync.Mutex
	state  State
	closed bool
}

// New creates a container in the initial loading state.
func New(store service.Store, logger log.Logger) *Container {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	life, stop := context.WithCancel(context.Background())
	return &Container{
		store:  store,
		logger: log.With(logger, "component", "state"),
		now:    time.Now,
		life:   life,
		stop:   stop,
		state:  Initial(),
	}
}

// Snapshot returns a copy of the current state.
func (c *Container) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Close tears the container down. In-flight calls are cancelled and their
// results discarded. Close is idempotent.
func (c *Container) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.stop()
}

// FetchAll loads every task of the signed-in owner.
func (c *Container) FetchAll(ctx context.Context) {
	if !c.dispatch(LoadStarted{}) {
		return
	}

	ctx, cancel := c.scope(ctx)
	defer cancel()

	items, err := c.store.ListItems(ctx)
	if err != nil {
		c.fail(err, MsgLoadFailed)
		return
	}
	c.dispatch(Loaded{Items: items})
}

// Add creates a task with the trimmed title. Blank titles are ignored.
func (c *Container) Add(ctx context.Context, title, owner string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}

	ctx, cancel := c.scope(ctx)
	defer cancel()

	task, err := c.store.CreateItem(ctx, title, owner)
	if err != nil {
		c.fail(err, MsgAddFailed)
		return
	}
	c.dispatch(Added{Task: task})
}

// Toggle flips the completion of a listed task once the store confirms it.
// Unknown IDs are ignored.
func (c *Container) Toggle(ctx context.Context, id int64) {
	c.mu.Lock()
	cur, ok := c.state.Find(id)
	c.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := c.scope(ctx)
	defer cancel()

	patch := service.Patch{
		Completed: !cur.Completed,
		UpdatedAt: c.now().UTC(),
	}
	updated, err := c.store.UpdateItem(ctx, id, patch)
	if err != nil {
		c.fail(err, MsgUpdateFailed)
		return
	}
	at := updated.UpdatedAt
	if at.IsZero() {
		at = patch.UpdatedAt
	}
	c.dispatch(Toggled{ID: id, Completed: patch.Completed, UpdatedAt: at})
}

// Remove deletes a task. Removing an ID that is not listed still asks the store.
func (c *Container) Remove(ctx context.Context, id int64) {
	ctx, cancel := c.scope(ctx)
	defer cancel()

	if err := c.store.DeleteItem(ctx, id); err != nil {
		c.fail(err, MsgDeleteFailed)
		return
	}
	c.dispatch(Removed{ID: id})
}

// ClearError dismisses the current error.
func (c *Container) ClearError() {
	c.dispatch(ErrorCleared{})
}

// scope derives a call context that is also cancelled by Close.
func (c *Container) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Container) fail(err error, fallback string) {
	e := service.Describe(err, fallback)
	level.Debug(c.logger).Log("msg", "store call failed", "kind", e.Kind, "err", err)
	c.dispatch(Failed{Err: e})
}

// dispatch applies a under the lock. It reports false when the container is
// closed and the action was dropped.
func (c *Container) dispatch(a Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		level.Debug(c.logger).Log("msg", "discarding stale resolution", "action", actionName(a))
		return false
	}
	c.state = Reduce(c.state, a)
	return true
}

func actionName(a Action) string {
	switch a.(type) {
	case LoadStarted:
		return "load_started"
	case Loaded:
		return "loaded"
	case Added:
		return "added"
	case Toggled:
		return "toggled"
	case Removed:
		return "removed"
	case Failed:
		return "failed"
	case ErrorCleared:
		return "error_cleared"
	default:
		return "unknown"
	}
}
