// Package rollback collects compensating actions for multi-step operations
// that must be undone when a later step fails.
package rollback

import (
	"context"
	"sync"
)

// Action undoes one completed step.
type Action func(ctx context.Context)

// List is a stack of compensations. The zero value is ready to use.
type List struct {
	mu      sync.Mutex
	actions []Action
}

// Add registers a compensation for a step that has just succeeded.
func (l *List) Add(action Action) {
	if action == nil {
		return
	}
	l.mu.Lock()
	l.actions = append(l.actions, action)
	l.mu.Unlock()
}

// Len reports how many compensations are pending.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actions)
}

// Run executes the compensations newest first and clears the list.
// It runs on a context detached from ctx's cancellation so that an aborted
// request still cleans up.
func (l *List) Run(ctx context.Context) {
	l.mu.Lock()
	actions := l.actions
	l.actions = nil
	l.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	for i := len(actions) - 1; i >= 0; i-- {
		actions[i](ctx)
	}
}

// Discard drops the pending compensations once the operation has committed.
func (l *List) Discard() {
	l.mu.Lock()
	l.actions = nil
	l.mu.Unlock()
}
