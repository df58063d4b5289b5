package service

import (
	"slices"
	"sync"
)

// Notifier fans session changes out to registered listeners.
// Backends embed it to implement OnSessionChange.
type Notifier struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]SessionListener
}

// OnSessionChange registers l. The returned function removes it and may be
// called more than once.
func (n *Notifier) OnSessionChange(l SessionListener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listeners == nil {
		n.listeners = make(map[int]SessionListener)
	}
	id := n.next
	n.next++
	n.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// Notify calls every listener with the change. Listeners run outside the lock
// in registration order.
func (n *Notifier) Notify(event SessionEvent, s *Session) {
	n.mu.RLock()
	ids := make([]int, 0, len(n.listeners))
	for id := range n.listeners {
		ids = append(ids, id)
	}
	n.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		n.mu.RLock()
		l, ok := n.listeners[id]
		n.mu.RUnlock()
		if ok {
			l(event, s)
		}
	}
}

// Listeners returns the number of registered listeners.
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
