// Package state holds the client-side task list and reconciles it with the
// remote store.
package state

import "todo/internal/service"

// State is the task list as the interface sees it.
type State struct {
	// Items is newest first and never holds two tasks with the same ID.
	Items []service.Task

	// Loading is true while the initial fetch is in flight.
	Loading bool

	// Err is the most recent failure, nil when there is nothing to show.
	Err *service.Error
}

// Initial is the state of a container that has not fetched yet.
func Initial() State {
	return State{Loading: true}
}

// Find returns the task with id.
func (s State) Find(id int64) (service.Task, bool) {
	for _, t := range s.Items {
		if t.ID == id {
			return t, true
		}
	}
	return service.Task{}, false
}

// ErrorMessage returns the banner text, or "" when there is no error.
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Empty reports whether the empty-list message should be shown.
func (s State) Empty() bool {
	return !s.Loading && len(s.Items) == 0
}

// Stats is the completed/total counter.
type Stats struct {
	Completed int
	Total     int
}

// Stats derives the counter from the items.
func (s State) Stats() Stats {
	st := Stats{Total: len(s.Items)}
	for _, t := range s.Items {
		if t.Completed {
			st.Completed++
		}
	}
	return st
}

// clone returns a copy that shares nothing mutable with s.
func (s State) clone() State {
	c := s
	if s.Items != nil {
		c.Items = append([]service.Task(nil), s.Items...)
	}
	return c
}
