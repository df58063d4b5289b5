package state

import (
	"time"

	"todo/internal/service"
)

// Action is a resolved event the reducer applies to a State.
type Action interface {
	action()
}

// LoadStarted marks the start of a fetch.
type LoadStarted struct{}

// Loaded replaces the items with a fetched list.
type Loaded struct {
	Items []service.Task
}

// Added prepends a created task.
type Added struct {
	Task service.Task
}

// Toggled records a confirmed completion change.
type Toggled struct {
	ID        int64
	Completed bool
	UpdatedAt time.Time
}

// Removed drops a deleted task.
type Removed struct {
	ID int64
}

// Failed records a failed store call.
type Failed struct {
	Err *service.Error
}

// ErrorCleared dismisses the error.
type ErrorCleared struct{}

func (LoadStarted) action()  {}
func (Loaded) action()       {}
func (Added) action()        {}
func (Toggled) action()      {}
func (Removed) action()      {}
func (Failed) action()       {}
func (ErrorCleared) action() {}

// Reduce returns the state after a. It never modifies s and never produces
// duplicate IDs.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case LoadStarted:
		s.Loading = true
		s.Err = nil
		return s
	case Loaded:
		s.Items = dedupe(a.Items)
		s.Loading = false
		return s
	case Added:
		return add(s, a.Task)
	case Toggled:
		items := make([]service.Task, len(s.Items))
		for i, t := range s.Items {
			if t.ID == a.ID {
				t.Completed = a.Completed
				if !a.UpdatedAt.IsZero() {
					t.UpdatedAt = a.UpdatedAt
				}
			}
			items[i] = t
		}
		s.Items = items
		return s
	case Removed:
		items := make([]service.Task, 0, len(s.Items))
		for _, t := range s.Items {
			if t.ID != a.ID {
				items = append(items, t)
			}
		}
		s.Items = items
		return s
	case Failed:
		s.Err = a.Err
		s.Loading = false
		return s
	case ErrorCleared:
		s.Err = nil
		return s
	default:
		return s
	}
}

// add prepends t, or replaces the entry in place when t.ID is already listed.
func add(s State, t service.Task) State {
	if _, ok := s.Find(t.ID); ok {
		items := make([]service.Task, len(s.Items))
		for i, cur := range s.Items {
			if cur.ID == t.ID {
				cur = t
			}
			items[i] = cur
		}
		s.Items = items
		return s
	}
	items := make([]service.Task, 0, len(s.Items)+1)
	items = append(items, t)
	s.Items = append(items, s.Items...)
	return s
}

// dedupe keeps the first occurrence of every ID.
func dedupe(in []service.Task) []service.Task {
	out := make([]service.Task, 0, len(in))
	seen := make(map[int64]bool, len(in))
	for _, t := range in {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}
