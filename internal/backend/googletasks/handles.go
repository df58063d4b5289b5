package googletasks

import "sync"

// handleMap assigns small integer handles to Google task IDs, first seen
// first. Handles are stable for the life of the process.
type handleMap struct {
	mu      sync.Mutex
	next    int64
	byTask  map[string]int64
	byID    map[int64]string
	fetched bool
}

func newHandleMap() *handleMap {
	return &handleMap{
		next:   1,
		byTask: make(map[string]int64),
		byID:   make(map[int64]string),
	}
}

func (m *handleMap) handle(taskID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byTask[taskID]; ok {
		return id
	}
	id := m.next
	m.next++
	m.byTask[taskID] = id
	m.byID[id] = taskID
	return id
}

func (m *handleMap) taskID(id int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	taskID, ok := m.byID[id]
	return taskID, ok
}

// forget drops id. Its number is not reused.
func (m *handleMap) forget(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byTask, m.byID[id])
	delete(m.byID, id)
}

func (m *handleMap) markListed() {
	m.mu.Lock()
	m.fetched = true
	m.mu.Unlock()
}

func (m *handleMap) listed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetched
}
