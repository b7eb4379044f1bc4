package engine

import (
	"slices"
	"sync"
)

// entryLocks serializes mutations per entry id. Lock entries are
// refcounted so the map does not grow with the store.
type entryLocks struct {
	mu sync.Mutex
	m  map[string]*lockState
}

type lockState struct {
	mu   sync.Mutex
	refs int
}

func newEntryLocks() *entryLocks {
	return &entryLocks{m: make(map[string]*lockState)}
}

func (l *entryLocks) lock(id string) {
	l.mu.Lock()
	st, ok := l.m[id]
	if !ok {
		st = &lockState{}
		l.m[id] = st
	}
	st.refs++
	l.mu.Unlock()

	st.mu.Lock()
}

func (l *entryLocks) unlock(id string) {
	l.mu.Lock()
	st := l.m[id]
	st.refs--
	if st.refs == 0 {
		delete(l.m, id)
	}
	l.mu.Unlock()

	st.mu.Unlock()
}

// lockAll acquires ids in sorted order so overlapping bulk mutations
// cannot deadlock. The returned release undoes the whole set.
func (l *entryLocks) lockAll(ids []string) (release func()) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	slices.Sort(sorted)

	for _, id := range sorted {
		l.lock(id)
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			l.unlock(sorted[i])
		}
	}
}
