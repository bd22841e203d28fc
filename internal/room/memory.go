// internal/room/memory.go
//
// In-memory implementation of the Store interface.
// Used when both players of a room are served by one process, and as the fake
// store for coordinator tests.
//
// Characteristics:
//   - Documents keyed by room id in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Every committed write is pushed to subscribers while the write lock is
//     held, so subscribers observe writes in commit order.
//   - State is lost when the process restarts.

package room

import (
	"context"
	"sync"
)

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu    sync.RWMutex                        // guards rooms and subs
	rooms map[string]Doc                      // keyed by room id
	subs  map[string]map[*subscriber]struct{} // watchers per room id
}

type subscriber struct {
	ch chan Doc // capacity 1, holds the latest undelivered snapshot
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{
		rooms: make(map[string]Doc),
		subs:  make(map[string]map[*subscriber]struct{}),
	}
}

func (m *memory) Create(ctx context.Context, id string, ch Changes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; ok {
		return ErrExists
	}
	d := Doc{}
	apply(d, ch)
	m.rooms[id] = d
	m.publishLocked(id, d)
	return nil
}

// Get looks up a room by id and returns a copy of its document.
func (m *memory) Get(ctx context.Context, id string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.rooms[id]; ok {
		return d.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *memory) Update(ctx context.Context, id string, ch Changes) error {
	_, err := m.UpdateIf(ctx, id, nil, ch)
	return err
}

func (m *memory) UpdateIf(ctx context.Context, id string, conds []Cond, ch Changes) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rooms[id]
	if !ok {
		return false, ErrNotFound
	}
	for _, c := range conds {
		if !c.holds(d) {
			return false, nil
		}
	}
	apply(d, ch)
	m.publishLocked(id, d)
	return true, nil
}

func (m *memory) Subscribe(ctx context.Context, id string) (<-chan Doc, error) {
	s := &subscriber{ch: make(chan Doc, 1)}

	m.mu.Lock()
	if m.subs[id] == nil {
		m.subs[id] = make(map[*subscriber]struct{})
	}
	m.subs[id][s] = struct{}{}
	if d, ok := m.rooms[id]; ok {
		s.ch <- d.Clone()
	}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[id], s)
		if len(m.subs[id]) == 0 {
			delete(m.subs, id)
		}
		close(s.ch)
		m.mu.Unlock()
	}()
	return s.ch, nil
}

// publishLocked replaces any undelivered snapshot with the latest one.
// Caller holds m.mu for writing.
func (m *memory) publishLocked(id string, d Doc) {
	for s := range m.subs[id] {
		snap := d.Clone()
		select {
		case s.ch <- snap:
			continue
		default:
		}
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- snap:
		default:
		}
	}
}
