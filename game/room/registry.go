package room

import (
	"sort"
	"sync"
)

// Registry owns every live room, keyed by name. Rooms are created on first
// reference and dropped as soon as they become empty.
type Registry struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// GetOrCreate returns the room called name, creating it when absent.
func (r *Registry) GetOrCreate(name string) (room *Room, created bool) {
	r.mu.RLock()
	room, exists := r.rooms[name]
	r.mu.RUnlock()
	if exists {
		return room, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if room, exists := r.rooms[name]; exists {
		return room, false
	}

	room = New(name)
	r.rooms[name] = room
	return room, true
}

// Lookup returns the room called name, if any.
func (r *Registry) Lookup(name string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[name]
	return room, ok
}

// RemoveIfEmpty drops the room called name when it has no members left and
// reports whether it did. A dropped room refuses further AddUser calls.
func (r *Registry) RemoveIfEmpty(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[name]
	if !ok {
		return false
	}
	if !room.closeIfEmpty() {
		return false
	}
	delete(r.rooms, name)
	return true
}

// List returns all live rooms ordered by name.
func (r *Registry) List() []*Room {
	r.mu.RLock()
	result := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		result = append(result, room)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})
	return result
}

// Count returns the number of live rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
