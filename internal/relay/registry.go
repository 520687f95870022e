package relay

import (
	"sync"

	"github.com/hirelink/intercall/internal/application/metric"
)

// Registry owns the live rooms. Rooms exist only while they have members;
// nothing about them is persisted.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

func (reg *Registry) GetOrCreate(roomID string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room, exists := reg.rooms[roomID]; exists {
		return room
	}

	room := NewRoom(roomID)
	reg.rooms[roomID] = room
	metric.SetActiveRooms(len(reg.rooms))

	return room
}

func (reg *Registry) Get(roomID string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	room, ok := reg.rooms[roomID]
	return room, ok
}

func (reg *Registry) Remove(roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	delete(reg.rooms, roomID)
	metric.SetActiveRooms(len(reg.rooms))
}

func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.rooms)
}
