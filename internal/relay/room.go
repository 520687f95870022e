package relay

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hirelink/intercall/internal/domain"
)

// MaxMembers is the hard cap on room membership. Interview calls are strictly
// one-to-one; a third join attempt is rejected, never queued.
const MaxMembers = 2

type Member struct {
	UserID       string
	Username     string
	ConnectionID uuid.UUID
}

// Room tracks the members that can signal one another. It is created
// implicitly on first join and discarded once the last member leaves.
type Room struct {
	id string

	mu      sync.RWMutex
	members map[string]Member
}

func NewRoom(id string) *Room {
	return &Room{
		id:      id,
		members: make(map[string]Member, MaxMembers),
	}
}

func (r *Room) ID() string {
	return r.id
}

// Add inserts the member and returns the members that were already present,
// so the caller can notify them (and only them) of the arrival. Re-joining
// with the same user id replaces the stale entry instead of counting twice.
func (r *Room) Add(m Member) ([]Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, rejoining := r.members[m.UserID]; !rejoining && len(r.members) >= MaxMembers {
		return nil, domain.ErrRoomFull
	}

	existing := make([]Member, 0, len(r.members))
	for id, member := range r.members {
		if id != m.UserID {
			existing = append(existing, member)
		}
	}

	r.members[m.UserID] = m

	return existing, nil
}

// Remove deletes the member by user id and returns the remaining members.
func (r *Room) Remove(userID string) (removed Member, remaining []Member, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, ok = r.members[userID]
	if !ok {
		return Member{}, nil, false
	}

	delete(r.members, userID)

	remaining = make([]Member, 0, len(r.members))
	for _, m := range r.members {
		remaining = append(remaining, m)
	}

	return removed, remaining, true
}

func (r *Room) Members() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}

	return members
}

func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.members)
}

func (r *Room) Empty() bool {
	return r.Size() == 0
}
