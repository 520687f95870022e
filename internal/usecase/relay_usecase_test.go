package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/hirelink/intercall/internal/domain/events"
	"github.com/hirelink/intercall/internal/relay"
)

// fakeConnRepo records every envelope written per connection.
type fakeConnRepo struct {
	mu     sync.Mutex
	writes map[uuid.UUID][]events.Message
	gone   map[uuid.UUID]bool
}

func newFakeConnRepo() *fakeConnRepo {
	return &fakeConnRepo{
		writes: make(map[uuid.UUID][]events.Message),
		gone:   make(map[uuid.UUID]bool),
	}
}

func (f *fakeConnRepo) Add(uuid.UUID, *websocket.Conn) {}
func (f *fakeConnRepo) Remove(uuid.UUID)               {}

func (f *fakeConnRepo) Write(connID uuid.UUID, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gone[connID] {
		return false
	}

	msg, ok := payload.(events.Message)
	if !ok {
		return false
	}

	f.writes[connID] = append(f.writes[connID], msg)
	return true
}

func (f *fakeConnRepo) sent(connID uuid.UUID) []events.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]events.Message(nil), f.writes[connID]...)
}

func newRelayFixture() (RelayUsecase, *fakeConnRepo) {
	repo := newFakeConnRepo()
	return NewRelayUsecase(relay.NewRegistry(), repo), repo
}

func join(t *testing.T, u RelayUsecase, connID uuid.UUID, roomID, userID string) {
	t.Helper()

	err := u.HandleJoin(context.Background(), connID, events.JoinEvent{
		RoomID:   roomID,
		UserID:   userID,
		Username: "user-" + userID,
	})
	require.NoError(t, err)
}

func TestHandleJoin_NotifiesOnlyExistingMembers(t *testing.T) {
	u, repo := newRelayFixture()

	connA, connB := uuid.New(), uuid.New()

	join(t, u, connA, "room-1", "alice")
	require.Empty(t, repo.sent(connA), "first joiner must not be notified")

	join(t, u, connB, "room-1", "bob")
	require.Empty(t, repo.sent(connB), "joiner must not learn of itself")

	got := repo.sent(connA)
	require.Len(t, got, 1)
	require.Equal(t, events.TypeUserJoined, got[0].Type)

	var ev events.PeerJoinedEvent
	require.NoError(t, json.Unmarshal(got[0].Data, &ev))
	require.Equal(t, "bob", ev.UserID)
	require.Equal(t, connB.String(), ev.ConnectionID)
}

func TestHandleJoin_ThirdJoinRejected(t *testing.T) {
	u, repo := newRelayFixture()

	connA, connB, connC := uuid.New(), uuid.New(), uuid.New()

	join(t, u, connA, "room-1", "alice")
	join(t, u, connB, "room-1", "bob")
	join(t, u, connC, "room-1", "carol")

	got := repo.sent(connC)
	require.Len(t, got, 1)
	require.Equal(t, events.TypeError, got[0].Type)

	var ev events.ErrorEvent
	require.NoError(t, json.Unmarshal(got[0].Data, &ev))
	require.Equal(t, "room is full", ev.Message)

	// Members already in the room never hear about the rejected join.
	require.Len(t, repo.sent(connA), 1) // only bob's user-joined
	require.Empty(t, repo.sent(connB))
}

func TestHandleOffer_ForwardsToTargetAndStampsFrom(t *testing.T) {
	u, repo := newRelayFixture()

	connA, connB := uuid.New(), uuid.New()
	join(t, u, connA, "room-1", "alice")
	join(t, u, connB, "room-1", "bob")

	err := u.HandleOffer(context.Background(), connA, events.SdpEvent{
		RoomID: "room-1",
		SDP:    "v=0 offer",
		To:     connB.String(),
	})
	require.NoError(t, err)

	got := repo.sent(connB)
	require.Len(t, got, 1)
	require.Equal(t, events.TypeOffer, got[0].Type)

	var ev events.SdpEvent
	require.NoError(t, json.Unmarshal(got[0].Data, &ev))
	require.Equal(t, "v=0 offer", ev.SDP)
	require.Equal(t, connA.String(), ev.From)
}

func TestForward_GoneTargetIsDropped(t *testing.T) {
	u, repo := newRelayFixture()

	connA := uuid.New()
	join(t, u, connA, "room-1", "alice")

	gone := uuid.New()
	repo.gone[gone] = true

	err := u.HandleAnswer(context.Background(), connA, events.SdpEvent{
		RoomID: "room-1",
		SDP:    "v=0 answer",
		To:     gone.String(),
	})
	require.NoError(t, err, "delivery to a gone connection is not an error")
}

func TestForward_InvalidTargetRepliesWithError(t *testing.T) {
	u, repo := newRelayFixture()

	connA := uuid.New()
	join(t, u, connA, "room-1", "alice")

	err := u.HandleCandidate(context.Background(), connA, events.IceCandidateEvent{
		To: "not-a-uuid",
	})
	require.NoError(t, err)

	got := repo.sent(connA)
	require.Len(t, got, 1)
	require.Equal(t, events.TypeError, got[0].Type)
}

func TestHandleChat_BroadcastSkipsSender(t *testing.T) {
	u, repo := newRelayFixture()

	connA, connB := uuid.New(), uuid.New()
	join(t, u, connA, "room-1", "alice")
	join(t, u, connB, "room-1", "bob")

	err := u.HandleChat(context.Background(), connB, events.ChatEvent{
		RoomID: "room-1",
		Text:   "hello",
		Sender: "bob",
	})
	require.NoError(t, err)

	got := repo.sent(connA)
	require.Len(t, got, 2) // user-joined, then the chat line
	require.Equal(t, events.TypeReceiveMessage, got[1].Type)

	var ev events.ChatEvent
	require.NoError(t, json.Unmarshal(got[1].Data, &ev))
	require.Equal(t, "hello", ev.Text)
	require.False(t, ev.Timestamp.IsZero(), "relay stamps missing timestamps")

	require.Empty(t, repo.sent(connB), "sender must not receive its own chat")
}

func TestHandleScreenShare_Broadcast(t *testing.T) {
	u, repo := newRelayFixture()

	connA, connB := uuid.New(), uuid.New()
	join(t, u, connA, "room-1", "alice")
	join(t, u, connB, "room-1", "bob")

	err := u.HandleScreenShare(context.Background(), connA, events.TypeStartScreenShare, events.ScreenShareEvent{
		RoomID: "room-1",
	})
	require.NoError(t, err)

	got := repo.sent(connB)
	require.Len(t, got, 1)
	require.Equal(t, events.TypeStartScreenShare, got[0].Type)
}

func TestHandleDisconnect_NotifiesRemaining(t *testing.T) {
	u, repo := newRelayFixture()

	connA, connB := uuid.New(), uuid.New()
	join(t, u, connA, "room-1", "alice")
	join(t, u, connB, "room-1", "bob")

	u.HandleDisconnect(context.Background(), connA)

	got := repo.sent(connB)
	require.Len(t, got, 1)
	require.Equal(t, events.TypeUserLeft, got[0].Type)

	var ev events.PeerLeftEvent
	require.NoError(t, json.Unmarshal(got[0].Data, &ev))
	require.Equal(t, "alice", ev.UserID)
}

func TestHandleDisconnect_LastMemberDiscardsRoom(t *testing.T) {
	registry := relay.NewRegistry()
	repo := newFakeConnRepo()
	u := NewRelayUsecase(registry, repo)

	connA := uuid.New()
	join(t, u, connA, "room-1", "alice")
	require.Equal(t, 1, registry.Count())

	u.HandleDisconnect(context.Background(), connA)
	require.Equal(t, 0, registry.Count())

	// A second disconnect for the same connection is a no-op.
	u.HandleDisconnect(context.Background(), connA)
}

func TestHandlePing_RepliesPong(t *testing.T) {
	u, repo := newRelayFixture()

	connA := uuid.New()
	u.HandlePing(context.Background(), connA)

	got := repo.sent(connA)
	require.Len(t, got, 1)
	require.Equal(t, events.TypePong, got[0].Type)
}
