package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hirelink/intercall/internal/application/constant"
	"github.com/hirelink/intercall/internal/application/metric"
	"github.com/hirelink/intercall/internal/domain"
	"github.com/hirelink/intercall/internal/domain/events"
	"github.com/hirelink/intercall/internal/infra/adapters/memory"
	"github.com/hirelink/intercall/internal/relay"
)

// RelayUsecase is the server half of the signaling contract: room-scoped
// membership plus envelope forwarding. Directed envelopes (offer, answer,
// ice-candidate) are delivered to exactly the connection named by `to`;
// chat and screen-share notices are broadcast to the room minus the sender.
type RelayUsecase interface {
	HandleJoin(ctx context.Context, connID uuid.UUID, ev events.JoinEvent) error
	HandleLeave(ctx context.Context, connID uuid.UUID) error

	HandleOffer(ctx context.Context, connID uuid.UUID, ev events.SdpEvent) error
	HandleAnswer(ctx context.Context, connID uuid.UUID, ev events.SdpEvent) error
	HandleCandidate(ctx context.Context, connID uuid.UUID, ev events.IceCandidateEvent) error

	HandleChat(ctx context.Context, connID uuid.UUID, ev events.ChatEvent) error
	HandleScreenShare(ctx context.Context, connID uuid.UUID, eventType string, ev events.ScreenShareEvent) error

	HandlePing(ctx context.Context, connID uuid.UUID)
	HandleDisconnect(ctx context.Context, connID uuid.UUID)
}

type membership struct {
	roomID string
	userID string
}

type relayUsecase struct {
	registry *relay.Registry
	connRepo memory.ConnectionRepository

	mu          sync.RWMutex
	memberships map[uuid.UUID]membership
}

func NewRelayUsecase(registry *relay.Registry, connRepo memory.ConnectionRepository) RelayUsecase {
	return &relayUsecase{
		registry:    registry,
		connRepo:    connRepo,
		memberships: make(map[uuid.UUID]membership),
	}
}

func (u *relayUsecase) HandleJoin(ctx context.Context, connID uuid.UUID, ev events.JoinEvent) error {
	metric.RecordEnvelope(events.TypeJoinRoom)

	if ev.RoomID == "" || ev.UserID == "" {
		u.writeError(connID, "room_id and user_id are required")
		return nil
	}

	room := u.registry.GetOrCreate(ev.RoomID)

	existing, err := room.Add(relay.Member{
		UserID:       ev.UserID,
		Username:     ev.Username,
		ConnectionID: connID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrRoomFull) {
			metric.RecordJoinRejected()
			u.writeError(connID, "room is full")

			if room.Empty() {
				u.registry.Remove(ev.RoomID)
			}

			return nil
		}

		return fmt.Errorf("add member to room: %w", err)
	}

	u.mu.Lock()
	u.memberships[connID] = membership{roomID: ev.RoomID, userID: ev.UserID}
	u.mu.Unlock()

	slog.Info(
		"client joined room",
		slog.String(constant.RoomID, ev.RoomID),
		slog.String(constant.UserID, ev.UserID),
		slog.Any(constant.ConnectionID, connID),
	)

	// The joiner is told nothing; only members that were already present
	// learn of the arrival. Whoever receives user-joined becomes the
	// initiator, which is what prevents dual-offer glare.
	joined, err := events.NewMessage(events.TypeUserJoined, events.PeerJoinedEvent{
		UserID:       ev.UserID,
		Username:     ev.Username,
		ConnectionID: connID.String(),
	})
	if err != nil {
		return err
	}

	for _, m := range existing {
		u.connRepo.Write(m.ConnectionID, joined)
	}

	return nil
}

func (u *relayUsecase) HandleLeave(ctx context.Context, connID uuid.UUID) error {
	metric.RecordEnvelope(events.TypeLeaveRoom)

	u.mu.Lock()
	member, ok := u.memberships[connID]
	delete(u.memberships, connID)
	u.mu.Unlock()

	if !ok {
		return nil
	}

	room, ok := u.registry.Get(member.roomID)
	if !ok {
		return nil
	}

	_, remaining, ok := room.Remove(member.userID)
	if !ok {
		return nil
	}

	slog.Info(
		"client left room",
		slog.String(constant.RoomID, member.roomID),
		slog.String(constant.UserID, member.userID),
	)

	if room.Empty() {
		u.registry.Remove(member.roomID)
		return nil
	}

	left, err := events.NewMessage(events.TypeUserLeft, events.PeerLeftEvent{UserID: member.userID})
	if err != nil {
		return err
	}

	for _, m := range remaining {
		u.connRepo.Write(m.ConnectionID, left)
	}

	return nil
}

func (u *relayUsecase) HandleOffer(ctx context.Context, connID uuid.UUID, ev events.SdpEvent) error {
	metric.RecordEnvelope(events.TypeOffer)
	ev.From = connID.String()
	return u.forward(connID, events.TypeOffer, ev.To, ev)
}

func (u *relayUsecase) HandleAnswer(ctx context.Context, connID uuid.UUID, ev events.SdpEvent) error {
	metric.RecordEnvelope(events.TypeAnswer)
	ev.From = connID.String()
	return u.forward(connID, events.TypeAnswer, ev.To, ev)
}

func (u *relayUsecase) HandleCandidate(ctx context.Context, connID uuid.UUID, ev events.IceCandidateEvent) error {
	metric.RecordEnvelope(events.TypeIceCandidate)
	ev.From = connID.String()
	return u.forward(connID, events.TypeIceCandidate, ev.To, ev)
}

// forward delivers a directed envelope to the connection named by `to`.
// A missing target means the peer is already gone; the envelope is dropped.
func (u *relayUsecase) forward(from uuid.UUID, eventType, to string, payload any) error {
	target, err := uuid.Parse(to)
	if err != nil {
		u.writeError(from, "invalid target connection id")
		return nil
	}

	msg, err := events.NewMessage(eventType, payload)
	if err != nil {
		return err
	}

	if !u.connRepo.Write(target, msg) {
		slog.Debug(
			"dropped envelope for gone connection",
			slog.String(constant.EventType, eventType),
			slog.Any(constant.ConnectionID, target),
		)
	}

	return nil
}

func (u *relayUsecase) HandleChat(ctx context.Context, connID uuid.UUID, ev events.ChatEvent) error {
	metric.RecordEnvelope(events.TypeSendMessage)

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	msg, err := events.NewMessage(events.TypeReceiveMessage, ev)
	if err != nil {
		return err
	}

	return u.broadcast(connID, ev.RoomID, msg)
}

func (u *relayUsecase) HandleScreenShare(ctx context.Context, connID uuid.UUID, eventType string, ev events.ScreenShareEvent) error {
	metric.RecordEnvelope(eventType)

	msg, err := events.NewMessage(eventType, ev)
	if err != nil {
		return err
	}

	return u.broadcast(connID, ev.RoomID, msg)
}

// broadcast delivers to every room member except the sender.
func (u *relayUsecase) broadcast(from uuid.UUID, roomID string, msg events.Message) error {
	room, ok := u.registry.Get(roomID)
	if !ok {
		return nil
	}

	for _, m := range room.Members() {
		if m.ConnectionID == from {
			continue
		}
		u.connRepo.Write(m.ConnectionID, msg)
	}

	return nil
}

func (u *relayUsecase) HandlePing(ctx context.Context, connID uuid.UUID) {
	u.connRepo.Write(connID, events.Message{Type: events.TypePong})
}

// HandleDisconnect runs when the websocket read loop ends for any reason.
// It is an implicit leave, so a closed tab behaves like a polite leave-room.
func (u *relayUsecase) HandleDisconnect(ctx context.Context, connID uuid.UUID) {
	if err := u.HandleLeave(ctx, connID); err != nil {
		slog.Error(
			"handle leave on disconnect",
			slog.Any(constant.Error, err),
			slog.Any(constant.ConnectionID, connID),
		)
	}
}

func (u *relayUsecase) writeError(connID uuid.UUID, message string) {
	msg, err := events.NewMessage(events.TypeError, events.ErrorEvent{Message: message})
	if err != nil {
		return
	}

	u.connRepo.Write(connID, msg)
}
