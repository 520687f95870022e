package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
)

// Envelope type tags. Offer, answer and ice-candidate are directed (carry a
// target connection id); chat and screen-share notices are room broadcasts.
const (
	TypeJoinRoom         = "join-room"
	TypeUserJoined       = "user-joined"
	TypeOffer            = "offer"
	TypeAnswer           = "answer"
	TypeIceCandidate     = "ice-candidate"
	TypeUserLeft         = "user-left"
	TypeLeaveRoom        = "leave-room"
	TypeStartScreenShare = "start-screen-share"
	TypeStopScreenShare  = "stop-screen-share"
	TypeSendMessage      = "send-message"
	TypeReceiveMessage   = "receive-message"
	TypeError            = "error"
	TypePing             = "ping"
	TypePong             = "pong"
)

// Message is the wire envelope for every relay event.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps a payload into an envelope of the given type.
func NewMessage(typ string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}

	return Message{Type: typ, Data: data}, nil
}

// JoinEvent is sent by a client entering a room.
type JoinEvent struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// PeerJoinedEvent is delivered to members that were already in the room,
// never to the joiner itself. The receiver becomes the initiator.
type PeerJoinedEvent struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	ConnectionID string `json:"connection_id"`
}

// SdpEvent carries an offer or answer to a single connection. From is
// stamped by the relay on forwarding so the receiver can address its reply.
type SdpEvent struct {
	RoomID string `json:"room_id"`
	SDP    string `json:"sdp"`
	To     string `json:"to"`
	From   string `json:"from,omitempty"`
}

// IceCandidateEvent carries one gathered candidate to a single connection.
type IceCandidateEvent struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	To        string                  `json:"to"`
	From      string                  `json:"from,omitempty"`
}

type PeerLeftEvent struct {
	UserID string `json:"user_id"`
}

type LeaveEvent struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type ScreenShareEvent struct {
	RoomID string `json:"room_id"`
}

type ChatEvent struct {
	RoomID    string    `json:"room_id"`
	Text      string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
