package session

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/hirelink/intercall/internal/domain/events"
)

// Signaler is the session's view of the relay connection: an inbound
// envelope channel and an outbound send. The signal.Client implements it;
// tests substitute channel-backed fakes.
type Signaler interface {
	Send(typ string, payload any) error
	Incoming() <-chan events.Message
	Close()
}

// TrackSender is the slice of an RTP sender the track controller needs:
// swapping the outgoing track without renegotiation.
type TrackSender interface {
	ReplaceTrack(track webrtc.TrackLocal) error
}

// Peer abstracts the underlying peer connection. Offer and answer creation
// wait for ICE gathering to complete before returning, so each negotiation
// direction costs exactly one envelope (no trickle).
type Peer interface {
	AddTrack(track webrtc.TrackLocal) (TrackSender, error)

	CreateOffer(ctx context.Context) (string, error)
	CreateAnswer(ctx context.Context, remoteOffer string) (string, error)
	SetRemoteAnswer(sdp string) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	OnConnectionUp(fn func())
	OnRemoteTrack(fn func(track *webrtc.TrackRemote))
	OnFailure(fn func(err error))

	Close() error
}
