package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/hirelink/intercall/internal/application/constant"
	"github.com/hirelink/intercall/internal/domain"
	"github.com/hirelink/intercall/internal/domain/events"
)

// Callbacks surface session events to the owner. All of them are invoked
// from the session's event loop, one at a time, and must not block.
type Callbacks struct {
	OnStateChange func(State)
	OnRemoteTrack func(track *webrtc.TrackRemote)
	OnChat        func(ev events.ChatEvent)
	OnScreenShare func(started bool)
}

// Session drives one call attempt against one peer connection. Relay
// envelopes and peer-connection events are funneled into a single event
// loop, so no two handlers ever run concurrently; every handler is a no-op
// once the session is terminated, because envelopes can still arrive after
// a local teardown has begun.
type Session struct {
	roomID   string
	identity domain.Identity
	signal   Signaler
	peer     Peer
	cb       Callbacks

	connectTimeout time.Duration

	inbox chan func()
	exit  chan struct{}

	exitOnce sync.Once

	mu            sync.Mutex
	state         State
	err           error
	initiator     bool
	remoteConn    string
	remoteDescSet bool
	iceUp         bool
	trackUp       bool
	pending       []webrtc.ICECandidateInit

	// timer bounds how long the session may sit in Negotiating.
	timer *time.Timer
}

func New(roomID string, identity domain.Identity, signaler Signaler, peer Peer, connectTimeout time.Duration, cb Callbacks) *Session {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	s := &Session{
		roomID:         roomID,
		identity:       identity,
		signal:         signaler,
		peer:           peer,
		cb:             cb,
		connectTimeout: connectTimeout,
		inbox:          make(chan func(), 16),
		exit:           make(chan struct{}),
		state:          StateIdle,
		timer:          timer,
	}

	peer.OnConnectionUp(func() {
		s.post(s.handleConnectionUp)
	})
	peer.OnRemoteTrack(func(track *webrtc.TrackRemote) {
		s.post(func() { s.handleRemoteTrack(track) })
	})
	peer.OnFailure(func(err error) {
		s.post(func() { s.fail(err) })
	})

	return s
}

// Join announces this client to the room. Whoever was already there will
// receive user-joined and initiate the offer; this client waits.
func (s *Session) Join() error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateAwaitingMedia {
		s.mu.Unlock()
		return fmt.Errorf("join from state %s", s.state)
	}
	s.mu.Unlock()

	s.setState(StateJoining)

	return s.signal.Send(events.TypeJoinRoom, events.JoinEvent{
		RoomID:   s.roomID,
		UserID:   s.identity.UserID,
		Username: s.identity.Username,
	})
}

// Run consumes relay and peer events until the session disconnects or is
// terminated. The returned error is the session's terminal error; a peer
// hanging up yields ErrPeerDisconnected, which callers treat as a normal
// end of call.
func (s *Session) Run(ctx context.Context) error {
	go func() {
		for msg := range s.signal.Incoming() {
			msg := msg
			s.post(func() { s.handleEnvelope(msg) })
		}
		// Inbound channel closed: the relay connection is gone.
		s.post(func() { s.disconnect(domain.ErrRelayUnreachable) })
	}()

	for {
		select {
		case <-ctx.Done():
			s.Terminate()
			return s.Err()

		case fn := <-s.inbox:
			fn()

		case <-s.timer.C:
			s.handleConnectTimeout()

		case <-s.exit:
			return s.Err()
		}
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// SendChat broadcasts a chat line to the room. Chat is ephemeral by design:
// nothing is persisted, and a client that reconnects mid-call has no history.
func (s *Session) SendChat(text string) error {
	return s.signal.Send(events.TypeSendMessage, events.ChatEvent{
		RoomID:    s.roomID,
		Text:      text,
		Sender:    s.identity.Username,
		Timestamp: time.Now().UTC(),
	})
}

// NotifyScreenShare broadcasts the informational screen-share notice.
func (s *Session) NotifyScreenShare(started bool) error {
	typ := events.TypeStartScreenShare
	if !started {
		typ = events.TypeStopScreenShare
	}

	return s.signal.Send(typ, events.ScreenShareEvent{RoomID: s.roomID})
}

// Terminate releases the peer connection and marks the session terminal.
// Valid in any state and idempotent; handlers already queued become no-ops.
func (s *Session) Terminate() {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminated
	s.mu.Unlock()

	s.timer.Stop()
	if err := s.peer.Close(); err != nil {
		slog.Error("close peer connection", slog.Any(constant.Error, err))
	}

	s.notifyState(StateTerminated)
	s.closeExit()
}

func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.exit:
	}
}

func (s *Session) closeExit() {
	s.exitOnce.Do(func() { close(s.exit) })
}

func (s *Session) terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == StateTerminated
}

// setState advances the state machine. Transitions are monotonic; an
// attempt to move backward is ignored.
func (s *Session) setState(next State) {
	s.mu.Lock()
	if next <= s.state {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	s.notifyState(next)
}

func (s *Session) notifyState(state State) {
	slog.Debug(
		"session state change",
		slog.String(constant.State, state.String()),
		slog.String(constant.RoomID, s.roomID),
	)

	if s.cb.OnStateChange != nil {
		s.cb.OnStateChange(state)
	}
}

func (s *Session) handleEnvelope(msg events.Message) {
	if s.terminated() {
		return
	}

	switch msg.Type {
	case events.TypeUserJoined:
		var ev events.PeerJoinedEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Error("unmarshal user-joined", slog.Any(constant.Error, err))
			return
		}
		s.handlePeerJoined(ev)

	case events.TypeOffer:
		var ev events.SdpEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Error("unmarshal offer", slog.Any(constant.Error, err))
			return
		}
		s.handleOffer(ev)

	case events.TypeAnswer:
		var ev events.SdpEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Error("unmarshal answer", slog.Any(constant.Error, err))
			return
		}
		s.handleAnswer(ev)

	case events.TypeIceCandidate:
		var ev events.IceCandidateEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Error("unmarshal ice candidate", slog.Any(constant.Error, err))
			return
		}
		s.handleCandidate(ev)

	case events.TypeUserLeft:
		s.disconnect(domain.ErrPeerDisconnected)

	case events.TypeReceiveMessage:
		var ev events.ChatEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		if s.cb.OnChat != nil {
			s.cb.OnChat(ev)
		}

	case events.TypeStartScreenShare:
		if s.cb.OnScreenShare != nil {
			s.cb.OnScreenShare(true)
		}

	case events.TypeStopScreenShare:
		if s.cb.OnScreenShare != nil {
			s.cb.OnScreenShare(false)
		}

	case events.TypeError:
		var ev events.ErrorEvent
		_ = json.Unmarshal(msg.Data, &ev)
		s.handleRelayError(ev)

	case events.TypePong:

	default:
		slog.Debug("ignoring envelope", slog.String(constant.EventType, msg.Type))
	}
}

// handlePeerJoined makes this client the initiator: it was already in the
// room when the other side arrived, so it alone creates the offer.
func (s *Session) handlePeerJoined(ev events.PeerJoinedEvent) {
	if s.State() != StateJoining {
		slog.Warn(
			"ignoring user-joined outside Joining",
			slog.String(constant.State, s.State().String()),
		)
		return
	}

	s.mu.Lock()
	s.initiator = true
	s.remoteConn = ev.ConnectionID
	s.mu.Unlock()

	s.setState(StateNegotiating)
	s.timer.Reset(s.connectTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), s.connectTimeout)
	defer cancel()

	sdp, err := s.peer.CreateOffer(ctx)
	if err != nil {
		s.fail(err)
		return
	}

	// Terminate may have raced the (slow) gathering wait; a late offer is
	// discarded, never sent.
	if s.terminated() {
		return
	}

	err = s.signal.Send(events.TypeOffer, events.SdpEvent{
		RoomID: s.roomID,
		SDP:    sdp,
		To:     ev.ConnectionID,
	})
	if err != nil {
		s.fail(err)
	}
}

// handleOffer makes this client the responder. A duplicate offer after
// negotiation has started is logged and dropped, not re-applied.
func (s *Session) handleOffer(ev events.SdpEvent) {
	if s.State() != StateJoining {
		slog.Warn(
			"ignoring offer outside Joining",
			slog.String(constant.State, s.State().String()),
		)
		return
	}

	s.mu.Lock()
	s.remoteConn = ev.From
	s.mu.Unlock()

	s.setState(StateNegotiating)
	s.timer.Reset(s.connectTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), s.connectTimeout)
	defer cancel()

	sdp, err := s.peer.CreateAnswer(ctx, ev.SDP)
	if err != nil {
		s.fail(err)
		return
	}

	s.flushCandidates()

	if s.terminated() {
		return
	}

	err = s.signal.Send(events.TypeAnswer, events.SdpEvent{
		RoomID: s.roomID,
		SDP:    sdp,
		To:     ev.From,
	})
	if err != nil {
		s.fail(err)
	}
}

func (s *Session) handleAnswer(ev events.SdpEvent) {
	s.mu.Lock()
	initiator := s.initiator
	state := s.state
	s.mu.Unlock()

	if state != StateNegotiating || !initiator {
		slog.Warn(
			"ignoring answer",
			slog.String(constant.State, state.String()),
			slog.Bool("initiator", initiator),
		)
		return
	}

	if err := s.peer.SetRemoteAnswer(ev.SDP); err != nil {
		s.fail(err)
		return
	}

	s.flushCandidates()
}

// handleCandidate applies a relayed candidate, queueing it if the remote
// description is not set yet. Candidates are never dropped for arriving
// early.
func (s *Session) handleCandidate(ev events.IceCandidateEvent) {
	state := s.State()
	if state != StateNegotiating && state != StateConnected {
		return
	}

	s.mu.Lock()
	if !s.remoteDescSet {
		s.pending = append(s.pending, ev.Candidate)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.peer.AddICECandidate(ev.Candidate); err != nil {
		slog.Error("add ice candidate", slog.Any(constant.Error, err))
	}
}

// flushCandidates marks the remote description applied and drains the queue.
func (s *Session) flushCandidates() {
	s.mu.Lock()
	s.remoteDescSet = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := s.peer.AddICECandidate(c); err != nil {
			slog.Error("add queued ice candidate", slog.Any(constant.Error, err))
		}
	}
}

func (s *Session) handleConnectionUp() {
	s.mu.Lock()
	s.iceUp = true
	s.mu.Unlock()

	s.maybeConnected()
}

func (s *Session) handleRemoteTrack(track *webrtc.TrackRemote) {
	s.mu.Lock()
	s.trackUp = true
	s.mu.Unlock()

	if s.cb.OnRemoteTrack != nil {
		s.cb.OnRemoteTrack(track)
	}

	s.maybeConnected()
}

// maybeConnected promotes to Connected once both signals are in: ICE
// connectivity and at least one remote media track.
func (s *Session) maybeConnected() {
	s.mu.Lock()
	ready := s.state == StateNegotiating && s.iceUp && s.trackUp
	s.mu.Unlock()

	if !ready {
		return
	}

	s.timer.Stop()
	s.setState(StateConnected)
}

func (s *Session) handleConnectTimeout() {
	if s.State() != StateNegotiating {
		return
	}

	s.fail(domain.ErrConnectTimeout)
}

func (s *Session) handleRelayError(ev events.ErrorEvent) {
	if ev.Message == "room is full" {
		s.fail(domain.ErrRoomFull)
		return
	}

	slog.Error("relay error", slog.String("message", ev.Message))
}

// disconnect records a non-crash end of call: the peer left or the relay
// dropped. Teardown to Terminated is the owner's responsibility.
func (s *Session) disconnect(err error) {
	s.mu.Lock()
	if s.state >= StateDisconnected {
		s.mu.Unlock()
		return
	}
	if s.err == nil {
		s.err = err
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.timer.Stop()
	s.notifyState(StateDisconnected)
	s.closeExit()
}

// fail is the unrecoverable-error path: any state straight to Terminated.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	if s.err == nil {
		s.err = err
	}
	s.state = StateTerminated
	s.mu.Unlock()

	s.timer.Stop()
	if cerr := s.peer.Close(); cerr != nil {
		slog.Error("close peer connection", slog.Any(constant.Error, cerr))
	}

	s.notifyState(StateTerminated)
	s.closeExit()
}
