package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/hirelink/intercall/internal/domain"
	"github.com/hirelink/intercall/internal/domain/events"
)

// fakeSignaler exposes sent envelopes on a channel and lets the test inject
// inbound envelopes, standing in for the relay connection.
type fakeSignaler struct {
	sent     chan events.Message
	incoming chan events.Message

	closeOnce sync.Once
}

func newFakeSignaler() *fakeSignaler {
	return &fakeSignaler{
		sent:     make(chan events.Message, 16),
		incoming: make(chan events.Message, 16),
	}
}

func (f *fakeSignaler) Send(typ string, payload any) error {
	msg, err := events.NewMessage(typ, payload)
	if err != nil {
		return err
	}
	f.sent <- msg
	return nil
}

func (f *fakeSignaler) Incoming() <-chan events.Message { return f.incoming }

func (f *fakeSignaler) Close() {
	f.closeOnce.Do(func() { close(f.incoming) })
}

func (f *fakeSignaler) push(t *testing.T, typ string, payload any) {
	t.Helper()

	msg, err := events.NewMessage(typ, payload)
	require.NoError(t, err)
	f.incoming <- msg
}

// fakePeer records negotiation calls and hands the registered callbacks back
// to the test so it can simulate ICE and track events.
type fakePeer struct {
	mu            sync.Mutex
	offerCalls    int
	answerCalls   int
	remoteAnswers []string
	candidates    []webrtc.ICECandidateInit
	closed        bool

	offerErr error

	onUp    func()
	onTrack func(*webrtc.TrackRemote)
	onFail  func(error)
}

func (p *fakePeer) AddTrack(webrtc.TrackLocal) (TrackSender, error) { return nil, nil }

func (p *fakePeer) CreateOffer(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offerCalls++
	if p.offerErr != nil {
		return "", p.offerErr
	}
	return "v=0 offer", nil
}

func (p *fakePeer) CreateAnswer(_ context.Context, remoteOffer string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answerCalls++
	return "v=0 answer", nil
}

func (p *fakePeer) SetRemoteAnswer(sdp string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteAnswers = append(p.remoteAnswers, sdp)
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) OnConnectionUp(fn func())                   { p.onUp = fn }
func (p *fakePeer) OnRemoteTrack(fn func(*webrtc.TrackRemote)) { p.onTrack = fn }
func (p *fakePeer) OnFailure(fn func(error))                   { p.onFail = fn }

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) answers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answerCalls
}

func (p *fakePeer) appliedCandidates() []webrtc.ICECandidateInit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), p.candidates...)
}

type fixture struct {
	sess   *Session
	sig    *fakeSignaler
	peer   *fakePeer
	states chan State
	done   chan error
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()

	sig := newFakeSignaler()
	peer := &fakePeer{}
	states := make(chan State, 16)

	sess := New("room-1", domain.Identity{UserID: "alice", Username: "Alice"}, sig, peer, timeout, Callbacks{
		OnStateChange: func(s State) { states <- s },
	})

	f := &fixture{
		sess:   sess,
		sig:    sig,
		peer:   peer,
		states: states,
		done:   make(chan error, 1),
	}

	go func() { f.done <- sess.Run(context.Background()) }()

	t.Cleanup(sess.Terminate)

	return f
}

func (f *fixture) awaitState(t *testing.T, want State) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.states:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func (f *fixture) awaitSent(t *testing.T, typ string) events.Message {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-f.sig.sent:
			if msg.Type == typ {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for sent envelope %s", typ)
		}
	}
}

func (f *fixture) awaitDone(t *testing.T) error {
	t.Helper()

	select {
	case err := <-f.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func TestSession_InitiatorHappyPath(t *testing.T) {
	f := newFixture(t, 5*time.Second)

	require.NoError(t, f.sess.Join())
	f.awaitSent(t, events.TypeJoinRoom)
	f.awaitState(t, StateJoining)

	// The other side arrives; this client was first in, so it initiates.
	f.sig.push(t, events.TypeUserJoined, events.PeerJoinedEvent{
		UserID:       "bob",
		ConnectionID: "22222222-2222-2222-2222-222222222222",
	})

	f.awaitState(t, StateNegotiating)

	offer := f.awaitSent(t, events.TypeOffer)
	var sdp events.SdpEvent
	require.NoError(t, json.Unmarshal(offer.Data, &sdp))
	require.Equal(t, "v=0 offer", sdp.SDP)
	require.Equal(t, "22222222-2222-2222-2222-222222222222", sdp.To)

	f.sig.push(t, events.TypeAnswer, events.SdpEvent{
		SDP:  "v=0 answer",
		From: "22222222-2222-2222-2222-222222222222",
	})

	f.peer.onUp()
	f.peer.onTrack(nil)

	f.awaitState(t, StateConnected)
	require.Equal(t, StateConnected, f.sess.State())
}

func TestSession_ResponderAnswersOffer(t *testing.T) {
	f := newFixture(t, 5*time.Second)

	require.NoError(t, f.sess.Join())
	f.awaitState(t, StateJoining)

	f.sig.push(t, events.TypeOffer, events.SdpEvent{
		SDP:  "v=0 remote-offer",
		From: "11111111-1111-1111-1111-111111111111",
	})

	f.awaitState(t, StateNegotiating)

	answer := f.awaitSent(t, events.TypeAnswer)
	var sdp events.SdpEvent
	require.NoError(t, json.Unmarshal(answer.Data, &sdp))
	require.Equal(t, "v=0 answer", sdp.SDP)
	require.Equal(t, "11111111-1111-1111-1111-111111111111", sdp.To)

	require.Equal(t, 1, f.peer.answers())
}

func TestSession_DuplicateOfferIgnored(t *testing.T) {
	f := newFixture(t, 5*time.Second)

	require.NoError(t, f.sess.Join())
	f.awaitState(t, StateJoining)

	remote := events.SdpEvent{SDP: "v=0 remote-offer", From: "11111111-1111-1111-1111-111111111111"}
	f.sig.push(t, events.TypeOffer, remote)
	f.awaitSent(t, events.TypeAnswer)

	f.sig.push(t, events.TypeOffer, remote)

	f.sess.Terminate()
	f.awaitDone(t)

	require.Equal(t, 1, f.peer.answers())
}

func TestSession_CandidateQueuedUntilRemoteDescription(t *testing.T) {
	f := newFixture(t, 5*time.Second)

	require.NoError(t, f.sess.Join())
	f.awaitState(t, StateJoining)

	f.sig.push(t, events.TypeUserJoined, events.PeerJoinedEvent{
		UserID:       "bob",
		ConnectionID: "22222222-2222-2222-2222-222222222222",
	})
	f.awaitSent(t, events.TypeOffer)

	// No remote description yet: candidates must be held, not applied.
	early := webrtc.ICECandidateInit{Candidate: "candidate:early"}
	f.sig.push(t, events.TypeIceCandidate, events.IceCandidateEvent{Candidate: early})

	f.sig.push(t, events.TypeAnswer, events.SdpEvent{SDP: "v=0 answer"})

	require.Eventually(t, func() bool {
		applied := f.peer.appliedCandidates()
		return len(applied) == 1 && applied[0].Candidate == "candidate:early"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_ConnectTimeout(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)

	require.NoError(t, f.sess.Join())
	f.sig.push(t, events.TypeUserJoined, events.PeerJoinedEvent{
		UserID:       "bob",
		ConnectionID: "22222222-2222-2222-2222-222222222222",
	})
	f.awaitSent(t, events.TypeOffer)

	err := f.awaitDone(t)
	require.True(t, errors.Is(err, domain.ErrConnectTimeout))
	require.Equal(t, StateTerminated, f.sess.State())
	require.True(t, f.peer.closed)
}

func TestSession_PeerLeft(t *testing.T) {
	f := newFixture(t, 5*time.Second)

	require.NoError(t, f.sess.Join())
	f.awaitState(t, StateJoining)

	f.sig.push(t, events.TypeUserLeft, events.PeerLeftEvent{UserID: "bob"})

	err := f.awaitDone(t)
	require.True(t, errors.Is(err, domain.ErrPeerDisconnected))
	require.Equal(t, StateDisconnected, f.sess.State())
}

func TestSession_RoomFull(t *testing.T) {
	f := newFixture(t, 5*time.Second)

	require.NoError(t, f.sess.Join())
	f.awaitState(t, StateJoining)

	f.sig.push(t, events.TypeError, events.ErrorEvent{Message: "room is full"})

	err := f.awaitDone(t)
	require.True(t, errors.Is(err, domain.ErrRoomFull))
	require.Equal(t, StateTerminated, f.sess.State())
}

func TestSession_RelayDropDisconnects(t *testing.T) {
	f := newFixture(t, 5*time.Second)

	require.NoError(t, f.sess.Join())
	f.awaitState(t, StateJoining)

	f.sig.Close()

	err := f.awaitDone(t)
	require.True(t, errors.Is(err, domain.ErrRelayUnreachable))
	require.Equal(t, StateDisconnected, f.sess.State())
}

func TestSession_TerminateIsIdempotent(t *testing.T) {
	f := newFixture(t, 5*time.Second)

	require.NoError(t, f.sess.Join())

	f.sess.Terminate()
	f.sess.Terminate()

	require.NoError(t, f.awaitDone(t))
	require.Equal(t, StateTerminated, f.sess.State())
	require.True(t, f.peer.closed)
}

func TestSession_HandlersNoOpAfterTerminate(t *testing.T) {
	f := newFixture(t, 5*time.Second)

	require.NoError(t, f.sess.Join())
	f.awaitState(t, StateJoining)

	f.sess.Terminate()
	require.NoError(t, f.awaitDone(t))

	// Late envelopes and peer events after teardown must do nothing.
	f.peer.onUp()
	f.peer.onTrack(nil)
	require.Equal(t, StateTerminated, f.sess.State())
}

func TestSession_ChatAndScreenShareCallbacks(t *testing.T) {
	sig := newFakeSignaler()
	peer := &fakePeer{}

	chats := make(chan events.ChatEvent, 1)
	shares := make(chan bool, 2)

	sess := New("room-1", domain.Identity{UserID: "alice"}, sig, peer, 5*time.Second, Callbacks{
		OnChat:        func(ev events.ChatEvent) { chats <- ev },
		OnScreenShare: func(started bool) { shares <- started },
	})
	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()
	t.Cleanup(sess.Terminate)

	require.NoError(t, sess.Join())

	msg, err := events.NewMessage(events.TypeReceiveMessage, events.ChatEvent{Text: "hi", Sender: "bob"})
	require.NoError(t, err)
	sig.incoming <- msg

	select {
	case ev := <-chats:
		require.Equal(t, "hi", ev.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("chat callback not invoked")
	}

	sig.incoming <- events.Message{Type: events.TypeStartScreenShare}
	sig.incoming <- events.Message{Type: events.TypeStopScreenShare}

	require.True(t, <-shares)
	require.False(t, <-shares)
}

func TestSession_SendChat(t *testing.T) {
	f := newFixture(t, 5*time.Second)

	require.NoError(t, f.sess.SendChat("hello there"))

	msg := f.awaitSent(t, events.TypeSendMessage)
	var ev events.ChatEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	require.Equal(t, "hello there", ev.Text)
	require.Equal(t, "room-1", ev.RoomID)
	require.False(t, ev.Timestamp.IsZero())
}
