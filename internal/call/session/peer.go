package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/hirelink/intercall/internal/domain"
)

var (
	apiOnce sync.Once
	api     *webrtc.API
	apiErr  error
)

// webrtcAPI builds the shared pion API on first use and caches it. Codec and
// interceptor registration is not cheap, and one API serves every session in
// the process.
func webrtcAPI() (*webrtc.API, error) {
	apiOnce.Do(func() {
		mediaEngine := &webrtc.MediaEngine{}
		if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
			apiErr = fmt.Errorf("register codecs: %w", err)
			return
		}

		registry := &interceptor.Registry{}
		if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
			apiErr = fmt.Errorf("register interceptors: %w", err)
			return
		}

		api = webrtc.NewAPI(
			webrtc.WithMediaEngine(mediaEngine),
			webrtc.WithInterceptorRegistry(registry),
		)
	})

	return api, apiErr
}

// PionPeer implements Peer on a pion PeerConnection.
type PionPeer struct {
	pc *webrtc.PeerConnection
}

func NewPionPeer(iceServers []webrtc.ICEServer) (*PionPeer, error) {
	a, err := webrtcAPI()
	if err != nil {
		return nil, err
	}

	pc, err := a.NewPeerConnection(webrtc.Configuration{
		ICEServers: iceServers,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	return &PionPeer{pc: pc}, nil
}

func (p *PionPeer) AddTrack(track webrtc.TrackLocal) (TrackSender, error) {
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}

	return sender, nil
}

// CreateOffer produces a local description with every ICE candidate already
// gathered, so the one offer envelope is self-contained.
func (p *PionPeer) CreateOffer(ctx context.Context) (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("%w: create offer: %v", domain.ErrNegotiationFailed, err)
	}

	gathered := webrtc.GatheringCompletePromise(p.pc)

	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("%w: set local description: %v", domain.ErrNegotiationFailed, err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: ice gathering: %v", domain.ErrNegotiationFailed, ctx.Err())
	}

	return p.pc.LocalDescription().SDP, nil
}

func (p *PionPeer) CreateAnswer(ctx context.Context, remoteOffer string) (string, error) {
	err := p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  remoteOffer,
	})
	if err != nil {
		return "", fmt.Errorf("%w: set remote offer: %v", domain.ErrNegotiationFailed, err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("%w: create answer: %v", domain.ErrNegotiationFailed, err)
	}

	gathered := webrtc.GatheringCompletePromise(p.pc)

	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("%w: set local description: %v", domain.ErrNegotiationFailed, err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: ice gathering: %v", domain.ErrNegotiationFailed, ctx.Err())
	}

	return p.pc.LocalDescription().SDP, nil
}

func (p *PionPeer) SetRemoteAnswer(sdp string) error {
	err := p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
	if err != nil {
		return fmt.Errorf("%w: set remote answer: %v", domain.ErrNegotiationFailed, err)
	}

	return nil
}

func (p *PionPeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	if err := p.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("%w: add ice candidate: %v", domain.ErrNegotiationFailed, err)
	}

	return nil
}

func (p *PionPeer) OnConnectionUp(fn func()) {
	p.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		if state == webrtc.ICEConnectionStateConnected {
			fn()
		}
	})
}

func (p *PionPeer) OnRemoteTrack(fn func(track *webrtc.TrackRemote)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(track)
	})
}

func (p *PionPeer) OnFailure(fn func(err error)) {
	p.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed {
			fn(domain.ErrNegotiationFailed)
		}
	})
}

func (p *PionPeer) Close() error {
	return p.pc.Close()
}
