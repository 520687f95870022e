package media

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/hirelink/intercall/internal/domain"
)

// Constraints selects which kinds to acquire. The zero value acquires nothing;
// callers normally pass DefaultConstraints.
type Constraints struct {
	Audio bool
	Video bool
}

var DefaultConstraints = Constraints{Audio: true, Video: true}

// Capturer acquires local media. Acquisition can suspend on a user permission
// prompt with unbounded latency, so both calls honor context cancellation.
type Capturer interface {
	AcquireUserMedia(ctx context.Context, c Constraints) (*Stream, error)
	AcquireDisplayMedia(ctx context.Context) (*Stream, error)
}

const (
	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 33 * time.Millisecond

	audioClockRate = 48000
	videoClockRate = 90000
)

// SyntheticCapturer produces test-pattern RTP tracks. It stands in for
// camera, microphone and screen sources in headless operation and in tests;
// packet generation stops when the stream is stopped.
type SyntheticCapturer struct{}

func NewSyntheticCapturer() *SyntheticCapturer {
	return &SyntheticCapturer{}
}

func (c *SyntheticCapturer) AcquireUserMedia(ctx context.Context, constraints Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUserCancelled, err)
	}

	if !constraints.Audio && !constraints.Video {
		return nil, fmt.Errorf("%w: no media kinds requested", domain.ErrDeviceUnavailable)
	}

	streamID := uuid.NewString()
	genCtx, cancel := context.WithCancel(context.Background())

	stream := &Stream{cancel: cancel}

	if constraints.Audio {
		track, err := newSyntheticTrack(webrtc.RTPCodecTypeAudio, SourceCamera, streamID)
		if err != nil {
			cancel()
			return nil, err
		}
		stream.tracks = append(stream.tracks, track)
		go generate(genCtx, track, audioFrameInterval, audioClockRate)
	}

	if constraints.Video {
		track, err := newSyntheticTrack(webrtc.RTPCodecTypeVideo, SourceCamera, streamID)
		if err != nil {
			cancel()
			return nil, err
		}
		stream.tracks = append(stream.tracks, track)
		go generate(genCtx, track, videoFrameInterval, videoClockRate)
	}

	return stream, nil
}

func (c *SyntheticCapturer) AcquireDisplayMedia(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUserCancelled, err)
	}

	genCtx, cancel := context.WithCancel(context.Background())

	track, err := newSyntheticTrack(webrtc.RTPCodecTypeVideo, SourceScreen, uuid.NewString())
	if err != nil {
		cancel()
		return nil, err
	}

	stream := &Stream{
		tracks: []*Track{track},
		cancel: cancel,
	}

	go generate(genCtx, track, videoFrameInterval, videoClockRate)

	return stream, nil
}

func newSyntheticTrack(kind webrtc.RTPCodecType, source Source, streamID string) (*Track, error) {
	var capability webrtc.RTPCodecCapability
	var id string

	switch kind {
	case webrtc.RTPCodecTypeAudio:
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audioClockRate, Channels: 2}
		id = "audio"
	default:
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: videoClockRate}
		id = "video-" + source.String()
	}

	local, err := webrtc.NewTrackLocalStaticRTP(capability, id, streamID)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s track: %v", domain.ErrDeviceUnavailable, id, err)
	}

	return newTrack(local, kind, source), nil
}

// generate writes test-pattern RTP packets at the frame cadence. A disabled
// track produces nothing, which is exactly the mute semantics: the
// transceiver stays alive and the peer observes silence.
func generate(ctx context.Context, track *Track, interval time.Duration, clockRate uint32) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ssrc := rand.Uint32()
	seq := uint16(rand.Intn(1 << 16))
	var ts uint32
	tsStep := uint32(float64(clockRate) * interval.Seconds())

	payload := make([]byte, 160)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq++
			ts += tsStep

			if !track.Enabled() {
				continue
			}

			pkt := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					SequenceNumber: seq,
					Timestamp:      ts,
					SSRC:           ssrc,
				},
				Payload: payload,
			}

			if err := track.local.WriteRTP(pkt); err != nil {
				return
			}
		}
	}
}
