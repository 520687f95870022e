package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Source identifies where a video track's frames come from.
type Source int

const (
	SourceCamera Source = iota
	SourceScreen
)

func (s Source) String() string {
	switch s {
	case SourceCamera:
		return "camera"
	case SourceScreen:
		return "screen"
	default:
		return "unknown"
	}
}

// Track is one local media track plus its local-only state. Enabled is never
// synchronized to the peer; a disabled track simply stops producing packets,
// which the remote side perceives as silence or a frozen frame.
type Track struct {
	local  *webrtc.TrackLocalStaticRTP
	kind   webrtc.RTPCodecType
	source Source

	mu      sync.Mutex
	enabled bool
	ended   bool
	onEnded []func()
}

func newTrack(local *webrtc.TrackLocalStaticRTP, kind webrtc.RTPCodecType, source Source) *Track {
	return &Track{
		local:   local,
		kind:    kind,
		source:  source,
		enabled: true,
	}
}

func (t *Track) Local() webrtc.TrackLocal {
	return t.local
}

func (t *Track) Kind() webrtc.RTPCodecType {
	return t.kind
}

func (t *Track) Source() Source {
	return t.source
}

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = enabled
}

// OnEnded registers a callback fired once when the track stops producing,
// either because the stream was stopped or the source went away (the user
// ending a screen share). Registering after the end fires immediately.
func (t *Track) OnEnded(fn func()) {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		fn()
		return
	}
	t.onEnded = append(t.onEnded, fn)
	t.mu.Unlock()
}

func (t *Track) end() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	fns := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Stream bundles the tracks acquired together. Stopping is idempotent and
// stops every track.
type Stream struct {
	tracks []*Track
	cancel func()

	stopOnce sync.Once
}

func (s *Stream) Tracks() []*Track {
	return s.tracks
}

func (s *Stream) AudioTrack() *Track {
	for _, t := range s.tracks {
		if t.kind == webrtc.RTPCodecTypeAudio {
			return t
		}
	}
	return nil
}

func (s *Stream) VideoTrack() *Track {
	for _, t := range s.tracks {
		if t.kind == webrtc.RTPCodecTypeVideo {
			return t
		}
	}
	return nil
}

// Stop halts every generator goroutine and fires the tracks' ended callbacks.
// Safe to call any number of times.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		for _, t := range s.tracks {
			t.end()
		}
	})
}
