package track

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hirelink/intercall/internal/application/constant"
	"github.com/hirelink/intercall/internal/call/media"
	"github.com/hirelink/intercall/internal/call/session"
)

// Notifier broadcasts the informational screen-share notices to the room.
// The session implements it; the swap itself never touches signaling.
type Notifier interface {
	NotifyScreenShare(started bool) error
}

// Controller owns the local tracks for one call: mute state and the
// camera/screen swap on the video sender. Mute is a local enabled flag,
// nothing is renegotiated and the peer is not told.
type Controller struct {
	capturer media.Capturer
	camera   *media.Stream
	sender   session.TrackSender
	notify   Notifier

	mu     sync.Mutex
	screen *media.Stream
}

// New wires a controller over an acquired camera stream. sender is the RTP
// sender carrying the camera video track, or nil when the call has no video.
func New(capturer media.Capturer, camera *media.Stream, sender session.TrackSender, notify Notifier) *Controller {
	return &Controller{
		capturer: capturer,
		camera:   camera,
		sender:   sender,
		notify:   notify,
	}
}

// ToggleAudio flips the microphone enabled flag and returns the new state.
// Toggling twice always restores the original state. Without an audio track
// it reports false and changes nothing.
func (c *Controller) ToggleAudio() bool {
	return toggle(c.camera.AudioTrack())
}

// ToggleVideo flips the camera enabled flag and returns the new state. The
// flag belongs to the camera track and survives a screen share: if the
// camera was muted before sharing, it is still muted after restore.
func (c *Controller) ToggleVideo() bool {
	return toggle(c.camera.VideoTrack())
}

func toggle(t *media.Track) bool {
	if t == nil {
		return false
	}

	next := !t.Enabled()
	t.SetEnabled(next)

	return next
}

// ShareScreen acquires a display stream and swaps it onto the video sender
// in place of the camera, without renegotiation. It reports whether the
// share started; already sharing or having no video sender is a no-op.
// When the source ends on its own the camera is restored automatically.
func (c *Controller) ShareScreen(ctx context.Context) (bool, error) {
	if c.sender == nil {
		return false, nil
	}

	c.mu.Lock()
	if c.screen != nil {
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Unlock()

	stream, err := c.capturer.AcquireDisplayMedia(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire display media: %w", err)
	}

	screenTrack := stream.VideoTrack()
	if screenTrack == nil {
		stream.Stop()
		return false, fmt.Errorf("display stream has no video track")
	}

	if err := c.sender.ReplaceTrack(screenTrack.Local()); err != nil {
		stream.Stop()
		return false, fmt.Errorf("replace track with screen: %w", err)
	}

	c.mu.Lock()
	c.screen = stream
	c.mu.Unlock()

	screenTrack.OnEnded(func() {
		if err := c.restore(); err != nil {
			slog.Error("restore camera after screen share", slog.Any(constant.Error, err))
		}
	})

	if err := c.notify.NotifyScreenShare(true); err != nil {
		slog.Error("notify screen share start", slog.Any(constant.Error, err))
	}

	return true, nil
}

// StopScreenShare ends an active share and puts the camera back on the
// sender. A no-op when nothing is being shared.
func (c *Controller) StopScreenShare() error {
	return c.restore()
}

// Sharing reports whether a screen stream currently replaces the camera.
func (c *Controller) Sharing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.screen != nil
}

// ScreenStream hands out the active screen stream for teardown, or nil.
func (c *Controller) ScreenStream() *media.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.screen
}

// restore swaps the camera back and releases the screen stream. The screen
// slot is cleared before Stop is called: Stop fires the track's ended
// callback, which calls restore again and must see the share already gone.
func (c *Controller) restore() error {
	c.mu.Lock()
	stream := c.screen
	c.screen = nil
	c.mu.Unlock()

	if stream == nil {
		return nil
	}

	var swapErr error
	if camTrack := c.camera.VideoTrack(); camTrack != nil {
		swapErr = c.sender.ReplaceTrack(camTrack.Local())
	}

	if err := c.notify.NotifyScreenShare(false); err != nil {
		slog.Error("notify screen share stop", slog.Any(constant.Error, err))
	}

	stream.Stop()

	if swapErr != nil {
		return fmt.Errorf("replace track with camera: %w", swapErr)
	}

	return nil
}
