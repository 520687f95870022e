package media

import (
	"context"
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/hirelink/intercall/internal/domain"
)

func TestAcquireUserMedia(t *testing.T) {
	c := NewSyntheticCapturer()

	stream, err := c.AcquireUserMedia(context.Background(), DefaultConstraints)
	require.NoError(t, err)
	defer stream.Stop()

	require.Len(t, stream.Tracks(), 2)

	audio := stream.AudioTrack()
	require.NotNil(t, audio)
	require.Equal(t, webrtc.RTPCodecTypeAudio, audio.Kind())
	require.True(t, audio.Enabled())

	video := stream.VideoTrack()
	require.NotNil(t, video)
	require.Equal(t, SourceCamera, video.Source())
}

func TestAcquireUserMedia_AudioOnly(t *testing.T) {
	c := NewSyntheticCapturer()

	stream, err := c.AcquireUserMedia(context.Background(), Constraints{Audio: true})
	require.NoError(t, err)
	defer stream.Stop()

	require.Len(t, stream.Tracks(), 1)
	require.Nil(t, stream.VideoTrack())
}

func TestAcquireUserMedia_NothingRequested(t *testing.T) {
	c := NewSyntheticCapturer()

	_, err := c.AcquireUserMedia(context.Background(), Constraints{})
	require.True(t, errors.Is(err, domain.ErrDeviceUnavailable))
}

func TestAcquireUserMedia_CancelledContext(t *testing.T) {
	c := NewSyntheticCapturer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.AcquireUserMedia(ctx, DefaultConstraints)
	require.True(t, errors.Is(err, domain.ErrUserCancelled))
}

func TestAcquireDisplayMedia(t *testing.T) {
	c := NewSyntheticCapturer()

	stream, err := c.AcquireDisplayMedia(context.Background())
	require.NoError(t, err)
	defer stream.Stop()

	video := stream.VideoTrack()
	require.NotNil(t, video)
	require.Equal(t, SourceScreen, video.Source())
}

func TestStreamStop_Idempotent(t *testing.T) {
	c := NewSyntheticCapturer()

	stream, err := c.AcquireUserMedia(context.Background(), DefaultConstraints)
	require.NoError(t, err)

	fired := 0
	stream.VideoTrack().OnEnded(func() { fired++ })

	stream.Stop()
	stream.Stop()

	require.Equal(t, 1, fired, "ended callback fires exactly once")
}

func TestTrackOnEnded_AfterEndFiresImmediately(t *testing.T) {
	c := NewSyntheticCapturer()

	stream, err := c.AcquireDisplayMedia(context.Background())
	require.NoError(t, err)

	stream.Stop()

	fired := false
	stream.VideoTrack().OnEnded(func() { fired = true })
	require.True(t, fired)
}

func TestTrackSetEnabled(t *testing.T) {
	c := NewSyntheticCapturer()

	stream, err := c.AcquireUserMedia(context.Background(), Constraints{Video: true})
	require.NoError(t, err)
	defer stream.Stop()

	track := stream.VideoTrack()
	require.True(t, track.Enabled())

	track.SetEnabled(false)
	require.False(t, track.Enabled())

	track.SetEnabled(true)
	require.True(t, track.Enabled())
}
