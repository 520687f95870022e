package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/hirelink/intercall/internal/application/constant"
	"github.com/hirelink/intercall/internal/call/media"
	"github.com/hirelink/intercall/internal/call/session"
	"github.com/hirelink/intercall/internal/call/track"
	"github.com/hirelink/intercall/internal/domain"
	"github.com/hirelink/intercall/internal/domain/events"
	"github.com/hirelink/intercall/internal/infra/ports/http/dto"
)

// InterviewAPI is the slice of the REST client the lifecycle needs: looking
// up the interview behind a room and moving its status forward.
type InterviewAPI interface {
	GetByRoom(ctx context.Context, roomID string) (*domain.Interview, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, update dto.UpdateStatusRequest) error
}

// Dialer opens the relay connection. signal.Dial satisfies it.
type Dialer func(ctx context.Context, rawURL, token string) (session.Signaler, error)

// PeerFactory builds the peer connection. session.NewPionPeer satisfies it.
type PeerFactory func(iceServers []webrtc.ICEServer) (session.Peer, error)

type Callbacks struct {
	OnStateChange func(session.State)
	OnRemoteTrack func(*webrtc.TrackRemote)
	OnChat        func(events.ChatEvent)
	OnScreenShare func(started bool)
	OnError       func(error)
}

type Options struct {
	RoomID   string
	RelayURL string
	Token    string
	Identity domain.Identity

	ICEServers     []webrtc.ICEServer
	ConnectTimeout time.Duration
	Constraints    media.Constraints
}

// Controller owns one end-to-end call attempt: interview status bookkeeping,
// media acquisition, relay connection, peer session and the teardown order.
// A Controller is single use; build a new one for the next call.
type Controller struct {
	opts     Options
	api      InterviewAPI
	capturer media.Capturer
	dial     Dialer
	newPeer  PeerFactory
	cb       Callbacks

	mu      sync.Mutex
	session *session.Session
	tracks  *track.Controller

	disposeOnce sync.Once
	dispose     func()
}

func New(opts Options, api InterviewAPI, capturer media.Capturer, dial Dialer, newPeer PeerFactory, cb Callbacks) *Controller {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if !opts.Constraints.Audio && !opts.Constraints.Video {
		opts.Constraints = media.DefaultConstraints
	}

	return &Controller{
		opts:     opts,
		api:      api,
		capturer: capturer,
		dial:     dial,
		newPeer:  newPeer,
		cb:       cb,
	}
}

// Run drives the call to completion and blocks until it ends. The interview
// is verified before any device is touched; a room with no interview behind
// it never prompts for media. Resources are released in a fixed order on
// every exit path: relay leave notice first, then the peer connection, then
// local media, then any screen stream.
func (c *Controller) Run(ctx context.Context) error {
	interview, err := c.api.GetByRoom(ctx, c.opts.RoomID)
	if err != nil {
		return fmt.Errorf("look up interview for room %s: %w", c.opts.RoomID, err)
	}

	c.markStarted(ctx, interview)

	c.notifyState(session.StateAwaitingMedia)

	camera, err := c.capturer.AcquireUserMedia(ctx, c.opts.Constraints)
	if err != nil {
		c.notifyError(err)
		return err
	}

	sig, err := c.dial(ctx, c.opts.RelayURL, c.opts.Token)
	if err != nil {
		camera.Stop()
		c.notifyError(err)
		return err
	}

	peer, err := c.newPeer(c.opts.ICEServers)
	if err != nil {
		sig.Close()
		camera.Stop()
		c.notifyError(err)
		return err
	}

	var videoSender session.TrackSender
	for _, t := range camera.Tracks() {
		sender, err := peer.AddTrack(t.Local())
		if err != nil {
			peer.Close()
			sig.Close()
			camera.Stop()
			c.notifyError(err)
			return err
		}
		if t.Kind() == webrtc.RTPCodecTypeVideo {
			videoSender = sender
		}
	}

	sess := session.New(c.opts.RoomID, c.opts.Identity, sig, peer, c.opts.ConnectTimeout, session.Callbacks{
		OnStateChange: c.cb.OnStateChange,
		OnRemoteTrack: c.cb.OnRemoteTrack,
		OnChat:        c.cb.OnChat,
		OnScreenShare: c.cb.OnScreenShare,
	})

	tracks := track.New(c.capturer, camera, videoSender, sess)

	c.mu.Lock()
	c.session = sess
	c.tracks = tracks
	c.mu.Unlock()

	c.dispose = func() {
		if err := sig.Send(events.TypeLeaveRoom, events.LeaveEvent{
			RoomID: c.opts.RoomID,
			UserID: c.opts.Identity.UserID,
		}); err != nil {
			slog.Debug("send leave notice", slog.Any(constant.Error, err))
		}
		sig.Close()

		sess.Terminate()

		camera.Stop()

		if screen := tracks.ScreenStream(); screen != nil {
			screen.Stop()
		}
	}
	defer c.disposeOnce.Do(c.dispose)

	if err := sess.Join(); err != nil {
		c.notifyError(err)
		return err
	}

	runErr := sess.Run(ctx)

	c.markCompleted(ctx, interview)

	if runErr != nil && !errors.Is(runErr, domain.ErrPeerDisconnected) {
		c.notifyError(runErr)
		return runErr
	}

	return nil
}

// Tracks exposes mute and screen-share controls. Nil until Run has built
// the session.
func (c *Controller) Tracks() *track.Controller {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tracks
}

// SendChat broadcasts a chat line through the active session.
func (c *Controller) SendChat(text string) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess == nil {
		return fmt.Errorf("no active session")
	}

	return sess.SendChat(text)
}

// Hangup ends the call from the local side. Run unblocks and tears down.
func (c *Controller) Hangup() {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess != nil {
		sess.Terminate()
	}
}

// markStarted moves a scheduled interview to in-progress. The call proceeds
// even when the patch fails; status bookkeeping never blocks a call.
func (c *Controller) markStarted(ctx context.Context, interview *domain.Interview) {
	if interview.Status != domain.StatusScheduled {
		return
	}

	now := time.Now().UTC()
	err := c.api.UpdateStatus(ctx, interview.ID, dto.UpdateStatusRequest{
		Status:    domain.StatusInProgress,
		StartedAt: &now,
	})
	if err != nil {
		slog.Warn(
			"mark interview in-progress",
			slog.String(constant.InterviewID, interview.ID.String()),
			slog.Any(constant.Error, err),
		)
	}
}

// markCompleted stamps the end of the call. Run's context may already be
// cancelled at this point, so the patch runs detached from it.
func (c *Controller) markCompleted(ctx context.Context, interview *domain.Interview) {
	now := time.Now().UTC()

	patchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := c.api.UpdateStatus(patchCtx, interview.ID, dto.UpdateStatusRequest{
		Status:  domain.StatusCompleted,
		EndedAt: &now,
	})
	if err != nil {
		slog.Warn(
			"mark interview completed",
			slog.String(constant.InterviewID, interview.ID.String()),
			slog.Any(constant.Error, err),
		)
	}
}

func (c *Controller) notifyState(state session.State) {
	if c.cb.OnStateChange != nil {
		c.cb.OnStateChange(state)
	}
}

func (c *Controller) notifyError(err error) {
	slog.Error("call failed", slog.String(constant.RoomID, c.opts.RoomID), slog.Any(constant.Error, err))

	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
}
