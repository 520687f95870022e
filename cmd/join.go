package cmd

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/hirelink/intercall/internal/application/constant"
	"github.com/hirelink/intercall/internal/call/api"
	"github.com/hirelink/intercall/internal/call/lifecycle"
	"github.com/hirelink/intercall/internal/call/media"
	"github.com/hirelink/intercall/internal/call/session"
	relayws "github.com/hirelink/intercall/internal/call/signal"
	"github.com/hirelink/intercall/internal/domain"
	"github.com/hirelink/intercall/internal/domain/events"
)

var joinFlags struct {
	room    string
	server  string
	token   string
	userID  string
	name    string
	noAudio bool
	noVideo bool
}

// joinCmd runs a headless call participant with synthetic media. It is the
// second half of the binary: the root command serves, join calls in.
var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join an interview room as a headless participant",
	Run: func(cmd *cobra.Command, args []string) {
		runJoin(cmd.Context())
	},
}

func init() {
	joinCmd.Flags().StringVar(&joinFlags.room, "room", "", "room id of the interview")
	joinCmd.Flags().StringVar(&joinFlags.server, "server", "http://localhost:3000", "base URL of the intercall server")
	joinCmd.Flags().StringVar(&joinFlags.token, "token", "", "JWT for the participant")
	joinCmd.Flags().StringVar(&joinFlags.userID, "user-id", "", "participant user id")
	joinCmd.Flags().StringVar(&joinFlags.name, "name", "", "display name")
	joinCmd.Flags().BoolVar(&joinFlags.noAudio, "no-audio", false, "join without a microphone track")
	joinCmd.Flags().BoolVar(&joinFlags.noVideo, "no-video", false, "join without a camera track")

	joinCmd.MarkFlagRequired("room")
	joinCmd.MarkFlagRequired("token")
	joinCmd.MarkFlagRequired("user-id")

	rootCmd.AddCommand(joinCmd)
}

func runJoin(parent context.Context) {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt)
	defer cancel()

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: slog.LevelInfo},
			),
		),
	)

	apiClient := api.NewClient(joinFlags.server, joinFlags.token)

	iceResp, err := apiClient.IceServers(ctx)
	if err != nil {
		slog.Error("fetch ice servers", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	iceServers := make([]webrtc.ICEServer, 0, len(iceResp.IceServers))
	for _, s := range iceResp.IceServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	relayURL, err := relayEndpoint(joinFlags.server)
	if err != nil {
		slog.Error("derive relay URL", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	ctrl := lifecycle.New(
		lifecycle.Options{
			RoomID:   joinFlags.room,
			RelayURL: relayURL,
			Token:    joinFlags.token,
			Identity: domain.Identity{
				UserID:   joinFlags.userID,
				Username: joinFlags.name,
			},
			ICEServers: iceServers,
			Constraints: media.Constraints{
				Audio: !joinFlags.noAudio,
				Video: !joinFlags.noVideo,
			},
		},
		apiClient,
		media.NewSyntheticCapturer(),
		func(ctx context.Context, rawURL, token string) (session.Signaler, error) {
			return relayws.Dial(ctx, rawURL, token)
		},
		func(ice []webrtc.ICEServer) (session.Peer, error) {
			return session.NewPionPeer(ice)
		},
		lifecycle.Callbacks{
			OnStateChange: func(state session.State) {
				slog.Info("call state", slog.String(constant.State, state.String()))
			},
			OnRemoteTrack: func(track *webrtc.TrackRemote) {
				slog.Info(
					"remote track",
					slog.String("kind", track.Kind().String()),
					slog.String("id", track.ID()),
				)
				go drainTrack(track)
			},
			OnChat: func(ev events.ChatEvent) {
				slog.Info("chat", slog.String("sender", ev.Sender), slog.String("message", ev.Text))
			},
			OnScreenShare: func(started bool) {
				slog.Info("peer screen share", slog.Bool("started", started))
			},
		},
	)

	if err := ctrl.Run(ctx); err != nil {
		slog.Error("call ended with error", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	slog.Info("call ended")
}

// relayEndpoint turns the API base URL into the websocket signaling URL.
func relayEndpoint(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/ws"

	return u.String(), nil
}

// drainTrack keeps the remote track's RTP flowing. A headless participant
// has nothing to render, but the packets still need a reader.
func drainTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}
