package turn

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/pion/turn/v4"

	"github.com/hirelink/intercall/internal/application/config"
)

// EphemeralCredential derives the shared-secret credential for a username.
// The ICE handler mints it, the auth handler below re-derives and compares.
func EphemeralCredential(secret, username string) []byte {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	return mac.Sum(nil)
}

// Start launches the embedded TURN server on TCP and UDP listeners.
// Credentials are the time-limited kind: username is a unix expiry, password
// is HMAC(secret, username).
func Start(cfg *config.TurnConfig) (*turn.Server, error) {
	tcpListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("tcp listen: %w", err)
	}

	udpListener, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		tcpListener.Close()
		return nil, fmt.Errorf("udp listen: %w", err)
	}

	relayAddressGenerator := &turn.RelayAddressGeneratorStatic{
		RelayAddress: net.ParseIP(cfg.PublicIP),
		Address:      "0.0.0.0",
	}

	server, err := turn.NewServer(
		turn.ServerConfig{
			Realm: cfg.Realm,
			AuthHandler: func(username, realm string, srcAddr net.Addr) ([]byte, bool) {
				expiry, err := strconv.ParseInt(username, 10, 64)
				if err != nil || time.Now().Unix() > expiry {
					return nil, false
				}

				password := base64.StdEncoding.EncodeToString(EphemeralCredential(cfg.Secret, username))

				return turn.GenerateAuthKey(username, realm, password), true
			},
			ListenerConfigs: []turn.ListenerConfig{
				{
					Listener:              tcpListener,
					RelayAddressGenerator: relayAddressGenerator,
				},
			},
			PacketConnConfigs: []turn.PacketConnConfig{
				{
					PacketConn:            udpListener,
					RelayAddressGenerator: relayAddressGenerator,
				},
			},
		})
	if err != nil {
		return nil, fmt.Errorf("new turn server: %w", err)
	}

	slog.Info(fmt.Sprintf("TURN server started on :%d (TCP, UDP)", cfg.Port))

	return server, nil
}
