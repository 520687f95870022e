package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hirelink/intercall/internal/application/config"
	"github.com/hirelink/intercall/internal/infra/ports/http/dto"
	"github.com/hirelink/intercall/internal/infra/ports/turn"
)

type IceHandler struct {
	cfg *config.Config
}

func NewIceHandler(cfg *config.Config) *IceHandler {
	return &IceHandler{cfg: cfg}
}

// IceServers returns the STUN/TURN configuration clients should dial with.
// TURN credentials are ephemeral: username is the expiry timestamp, password
// is an HMAC over it, the scheme the embedded TURN server verifies.
func (h *IceHandler) IceServers(c echo.Context) error {
	resp := dto.IceServersResponse{
		IceServers: []dto.IceServer{
			{URLs: h.cfg.STUNServers},
		},
	}

	if h.cfg.Turn.Enabled {
		expiry := time.Now().Add(h.cfg.Turn.CredentialTTL).Unix()
		username := fmt.Sprintf("%d", expiry)
		credential := base64.StdEncoding.EncodeToString(
			turn.EphemeralCredential(h.cfg.Turn.Secret, username),
		)

		resp.IceServers = append(resp.IceServers, dto.IceServer{
			URLs: []string{
				fmt.Sprintf("turn:%s:%d?transport=udp", h.cfg.Turn.Host, h.cfg.Turn.Port),
				fmt.Sprintf("turn:%s:%d?transport=tcp", h.cfg.Turn.Host, h.cfg.Turn.Port),
			},
			Username:   username,
			Credential: credential,
		})
		resp.TTL = int(h.cfg.Turn.CredentialTTL.Seconds())
	}

	return c.JSON(http.StatusOK, resp)
}
