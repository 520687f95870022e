package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hirelink/intercall/internal/application/config"
	"github.com/hirelink/intercall/internal/application/constant"
	"github.com/hirelink/intercall/internal/domain/events"
	"github.com/hirelink/intercall/internal/infra/adapters/memory"
	"github.com/hirelink/intercall/internal/usecase"
)

type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	relayUsecase usecase.RelayUsecase

	connRepo memory.ConnectionRepository
}

func NewWebSocketHandler(cfg *config.Config, relayUsecase usecase.RelayUsecase, connRepo memory.ConnectionRepository) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		relayUsecase: relayUsecase,
		connRepo:     connRepo,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}
	defer ws.Close()

	// The connection id is ephemeral: a new one is minted every time a client
	// attaches, and it is what directed envelopes address.
	connID := uuid.New()

	h.connRepo.Add(connID, ws)
	defer h.connRepo.Remove(connID)

	if err = ws.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-c.Request().Context().Done():
				return
			}
		}
	}()

	for {
		select {
		case <-c.Request().Context().Done():
			h.relayUsecase.HandleDisconnect(context.WithoutCancel(c.Request().Context()), connID)
			return nil
		default:
			_, msg, err := ws.ReadMessage()
			if err != nil {
				h.logWebsocketError(connID, err)
				h.relayUsecase.HandleDisconnect(context.WithoutCancel(c.Request().Context()), connID)

				return nil
			}

			envelope := new(events.Message)

			if err = json.Unmarshal(msg, envelope); err != nil {
				slog.Error("unmarshal websocket message", slog.Any(constant.Error, err))

				continue
			}

			if err = h.handleMessage(c.Request().Context(), connID, envelope); err != nil {
				slog.Error(
					"handle message",
					slog.Any(constant.Error, err),
					slog.String(constant.EventType, envelope.Type),
				)
			}
		}
	}
}

func (h *WebSocketHandler) handleMessage(
	ctx context.Context,
	connID uuid.UUID,
	msg *events.Message,
) error {
	switch msg.Type {
	case events.TypeJoinRoom:
		var ev events.JoinEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal join event: %w", err)
		}

		return h.relayUsecase.HandleJoin(ctx, connID, ev)

	case events.TypeLeaveRoom:
		return h.relayUsecase.HandleLeave(ctx, connID)

	case events.TypeOffer:
		var ev events.SdpEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal offer: %w", err)
		}

		return h.relayUsecase.HandleOffer(ctx, connID, ev)

	case events.TypeAnswer:
		var ev events.SdpEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal answer: %w", err)
		}

		return h.relayUsecase.HandleAnswer(ctx, connID, ev)

	case events.TypeIceCandidate:
		var ev events.IceCandidateEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal ice candidate: %w", err)
		}

		return h.relayUsecase.HandleCandidate(ctx, connID, ev)

	case events.TypeSendMessage:
		var ev events.ChatEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal chat message: %w", err)
		}

		return h.relayUsecase.HandleChat(ctx, connID, ev)

	case events.TypeStartScreenShare, events.TypeStopScreenShare:
		var ev events.ScreenShareEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal screen share event: %w", err)
		}

		return h.relayUsecase.HandleScreenShare(ctx, connID, msg.Type, ev)

	case events.TypePing:
		h.relayUsecase.HandlePing(ctx, connID)
		return nil

	default:
		return errors.New("unknown message type")
	}
}

func (h *WebSocketHandler) logWebsocketError(connID uuid.UUID, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			slog.Info("client disconnected from websocket", slog.Any(constant.ConnectionID, connID))
		default:
			slog.Error("websocket close error", slog.Any(constant.Error, err))
		}
	} else {
		slog.Error(
			"websocket read",
			slog.Any(constant.Error, err),
			slog.Any(constant.ConnectionID, connID),
		)
	}
}
