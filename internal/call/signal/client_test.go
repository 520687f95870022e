package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/hirelink/intercall/internal/domain"
	"github.com/hirelink/intercall/internal/domain/events"
)

// echoRelay upgrades and echoes every envelope back, recording the token it
// was dialed with.
func echoRelay(t *testing.T) (*httptest.Server, chan string) {
	t.Helper()

	tokens := make(chan string, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var msg events.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}))

	return srv, tokens
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDial_SendAndReceive(t *testing.T) {
	srv, tokens := echoRelay(t)
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv), "jwt-token")
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, "jwt-token", <-tokens)

	err = c.Send(events.TypeJoinRoom, events.JoinEvent{RoomID: "room-1", UserID: "alice"})
	require.NoError(t, err)

	select {
	case msg := <-c.Incoming():
		require.Equal(t, events.TypeJoinRoom, msg.Type)

		var ev events.JoinEvent
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		require.Equal(t, "room-1", ev.RoomID)
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope echoed back")
	}
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/api/v1/ws", "jwt")
	require.True(t, errors.Is(err, domain.ErrRelayUnreachable))
}

func TestDial_InvalidURL(t *testing.T) {
	_, err := Dial(context.Background(), "://bad", "jwt")
	require.Error(t, err)
}

func TestIncoming_ClosedWhenServerDrops(t *testing.T) {
	srv, _ := echoRelay(t)

	c, err := Dial(context.Background(), wsURL(srv), "jwt")
	require.NoError(t, err)
	defer c.Close()

	srv.CloseClientConnections()

	select {
	case _, open := <-c.Incoming():
		require.False(t, open, "incoming must close when the connection drops")
	case <-time.After(2 * time.Second):
		t.Fatal("incoming channel never closed")
	}
}

func TestSend_AfterClose(t *testing.T) {
	srv, _ := echoRelay(t)
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv), "jwt")
	require.NoError(t, err)

	c.Close()
	c.Close() // idempotent

	err = c.Send(events.TypePing, nil)
	require.True(t, errors.Is(err, domain.ErrRelayUnreachable))
}
