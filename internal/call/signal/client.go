package signal

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hirelink/intercall/internal/domain"
	"github.com/hirelink/intercall/internal/domain/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is the call-side connection to the signaling relay. Incoming
// envelopes arrive on a channel consumed by the session's single event loop;
// outgoing envelopes go through a write pump so sends never interleave.
type Client struct {
	conn     *websocket.Conn
	incoming chan events.Message
	outgoing chan events.Message
	done     chan struct{}

	closeOnce sync.Once
}

// Dial connects and authenticates against the relay websocket endpoint.
func Dial(ctx context.Context, rawURL, token string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}

	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrRelayUnreachable, rawURL, err)
	}

	c := &Client{
		conn:     conn,
		incoming: make(chan events.Message, 8),
		outgoing: make(chan events.Message, 8),
		done:     make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg events.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			return
		}
	}
}

// Send wraps the payload into an envelope and queues it for delivery.
func (c *Client) Send(typ string, payload any) error {
	msg, err := events.NewMessage(typ, payload)
	if err != nil {
		return err
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return fmt.Errorf("%w: connection closed", domain.ErrRelayUnreachable)
	}
}

// Incoming returns the inbound envelope channel. It is closed when the
// connection drops or Close is called.
func (c *Client) Incoming() <-chan events.Message {
	return c.incoming
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
