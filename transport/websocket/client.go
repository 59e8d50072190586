package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/gobang-online/game/service"
)

// Client is one WebSocket connection of an identity.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	id       string
	identity string
	room     string

	disconnectOnce sync.Once
}

func (c *Client) info() service.Conn {
	return service.Conn{ID: c.id, Identity: c.identity, Room: c.room}
}

// disconnect unregisters the client and reports it to the coordinator. It
// runs at most once however the connection ended.
func (c *Client) disconnect() {
	c.disconnectOnce.Do(func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.hub.coordinator.OnDisconnect(context.Background(), c.info())
	})
}

// readPump pumps frames from the WebSocket connection to the coordinator
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.disconnect()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Str("conn", c.id).Msg("websocket read error")
			}
			break
		}
		c.hub.dispatch(ctx, c, data)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per message; clients parse each frame as a single
			// JSON document.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
