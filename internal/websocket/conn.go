package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must stay below pongWait

	// subscribers only send refresh requests
	maxMessageSize = 4 * 1024

	maxMessagesPerSecond = 10
)

// Start runs both pumps of a registered client
func (c *Client) Start() {
	go c.WritePump()
	go c.ReadPump()
}

// countMessage counts a received message in the current one-second window
func (c *Client) countMessage(now time.Time) int {
	c.RateMu.Lock()
	defer c.RateMu.Unlock()
	if now.Sub(c.LastResetTime) >= time.Second {
		c.MessageCount = 0
		c.LastResetTime = now
	}
	c.MessageCount++
	return c.MessageCount
}

func (c *Client) logFields() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      c.UserID,
		"commodity_id": c.CommodityID,
	}
}

// ReadPump feeds refresh requests to the hub until the peer goes away
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	extend := func() error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	extend()
	c.Conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error("Live feed read failed", err, c.logFields())
			}
			return
		}
		c.Hub.HandleClientMessage(c, message)
	}
}

// writeFrame writes one frame under a fresh deadline
func (c *Client) writeFrame(messageType int, data []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

// WritePump drains the send queue and keeps the connection alive with pings.
// A closed queue means the hub dropped the client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.Send:
			if !ok {
				c.writeFrame(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
				return
			}

			// events that queued up while writing go out in the same turn
			batch := [][]byte{event}
			for pending := len(c.Send); pending > 0; pending-- {
				next, ok := <-c.Send
				if !ok {
					break
				}
				batch = append(batch, next)
			}

			for _, data := range batch {
				if err := c.writeFrame(websocket.TextMessage, data); err != nil {
					fields := c.logFields()
					fields["batch"] = len(batch)
					logger.Error("Live feed write failed", err, fields)
					return
				}
			}

		case <-ticker.C:
			if err := c.writeFrame(websocket.PingMessage, nil); err != nil {
				logger.Debug("Live feed ping failed", c.logFields())
				return
			}
		}
	}
}
