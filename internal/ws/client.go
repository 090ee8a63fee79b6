package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"poker_arena/internal/client"
	"poker_arena/internal/domain"
	"poker_arena/internal/logger"
	"poker_arena/internal/service"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
)

// Client bridges one websocket connection to a session adapter: inbound
// messages become session commands, session events stream back out.
type Client struct {
	UserID  int64
	Conn    *websocket.Conn
	Send    chan []byte
	Session *client.Session

	done chan struct{}
}

func NewClient(userID int64, conn *websocket.Conn, session *client.Session) *Client {
	return &Client{
		UserID:  userID,
		Conn:    conn,
		Send:    make(chan []byte, 64),
		Session: session,
		done:    make(chan struct{}),
	}
}

// Run services the connection until the peer goes away.
func (c *Client) Run() {
	go c.writePump()
	go c.forwardEvents()

	c.sendStatus()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.Session.Close()
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			logger.Debug("ws read closed", "user", c.UserID, "error", err)
			return
		}
		c.handleMessage(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// forwardEvents relays applied sync-channel events to the socket verbatim.
func (c *Client) forwardEvents() {
	for {
		select {
		case ev := <-c.Session.Events():
			c.write(Message{Type: ev.Type, Payload: ev.Payload})
		case <-c.done:
			return
		}
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("malformed message")
		return
	}

	switch msg.Type {
	case MsgStartMatching:
		var p startMatchingPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Mode == "" {
			c.sendError("mode required")
			return
		}
		// StartMatching blocks until paired or timed out; don't hold up the
		// read loop.
		go c.startMatching(domain.Mode(p.Mode))

	case MsgCancelMatch:
		if err := c.Session.CancelMatching(context.Background()); err != nil {
			c.sendError("cancel failed")
			return
		}
		c.sendStatus()

	case MsgSubmitAnswer:
		var p submitAnswerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Action == "" {
			c.sendError("action required")
			return
		}
		if err := c.Session.SubmitAnswer(context.Background(), p.Action, p.TimeMs, p.Score); err != nil {
			c.sendCommandError(err)
		}

	case MsgLeaveBattle:
		if err := c.Session.LeaveBattle(context.Background()); err != nil {
			c.sendCommandError(err)
			return
		}
		c.sendStatus()

	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) startMatching(mode domain.Mode) {
	snap, err := c.Session.StartMatching(context.Background(), mode)
	switch {
	case err == nil:
		payload, _ := json.Marshal(snap)
		c.write(Message{Type: MsgMatched, Payload: payload})
	case errors.Is(err, service.ErrMatchTimeout):
		c.write(Message{Type: MsgMatchTimeout})
	case errors.Is(err, client.ErrBusy):
		c.sendError("already in a session")
	default:
		logger.Error("matchmaking failed", "user", c.UserID, "error", err)
		c.sendError("matchmaking failed")
	}
	c.sendStatus()
}

func (c *Client) sendStatus() {
	payload, _ := json.Marshal(map[string]string{"status": string(c.Session.Status())})
	c.write(Message{Type: MsgStatus, Payload: payload})
}

func (c *Client) sendCommandError(err error) {
	switch {
	case errors.Is(err, service.ErrBattleClosed):
		// terminal battle: the client should discard, not retry
		c.sendStatus()
	case errors.Is(err, client.ErrBusy):
		c.sendError("no active battle")
	default:
		c.sendError("operation failed")
	}
}

func (c *Client) sendError(message string) {
	payload, _ := json.Marshal(errorPayload{Message: message})
	c.write(Message{Type: MsgError, Payload: payload})
}

func (c *Client) write(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	case <-c.done:
	case <-time.After(writeWait):
		logger.Warn("ws send timeout, dropping message", "user", c.UserID, "type", msg.Type)
	}
}
