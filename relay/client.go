package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"monopolis-server/auth"
	"monopolis-server/protocol"
	"monopolis-server/roomerrors"
	"monopolis-server/rooms"
	"monopolis-server/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Time allowed for a room to accept a forwarded message.
	roomWait = 5 * time.Second
)

// Client is a middleman between the websocket connection and a room.
// Room and PlayerID are set once by the hello and read by the hub after
// ReadPump has returned.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Room     *rooms.Room
	PlayerID string
}

// ReadPump pumps messages from the websocket connection to the room.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.Done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "tag", "client", "player", c.PlayerID, "err", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope protocol.InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError(protocol.CodeBadRequest, "invalid message format", "")
		return
	}

	if envelope.Type == protocol.TypeHello {
		c.handleHello(envelope.Raw)
		return
	}
	if c.Room == nil {
		c.sendError(protocol.CodeBadRequest, "hello first", "")
		return
	}

	switch envelope.Type {
	case protocol.TypeRoll, protocol.TypePrisonSkip:
		c.handleEvent(envelope.Raw)
	case protocol.TypeResume:
		c.handleResume(envelope.Raw)
	default:
		c.sendError(protocol.CodeBadRequest, "unknown message type: "+envelope.Type, "")
	}
}

func (c *Client) handleHello(raw json.RawMessage) {
	if c.Room != nil {
		c.sendError(protocol.CodeBadRequest, "already joined", "")
		return
	}
	var msg protocol.HelloMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.RoomID == "" || msg.PlayerID == "" {
		c.sendError(protocol.CodeBadRequest, "invalid hello message", "")
		return
	}

	if err := c.authorize(msg); err != nil {
		slog.Info("hello rejected", "tag", "client", "room", msg.RoomID, "player", msg.PlayerID, "err", err)
		c.sendError(protocol.CodeUnauthorized, "invalid token", "")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), roomWait)
	defer cancel()
	room, err := c.Hub.Rooms.Join(ctx, msg.RoomID, msg.PlayerID, c.Send, msg.LastSeq)
	switch {
	case errors.Is(err, roomerrors.ErrRoomNotFound), errors.Is(err, roomerrors.ErrRoomClosed):
		c.sendError(protocol.CodeRoomNotFound, "room not found", "")
		return
	case errors.Is(err, roomerrors.ErrNotSeated):
		c.sendError(protocol.CodeNotSeated, "player is not seated in this room", "")
		return
	case err != nil:
		slog.Warn("join failed", "tag", "client", "room", msg.RoomID, "player", msg.PlayerID, "err", err)
		c.sendError(protocol.CodeBadRequest, "join failed", "")
		return
	}
	c.Room = room
	c.PlayerID = msg.PlayerID
}

func (c *Client) authorize(msg protocol.HelloMsg) error {
	if c.Hub.Verifier == nil {
		return nil
	}
	claims, err := c.Hub.Verifier.Verify(msg.Token)
	if err != nil {
		return err
	}
	if auth.UserIDFromClaims(claims) != msg.PlayerID {
		return roomerrors.ErrUnauthorized
	}
	return nil
}

func (c *Client) handleEvent(raw json.RawMessage) {
	var ev protocol.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.sendError(protocol.CodeBadRequest, "invalid event", "")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), roomWait)
	defer cancel()
	if err := c.Room.Submit(ctx, c.PlayerID, ev); err != nil {
		c.sendError(protocol.CodeRoomNotFound, "room is closed", ev.IntentID)
	}
}

func (c *Client) handleResume(raw json.RawMessage) {
	var msg protocol.ResumeMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError(protocol.CodeBadRequest, "invalid resume message", "")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), roomWait)
	defer cancel()
	if err := c.Room.Resume(ctx, c.PlayerID, msg.LastSeq, msg.Full); err != nil {
		c.sendError(protocol.CodeRoomNotFound, "room is closed", "")
	}
}

func (c *Client) sendError(code, message, intentID string) {
	wsutil.SafeSend(c.Send, protocol.Encode(protocol.NewError(code, message, intentID)))
}
