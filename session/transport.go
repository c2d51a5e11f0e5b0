package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"monopolis-server/protocol"
)

// Transport carries protocol messages between a device and the relay.
// Connect sends hello and returns the inbound stream, which is closed when
// the connection ends. Send takes protocol message structs.
type Transport interface {
	Connect(ctx context.Context, hello protocol.HelloMsg) (<-chan []byte, error)
	Send(ctx context.Context, msg any) error
	Close() error
}

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 16
	inboundBuffer  = 256
)

// WSTransport talks to the relay's /ws endpoint over gorilla/websocket.
type WSTransport struct {
	URL    string
	Dialer *websocket.Dialer
	Header http.Header

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSTransport returns a transport for a relay websocket URL such as
// ws://host:8080/ws.
func NewWSTransport(url string) *WSTransport {
	return &WSTransport{URL: url, Dialer: websocket.DefaultDialer}
}

func (t *WSTransport) Connect(ctx context.Context, hello protocol.HelloMsg) (<-chan []byte, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, t.URL, t.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.URL, err)
	}
	conn.SetReadLimit(maxMessageSize)

	t.mu.Lock()
	if old := t.conn; old != nil {
		old.Close()
	}
	t.conn = conn
	t.mu.Unlock()

	if err := t.Send(ctx, hello); err != nil {
		conn.Close()
		return nil, err
	}

	in := make(chan []byte, inboundBuffer)
	go t.readPump(conn, in)
	return in, nil
}

func (t *WSTransport) readPump(conn *websocket.Conn, in chan<- []byte) {
	defer close(in)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("relay read error", "tag", "session", "err", err)
			}
			return
		}
		in <- data
	}
}

func (t *WSTransport) Send(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrNotConnected
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	t.conn.SetWriteDeadline(deadline)
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	conn := t.conn
	t.conn = nil
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return conn.Close()
}
