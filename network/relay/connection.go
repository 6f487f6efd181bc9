package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Connection carries JSON-RPC frames to and from the server. Writes of
// requests must not be concurrent; pings and close frames may be sent from
// any routine.
type Connection interface {
	// ReadFrame blocks until the next frame arrived and decodes it.
	ReadFrame(frame *Response) error
	// WriteRequest encodes and writes a request, failing after deadline.
	WriteRequest(request *Request, deadline time.Time) error
	// Ping sends a ping and renews the read deadline by PongWait when the pong arrives.
	Ping(deadline time.Time) error
	// KeepReading sets the initial read deadline, which Ping extends.
	KeepReading(wait time.Duration) error
	// SendClose announces a normal closure to the server.
	SendClose(deadline time.Time) error
	// Close closes the underlying network connection.
	Close() error
}

// WebsocketConnection is a Connection over a gorilla websocket.
type WebsocketConnection struct {
	conn *websocket.Conn
}

var _ Connection = (*WebsocketConnection)(nil)

func NewWebsocketConnection(conn *websocket.Conn) *WebsocketConnection {
	return &WebsocketConnection{conn: conn}
}

func (w *WebsocketConnection) ReadFrame(frame *Response) error {
	return w.conn.ReadJSON(frame)
}

func (w *WebsocketConnection) WriteRequest(request *Request, deadline time.Time) error {
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set the write deadline: %w", err)
	}
	return w.conn.WriteJSON(request)
}

func (w *WebsocketConnection) Ping(deadline time.Time) error {
	return w.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (w *WebsocketConnection) KeepReading(wait time.Duration) error {
	if err := w.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return fmt.Errorf("failed to set the initial read deadline: %w", err)
	}
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(wait))
	})
	return nil
}

// SendClose writes a close frame. A close frame which was already sent is not an error.
func (w *WebsocketConnection) SendClose(deadline time.Time) error {
	err := w.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

func (w *WebsocketConnection) Close() error {
	return w.conn.Close()
}
