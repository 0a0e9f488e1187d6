package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// PongWait bounds how long a silent client stays connected.
	PongWait = 60 * time.Second
	// PingPeriod must be shorter than PongWait.
	PingPeriod = PongWait * 9 / 10
	// MaxMessageSize caps a single client message.
	MaxMessageSize = 4096
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WritePing sends a control ping.
func WritePing(conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// WriteClose sends a normal close frame with reason.
func WriteClose(conn *websocket.Conn, reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// PrepareRead applies the read limit and keeps the read deadline moving on
// every pong.
func PrepareRead(conn *websocket.Conn) {
	conn.SetReadLimit(MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PongWait))
	})
}

// ReadJSON reads and decodes a message into the provided structure,
// extending the read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(PongWait))
	return conn.ReadJSON(v)
}
