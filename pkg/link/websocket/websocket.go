// Package websocket provides link.Transport over a websocket carrying the
// raw serial byte stream in binary frames.
package websocket

import (
	"io"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/robotalks/inkframe.go/pkg/link/stream"
)

// Dial connects to a serial-over-websocket bridge.
func Dial(url, origin string) (*stream.Transport, error) {
	if origin == "" {
		origin = "http://localhost/"
	}
	dialer := func() (stream.Conn, error) {
		conn, err := websocket.Dial(url, "", origin)
		if err != nil {
			return nil, err
		}
		conn.PayloadType = websocket.BinaryFrame
		return conn, nil
	}
	conn, err := dialer()
	if err != nil {
		return nil, err
	}
	t := stream.New(conn)
	t.Dialer = dialer
	return t, nil
}

// New wraps an established websocket connection.
func New(conn *websocket.Conn) *stream.Transport {
	conn.PayloadType = websocket.BinaryFrame
	return stream.New(conn)
}

// Handler serves each websocket connection with fn, which receives the
// connection as a binary byte stream.
func Handler(fn func(io.ReadWriter)) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		fn(conn)
	})
}
