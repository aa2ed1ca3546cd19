// Package stream provides link.Transport over a connection supporting read
// deadlines, e.g. a TCP serial bridge (ser2net) or a websocket.
package stream

import (
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/golang/glog"
)

// DefaultPollTimeout is the read deadline used to probe for input.
const DefaultPollTimeout = 10 * time.Millisecond

// maxFlush bounds how much input a single Flush discards, so a peer which
// never stops talking can't stall the request.
const maxFlush = 1 << 20

var (
	// ErrNoData indicates ReadByte was called with no input available.
	ErrNoData = errors.New("no data")
	// ErrNoDialer indicates Reopen was called on a Transport without Dialer.
	ErrNoDialer = errors.New("transport can't be reopened")
)

// Dialer establishes a new connection for Reopen.
type Dialer func() (Conn, error)

// Conn is the connection used by Transport.
type Conn interface {
	io.ReadWriter
	SetReadDeadline(time.Time) error
}

// Transport implements link.Transport.
type Transport struct {
	Conn        Conn
	PollTimeout time.Duration
	// Dialer is used by Reopen, nil if the connection can't be redialed.
	Dialer Dialer

	buf  [512]byte
	r, n int
	err  error
}

// New creates a Transport.
func New(conn Conn) *Transport {
	return &Transport{Conn: conn, PollTimeout: DefaultPollTimeout}
}

// Dial connects to a tcp:// (or host:port) serial bridge.
func Dial(addr string) (*Transport, error) {
	if u, err := url.Parse(addr); err == nil && u.Scheme == "tcp" {
		addr = u.Host
	}
	dialer := func() (Conn, error) {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	conn, err := dialer()
	if err != nil {
		return nil, err
	}
	t := New(conn)
	t.Dialer = dialer
	return t, nil
}

// Err implements link.Reopener. It returns the last non-timeout read
// error, which sticks until Reopen.
func (t *Transport) Err() error {
	return t.err
}

// IsReadable implements link.Transport.
func (t *Transport) IsReadable() bool {
	if t.r < t.n {
		return true
	}
	return t.fill(t.PollTimeout)
}

// ReadByte implements link.Transport.
func (t *Transport) ReadByte() (byte, error) {
	if t.r >= t.n && !t.fill(t.PollTimeout) {
		if t.err != nil {
			return 0, t.err
		}
		return 0, ErrNoData
	}
	b := t.buf[t.r]
	t.r++
	return b, nil
}

// WriteText implements link.Transport.
func (t *Transport) WriteText(s string) error {
	_, err := io.WriteString(t.Conn, s)
	return err
}

// Flush implements link.Transport.
func (t *Transport) Flush() error {
	dropped := t.n - t.r
	t.r, t.n = 0, 0
	for dropped < maxFlush && t.fill(time.Millisecond) {
		dropped += t.n
		t.r, t.n = 0, 0
	}
	if dropped > 0 {
		glog.V(1).Infof("flushed %d bytes", dropped)
	}
	if t.err != nil && t.err != io.EOF {
		return t.err
	}
	return nil
}

// Reopen implements link.Reopener.
func (t *Transport) Reopen() error {
	if t.Dialer == nil {
		return ErrNoDialer
	}
	t.Close()
	conn, err := t.Dialer()
	if err != nil {
		return err
	}
	t.Conn, t.err = conn, nil
	t.r, t.n = 0, 0
	return nil
}

// Close closes the connection if it is an io.Closer.
func (t *Transport) Close() error {
	if closer, ok := t.Conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (t *Transport) fill(timeout time.Duration) bool {
	if t.err != nil {
		// a broken connection stays unreadable, keep the poll rate bounded.
		time.Sleep(timeout)
		return false
	}
	if err := t.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.err = err
		return false
	}
	n, err := t.Conn.Read(t.buf[:])
	t.r, t.n = 0, n
	if err != nil && !os.IsTimeout(err) {
		t.err = err
	}
	return n > 0
}
