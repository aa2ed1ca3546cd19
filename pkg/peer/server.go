// Package peer implements the sending side of the frame protocol, used to
// bench and test a frame without the real image source.
package peer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/inkframe.go/pkg/framework"
	"github.com/robotalks/inkframe.go/pkg/link"
)

// Fault is a deliberate protocol failure injected into a reply.
type Fault int

// Faults.
const (
	FaultNone Fault = iota
	// FaultSilent ignores the request.
	FaultSilent
	// FaultNACK replies NACK, which still satisfies the ACK scan.
	FaultNACK
	// FaultNoSOF acknowledges but never sends the frame.
	FaultNoSOF
	// FaultStall sends the header and half of the payload.
	FaultStall
	// FaultOversize announces a length no buffer can hold.
	FaultOversize
)

var faultNames = []string{"none", "silent", "nack", "nosof", "stall", "oversize"}

func (f Fault) String() string {
	if f >= 0 && int(f) < len(faultNames) {
		return faultNames[f]
	}
	return fmt.Sprintf("fault(%d)", int(f))
}

// ParseFault parses the name of a fault.
func ParseFault(s string) (Fault, error) {
	for n, name := range faultNames {
		if strings.EqualFold(s, name) {
			return Fault(n), nil
		}
	}
	return FaultNone, fmt.Errorf("unknown fault %q", s)
}

// Server answers frame requests with the current frame.
type Server struct {
	Config link.Config
	// Chatter is sent before the ACK line, e.g. boot noise.
	Chatter string

	lock     sync.Mutex
	frame    []byte
	fault    Fault
	sticky   bool
	requests int
}

// NewServer creates a Server with the default protocol config.
func NewServer(frame []byte) *Server {
	return &Server{Config: *link.NewConfig(), frame: frame}
}

// SetFrame replaces the frame served.
func (s *Server) SetFrame(frame []byte) {
	s.lock.Lock()
	s.frame = frame
	s.lock.Unlock()
}

// Frame returns the frame served.
func (s *Server) Frame() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.frame
}

// LoadFrame reads a raw frame file.
func (s *Server) LoadFrame(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.SetFrame(data)
	return nil
}

// InjectFault applies f to the next reply only, or to all following ones
// when sticky.
func (s *Server) InjectFault(f Fault, sticky bool) {
	s.lock.Lock()
	s.fault, s.sticky = f, sticky
	s.lock.Unlock()
}

// Requests returns the number of requests seen.
func (s *Server) Requests() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.requests
}

// Serve answers requests read from rw until ctx is done or rw fails.
// A Closer is closed to unblock a pending read on cancellation.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	if closer, ok := rw.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, func() error {
			return s.serve(ctx, rw)
		})
	}
	return s.serve(ctx, rw)
}

// ListenAndServe serves TCP connections on addr.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	glog.Infof("peer listening on %s", ln.Addr())
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			go func() {
				glog.Infof("peer connected: %s", conn.RemoteAddr())
				if err := s.Serve(ctx, conn); err != nil && err != context.Canceled {
					glog.V(1).Infof("peer %s: %v", conn.RemoteAddr(), err)
				}
			}()
		}
	})
}

func (s *Server) serve(ctx context.Context, rw io.ReadWriter) error {
	var (
		buf  [256]byte
		line []byte
	)
	request := strings.TrimSpace(s.Config.Request)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := rw.Read(buf[:])
		for _, b := range buf[:n] {
			if b != '\n' {
				line = append(line, b)
				continue
			}
			if strings.TrimSpace(string(line)) == request {
				if err := s.reply(rw); err != nil {
					return err
				}
			}
			line = line[:0]
		}
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (s *Server) reply(w io.Writer) error {
	s.lock.Lock()
	s.requests++
	frame, fault := s.frame, s.fault
	if !s.sticky {
		s.fault = FaultNone
	}
	s.lock.Unlock()

	glog.Infof("request received, fault=%s", fault)
	var out bytes.Buffer
	out.WriteString(s.Chatter)
	switch fault {
	case FaultSilent:
		return nil
	case FaultNACK:
		out.WriteString("N" + s.Config.AckToken + "\n")
	default:
		out.WriteString(s.Config.AckToken + "\n")
	}
	if fault == FaultNoSOF {
		_, err := w.Write(out.Bytes())
		return err
	}
	out.Write(s.Config.SOF)
	length := uint32(len(frame))
	if fault == FaultOversize {
		length = 0xFFFFFFFF
	}
	var hdr [link.LengthSize]byte
	binary.BigEndian.PutUint32(hdr[:], length)
	out.Write(hdr[:])
	switch fault {
	case FaultOversize:
	case FaultStall:
		out.Write(frame[:len(frame)/2])
	default:
		out.Write(frame)
	}
	_, err := w.Write(out.Bytes())
	return err
}
