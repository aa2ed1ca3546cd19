package link

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/inkframe.go/pkg/clock"
)

// Receiver runs transfer cycles over a Transport.
type Receiver struct {
	Transport Transport
	Clock     clock.Clock
	Config    Config

	lastReceived int
}

// NewReceiver creates a Receiver with the default config.
func NewReceiver(t Transport, clk clock.Clock) *Receiver {
	if clk == nil {
		clk = clock.System{}
	}
	return &Receiver{Transport: t, Clock: clk, Config: *NewConfig()}
}

// LastReceived returns the payload bytes received by the last cycle,
// whatever its outcome.
func (r *Receiver) LastReceived() int {
	return r.lastReceived
}

// Receive executes one full cycle writing the payload into buf. The
// capacity is len(buf); buf is not referenced after Receive returns.
func (r *Receiver) Receive(buf []byte) (out Outcome) {
	defer func() { r.lastReceived = out.Received }()

	glog.Info("requesting frame")
	if err := r.request(); err != nil {
		return Failed(PhaseRequest, err)
	}
	r.Clock.Sleep(r.Config.SettleDelay)

	if !r.awaitAck() {
		glog.Warning("no ACK within timeout")
		return TimedOut(PhaseAwaitAck, 0)
	}
	glog.Info("ACK received, waiting for start of frame")

	if !r.awaitSOF() {
		glog.Warning("no start of frame within timeout")
		return TimedOut(PhaseAwaitSOF, 0)
	}

	size, ok := r.readLength()
	if !ok {
		glog.Warning("length header incomplete within timeout")
		return TimedOut(PhaseReadLength, 0)
	}
	glog.Infof("frame header: %d bytes", size)
	if uint64(size) > uint64(len(buf)) {
		glog.Errorf("frame size %d exceeds buffer size %d", size, len(buf))
		return Failed(PhaseReadLength, fmt.Errorf("%w: %d > %d", ErrOversizedFrame, size, len(buf)))
	}

	if n := r.readPayload(buf[:size]); n < int(size) {
		return TimedOut(PhaseReadPayload, n)
	}
	glog.Infof("frame received: %d bytes", size)
	return Succeeded(int(size))
}

// request flushes stale input and sends the request. A Reopener transport
// is reopened when its link is already broken, or when the request fails,
// and the request is sent once more.
func (r *Receiver) request() error {
	ro, reopenable := r.Transport.(Reopener)
	reopened := false
	if reopenable && ro.Err() != nil {
		if err := r.reopen(ro, ro.Err()); err != nil {
			return err
		}
		reopened = true
	}
	err := r.send()
	if err != nil && reopenable && !reopened {
		if rerr := r.reopen(ro, err); rerr != nil {
			return rerr
		}
		err = r.send()
	}
	return err
}

func (r *Receiver) send() error {
	if err := r.Transport.Flush(); err != nil {
		return &TransportError{Op: "flush", Err: err}
	}
	if err := r.Transport.WriteText(r.Config.Request); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func (r *Receiver) reopen(ro Reopener, cause error) error {
	glog.Warningf("link broken (%v), reopening", cause)
	if err := ro.Reopen(); err != nil {
		glog.Errorf("reopen failed: %v", err)
		return &TransportError{Op: "reopen", Err: err}
	}
	glog.Info("link reopened")
	return nil
}

func (r *Receiver) awaitAck() bool {
	line := newLineScanner(r.Config.AckLineSize)
	return r.poll(r.Config.AckTimeout, func(b byte) bool {
		s, done := line.Feed(b)
		if !done {
			return false
		}
		if ContainsACK(string(s), r.Config.AckToken) {
			return true
		}
		glog.V(1).Infof("ignored line %q", s)
		return false
	})
}

func (r *Receiver) awaitSOF() bool {
	m := NewSOFMatcher(r.Config.SOF)
	return r.poll(r.Config.SOFTimeout, m.Feed)
}

func (r *Receiver) readLength() (uint32, bool) {
	var hdr [LengthSize]byte
	n := 0
	ok := r.poll(r.Config.HeaderTimeout, func(b byte) bool {
		hdr[n] = b
		n++
		return n == LengthSize
	})
	return ParseLength(hdr), ok
}

// poll feeds received bytes to fn until it returns true or timeout elapsed
// since the phase started. The deadline is checked on every iteration.
func (r *Receiver) poll(timeout time.Duration, fn func(byte) bool) bool {
	start := r.Clock.Now()
	for r.Clock.Now().Sub(start) < timeout {
		b, ok := r.next()
		if ok && fn(b) {
			return true
		}
	}
	return false
}

func (r *Receiver) readPayload(dst []byte) int {
	received := 0
	start := r.Clock.Now()
	lastLog := start
	for received < len(dst) {
		now := r.Clock.Now()
		if now.Sub(start) >= r.Config.PayloadTimeout {
			glog.Warningf("timeout waiting for frame data: %d/%d bytes", received, len(dst))
			return received
		}
		if iv := r.Config.ProgressInterval; iv > 0 && now.Sub(lastLog) >= iv {
			glog.Infof("still waiting for frame data: %d/%d bytes", received, len(dst))
			lastLog = now
		}
		b, ok := r.next()
		if !ok {
			continue
		}
		dst[received] = b
		received++
		if pb := r.Config.ProgressBytes; pb > 0 && received%pb == 0 {
			glog.V(2).Infof("received %d/%d bytes", received, len(dst))
		}
	}
	return received
}

func (r *Receiver) next() (byte, bool) {
	if !r.Transport.IsReadable() {
		if r.Config.PollInterval > 0 {
			r.Clock.Sleep(r.Config.PollInterval)
		}
		return 0, false
	}
	b, err := r.Transport.ReadByte()
	if err != nil {
		glog.V(1).Infof("read error: %v", err)
		return 0, false
	}
	return b, true
}
