// Package serial provides link.Transport over a UART.
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var (
	// ErrNoData indicates ReadByte was called with no input available.
	ErrNoData = errors.New("no data")
	// ErrNoPort indicates auto detection found no serial port.
	ErrNoPort = errors.New("no serial port found")
	// ErrNoOpener indicates Reopen was called on a Port without Opener.
	ErrNoOpener = errors.New("port can't be reopened")
)

// Opener opens a serial port and returns it with its device name.
type Opener func() (serial.Port, string, error)

// Port implements link.Transport. Readability is probed by a read with a
// short timeout whose byte is kept as lookahead.
type Port struct {
	Name string
	// PollTimeout paces IsReadable once the port is broken.
	PollTimeout time.Duration
	// Opener is used by Reopen, nil if the port can't be reopened.
	Opener Opener

	port      serial.Port
	lookahead [1]byte
	pending   bool
	err       error
}

// Open opens the configured device.
func (c *Config) Open() (*Port, error) {
	opener := c.opener()
	sp, name, err := opener()
	if err != nil {
		return nil, err
	}
	p := New(sp, name)
	p.PollTimeout = c.PollTimeout
	p.Opener = opener
	return p, nil
}

// opener detects the device on every call, as a replugged USB adapter
// may come back under another name.
func (c *Config) opener() Opener {
	return func() (serial.Port, string, error) {
		name := c.Device
		if name == "" || name == AutoDetect {
			detected, err := Detect()
			if err != nil {
				return nil, "", err
			}
			glog.Infof("detected serial port %s", detected)
			name = detected
		}
		p, err := serial.Open(name, &serial.Mode{
			BaudRate: c.Baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", name, err)
		}
		if err = p.SetReadTimeout(c.PollTimeout); err != nil {
			p.Close()
			return nil, "", fmt.Errorf("set read timeout on %s: %w", name, err)
		}
		return p, name, nil
	}
}

// New wraps an opened serial.Port. The port must have a read timeout set.
func New(p serial.Port, name string) *Port {
	return &Port{Name: name, PollTimeout: DefaultPollTimeout, port: p}
}

// Detect returns the first USB serial port, or the first port at all when
// none reports USB details.
func Detect() (string, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		for _, d := range details {
			if d.IsUSB {
				return d.Name, nil
			}
		}
	}
	names, err := serial.GetPortsList()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNoPort
	}
	return names[0], nil
}

// IsReadable implements link.Transport.
func (p *Port) IsReadable() bool {
	if p.pending {
		return true
	}
	if p.err != nil {
		time.Sleep(p.PollTimeout)
		return false
	}
	n, err := p.port.Read(p.lookahead[:])
	if err != nil {
		glog.V(1).Infof("%s: read error: %v", p.Name, err)
		p.err = err
		return false
	}
	p.pending = n > 0
	return p.pending
}

// ReadByte implements link.Transport.
func (p *Port) ReadByte() (byte, error) {
	if !p.pending && !p.IsReadable() {
		return 0, ErrNoData
	}
	p.pending = false
	return p.lookahead[0], nil
}

// WriteText implements link.Transport.
func (p *Port) WriteText(s string) error {
	_, err := io.WriteString(p.port, s)
	if err != nil {
		p.err = err
	}
	return err
}

// Flush implements link.Transport.
func (p *Port) Flush() error {
	p.pending = false
	if err := p.port.ResetInputBuffer(); err != nil {
		p.err = err
		return err
	}
	return nil
}

// Err implements link.Reopener. It returns the first I/O error, which
// sticks until Reopen.
func (p *Port) Err() error {
	return p.err
}

// Reopen implements link.Reopener.
func (p *Port) Reopen() error {
	if p.Opener == nil {
		return ErrNoOpener
	}
	p.port.Close()
	sp, name, err := p.Opener()
	if err != nil {
		return err
	}
	p.port, p.Name = sp, name
	p.pending, p.err = false, nil
	return nil
}

// Close implements io.Closer.
func (p *Port) Close() error {
	return p.port.Close()
}

// Raw returns the underlying port, e.g. to serve the peer side of the
// protocol.
func (p *Port) Raw() serial.Port {
	return p.port
}
