// Package epd drives a Waveshare 7.3" seven-color e-paper panel (800x480,
// two pixels per byte) over SPI using periph.io.
package epd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/robotalks/inkframe.go/pkg/clock"
)

// Panel geometry.
const (
	Width     = 800
	Height    = 480
	FrameSize = Width * Height / 2
)

// White is the fill byte of two white pixels.
const White = 0x11

// maxTx is the spidev default transfer limit.
const maxTx = 4096

// ErrBusyTimeout indicates the panel didn't become idle in time.
var ErrBusyTimeout = errors.New("epd: busy timeout")

type command struct {
	cmd  byte
	data []byte
}

// init sequence of the 7.3" F panel.
var initSequence = []command{
	{0xAA, []byte{0x49, 0x55, 0x20, 0x08, 0x09, 0x18}},
	{0x01, []byte{0x3F, 0x00, 0x32, 0x2A, 0x0E, 0x2A}},
	{0x00, []byte{0x5F, 0x69}},
	{0x03, []byte{0x00, 0x54, 0x00, 0x44}},
	{0x05, []byte{0x40, 0x1F, 0x1F, 0x2C}},
	{0x06, []byte{0x6F, 0x1F, 0x1F, 0x22}},
	{0x08, []byte{0x6F, 0x1F, 0x1F, 0x22}},
	{0x13, []byte{0x00, 0x04}},
	{0x30, []byte{0x3C}},
	{0x41, []byte{0x00}},
	{0x50, []byte{0x3F}},
	{0x60, []byte{0x02, 0x00}},
	{0x61, []byte{0x03, 0x20, 0x01, 0xE0}},
	{0x82, []byte{0x1E}},
	{0x84, []byte{0x00}},
	{0x86, []byte{0x00}},
	{0xE3, []byte{0x2F}},
	{0xE0, []byte{0x00}},
	{0xE6, []byte{0x00}},
}

const (
	cmdDataStart = 0x10
	cmdPowerOn   = 0x04
	cmdRefresh   = 0x12
	cmdPowerOff  = 0x02
	cmdDeepSleep = 0x07
)

// Driver implements display.Sink.
type Driver struct {
	Conn        spi.Conn
	RST         gpio.PinOut
	DC          gpio.PinOut
	Busy        gpio.PinIn
	PWR         gpio.PinOut
	Clock       clock.Clock
	BusyTimeout time.Duration

	closer io.Closer
}

// NewDriver initializes periph.io and opens the configured port and pins.
func (c *Config) NewDriver() (*Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: periph host init: %w", err)
	}
	port, err := spireg.Open(c.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("epd: open SPI port: %w", err)
	}
	conn, err := port.Connect(physic.Frequency(c.SPIHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("epd: connect SPI: %w", err)
	}
	d := &Driver{
		Conn:        conn,
		Clock:       clock.System{},
		BusyTimeout: c.BusyTimeout,
		closer:      port,
	}
	if d.RST, err = outPin(c.RSTPin); err == nil {
		if d.DC, err = outPin(c.DCPin); err == nil {
			d.Busy, err = inPin(c.BusyPin)
		}
	}
	if err == nil && c.PWRPin != "" {
		d.PWR, err = outPin(c.PWRPin)
	}
	if err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

func outPin(name string) (gpio.PinOut, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("epd: gpio %s not found", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("epd: gpio %s out: %w", name, err)
	}
	return p, nil
}

func inPin(name string) (gpio.PinIn, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("epd: gpio %s not found", name)
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("epd: gpio %s in: %w", name, err)
	}
	return p, nil
}

// Init implements display.Sink.
func (d *Driver) Init() error {
	if d.PWR != nil {
		if err := d.PWR.Out(gpio.High); err != nil {
			return err
		}
	}
	if err := d.reset(); err != nil {
		return err
	}
	if err := d.waitIdle(); err != nil {
		return err
	}
	d.Clock.Sleep(30 * time.Millisecond)
	for _, c := range initSequence {
		if err := d.send(c.cmd, c.data); err != nil {
			return err
		}
	}
	return nil
}

// Render implements display.Sink. A frame shorter than FrameSize is padded
// with white; bytes beyond FrameSize are ignored.
func (d *Driver) Render(buf []byte, n int) error {
	if n > len(buf) {
		n = len(buf)
	}
	if n > FrameSize {
		n = FrameSize
	}
	if err := d.command(cmdDataStart); err != nil {
		return err
	}
	if err := d.data(buf[:n]); err != nil {
		return err
	}
	if pad := FrameSize - n; pad > 0 {
		fill := make([]byte, pad)
		for i := range fill {
			fill[i] = White
		}
		if err := d.data(fill); err != nil {
			return err
		}
	}
	glog.V(1).Infof("epd: %d bytes sent, refreshing", n)
	return d.turnOn()
}

// Sleep implements display.Sink.
func (d *Driver) Sleep() error {
	if err := d.send(cmdDeepSleep, []byte{0xA5}); err != nil {
		return err
	}
	if d.PWR != nil {
		d.Clock.Sleep(2 * time.Second)
		return d.PWR.Out(gpio.Low)
	}
	return nil
}

// Close releases the SPI port.
func (d *Driver) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

func (d *Driver) turnOn() error {
	if err := d.command(cmdPowerOn); err != nil {
		return err
	}
	if err := d.waitIdle(); err != nil {
		return err
	}
	if err := d.send(cmdRefresh, []byte{0x00}); err != nil {
		return err
	}
	if err := d.waitIdle(); err != nil {
		return err
	}
	if err := d.send(cmdPowerOff, []byte{0x00}); err != nil {
		return err
	}
	return d.waitIdle()
}

func (d *Driver) reset() error {
	for _, step := range []struct {
		level gpio.Level
		delay time.Duration
	}{
		{gpio.High, 20 * time.Millisecond},
		{gpio.Low, 2 * time.Millisecond},
		{gpio.High, 20 * time.Millisecond},
	} {
		if err := d.RST.Out(step.level); err != nil {
			return err
		}
		d.Clock.Sleep(step.delay)
	}
	return nil
}

// waitIdle waits while BUSY is low.
func (d *Driver) waitIdle() error {
	start := d.Clock.Now()
	for d.Busy.Read() == gpio.Low {
		if d.BusyTimeout > 0 && d.Clock.Now().Sub(start) >= d.BusyTimeout {
			return ErrBusyTimeout
		}
		d.Clock.Sleep(time.Millisecond)
	}
	return nil
}

func (d *Driver) send(cmd byte, data []byte) error {
	if err := d.command(cmd); err != nil {
		return err
	}
	return d.data(data)
}

func (d *Driver) command(cmd byte) error {
	if err := d.DC.Out(gpio.Low); err != nil {
		return err
	}
	return d.Conn.Tx([]byte{cmd}, nil)
}

func (d *Driver) data(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if err := d.DC.Out(gpio.High); err != nil {
		return err
	}
	for len(p) > 0 {
		n := len(p)
		if n > maxTx {
			n = maxTx
		}
		if err := d.Conn.Tx(p[:n], nil); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
