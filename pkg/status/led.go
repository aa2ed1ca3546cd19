package status

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/robotalks/inkframe.go/pkg/clock"
)

// Blink is one on/off period.
type Blink struct {
	On  time.Duration
	Off time.Duration
}

// LED patterns.
var (
	BlinkOK    = Blink{On: 200 * time.Millisecond, Off: 1800 * time.Millisecond}
	BlinkError = Blink{On: 200 * time.Millisecond, Off: 300 * time.Millisecond}
)

// LED shows the state on a GPIO driven LED. OK and Error play one blink
// period and return; Transferring keeps the LED on.
type LED struct {
	Pin   gpio.PinOut
	Clock clock.Clock
}

// NewLED opens the named pin (e.g. GPIO26).
func NewLED(name string) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("led: periph host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("led: gpio %s not found", name)
	}
	l := &LED{Pin: p, Clock: clock.System{}}
	return l, l.set(gpio.Low)
}

// OK implements Indicator.
func (l *LED) OK() { l.blink(BlinkOK) }

// Error implements Indicator.
func (l *LED) Error() { l.blink(BlinkError) }

// Transferring implements Indicator.
func (l *LED) Transferring() { l.set(gpio.High) }

// Idle implements Indicator.
func (l *LED) Idle() { l.set(gpio.Low) }

func (l *LED) blink(b Blink) {
	if l.set(gpio.High) != nil {
		return
	}
	l.Clock.Sleep(b.On)
	l.set(gpio.Low)
	l.Clock.Sleep(b.Off)
}

func (l *LED) set(level gpio.Level) error {
	err := l.Pin.Out(level)
	if err != nil {
		glog.Warningf("led %s: %v", l.Pin, err)
	}
	return err
}
