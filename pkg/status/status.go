// Package status reflects the state of the transfer loop to the outside.
package status

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/inkframe.go/pkg/link"
)

// Indicator shows the coarse state. Implementations absorb their own
// failures; an indicator must never stop the loop.
type Indicator interface {
	OK()
	Error()
	Transferring()
	Idle()
}

// Report describes one finished cycle.
type Report struct {
	Cycle    uint64
	OK       bool
	Outcome  link.Kind
	Phase    link.Phase
	Bytes    int
	Checksum uint32
	Rendered bool
	Skipped  bool
	Fallback bool
	Duration time.Duration
	Time     time.Time
	Err      error
}

// Reporter is optionally implemented by an Indicator to receive a Report
// after every cycle.
type Reporter interface {
	Report(Report)
}

// Multi fans out to multiple indicators.
type Multi []Indicator

// OK implements Indicator.
func (m Multi) OK() {
	for _, i := range m {
		i.OK()
	}
}

// Error implements Indicator.
func (m Multi) Error() {
	for _, i := range m {
		i.Error()
	}
}

// Transferring implements Indicator.
func (m Multi) Transferring() {
	for _, i := range m {
		i.Transferring()
	}
}

// Idle implements Indicator.
func (m Multi) Idle() {
	for _, i := range m {
		i.Idle()
	}
}

// Report implements Reporter.
func (m Multi) Report(r Report) {
	for _, i := range m {
		if rep, ok := i.(Reporter); ok {
			rep.Report(r)
		}
	}
}

// Log writes state changes to the log.
type Log struct{}

// OK implements Indicator.
func (Log) OK() { glog.V(1).Info("status: ok") }

// Error implements Indicator.
func (Log) Error() { glog.V(1).Info("status: error") }

// Transferring implements Indicator.
func (Log) Transferring() { glog.V(1).Info("status: transferring") }

// Idle implements Indicator.
func (Log) Idle() { glog.V(1).Info("status: idle") }

// Report implements Reporter. Failed cycles are already logged by the
// loop with their retry delay, so they are only traced here.
func (Log) Report(r Report) {
	if r.OK {
		glog.Infof("cycle %d: %d bytes, checksum %d, rendered=%v (%s)",
			r.Cycle, r.Bytes, r.Checksum, r.Rendered, r.Duration)
		return
	}
	glog.V(1).Infof("cycle %d: %s at %s: %v (%s)", r.Cycle, r.Outcome, r.Phase, r.Err, r.Duration)
}
