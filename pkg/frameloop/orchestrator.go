// Package frameloop drives the endless fetch-and-render cycle.
package frameloop

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/inkframe.go/pkg/clock"
	"github.com/robotalks/inkframe.go/pkg/display"
	"github.com/robotalks/inkframe.go/pkg/link"
	"github.com/robotalks/inkframe.go/pkg/status"
)

// Receiver fetches one frame into buf.
type Receiver interface {
	Receive(buf []byte) link.Outcome
}

// State is the phase of the loop.
type State int32

// States.
const (
	StateIdle State = iota
	StateRequesting
	StateRendering
	StateCooldown
	StateErrorBackoff
)

var stateNames = []string{"idle", "requesting", "rendering", "cooldown", "error-backoff"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Status is the result of a cycle shown at the start of the next one.
type Status int

// Statuses.
const (
	StatusError Status = iota
	StatusOK
	StatusTransferring
)

const hexDumpSize = 32

// Orchestrator requests frames, renders the changed ones and paces the
// cycles. A single goroutine runs it; TriggerNext and State are safe to
// call from others.
type Orchestrator struct {
	Receiver  Receiver
	Sink      display.Sink
	Indicator status.Indicator
	Clock     clock.Clock
	Deduper   Deduper
	Fallback  Fallback
	Config    Config

	buf      []byte
	status   Status
	cycle    uint64
	failures int
	state    int32
	wakeUpCh chan struct{}
}

// New creates an Orchestrator with the default config, checksum dedupe and
// no fallback.
func New(recv Receiver, sink display.Sink, ind status.Indicator, clk clock.Clock) *Orchestrator {
	if clk == nil {
		clk = clock.System{}
	}
	if ind == nil {
		ind = status.Log{}
	}
	return &Orchestrator{
		Receiver:  recv,
		Sink:      sink,
		Indicator: ind,
		Clock:     clk,
		Deduper:   &ChecksumDedupe{},
		Fallback:  NoFallback{},
		Config:    *NewConfig(),
		status:    StatusError,
		wakeUpCh:  make(chan struct{}, 1),
	}
}

// Name implements framework.Named.
func (o *Orchestrator) Name() string {
	return "frameloop"
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return State(atomic.LoadInt32(&o.state))
}

// Status returns the status of the last cycle.
func (o *Orchestrator) Status() Status {
	return o.status
}

// Failures returns the number of consecutive failed cycles.
func (o *Orchestrator) Failures() int {
	return o.failures
}

// TriggerNext ends a running cooldown early. It never interrupts a transfer
// or an error backoff; a trigger outside a cooldown is dropped.
func (o *Orchestrator) TriggerNext() {
	select {
	case o.wakeUpCh <- struct{}{}:
	default:
	}
}

// Run implements framework.Runnable. It only returns when ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.RunCycle(ctx)
	}
}

// RunCycle runs a single cycle including the wait which follows it.
func (o *Orchestrator) RunCycle(ctx context.Context) link.Outcome {
	o.cycle++
	start := o.Clock.Now()
	if o.status == StatusOK {
		o.Indicator.OK()
	} else {
		o.Indicator.Error()
	}

	o.setState(StateRequesting)
	buf := o.buffer()
	for i := range buf {
		buf[i] = o.Config.FillByte
	}
	out := o.Receiver.Receive(buf)
	report := status.Report{
		Cycle:   o.cycle,
		Outcome: out.Kind,
		Phase:   out.Phase,
		Bytes:   out.Received,
		Err:     out.Err,
		Time:    start,
	}

	var wait time.Duration
	switch out.Kind {
	case link.Success:
		o.failures = 0
		wait = o.handleFrame(buf[:out.Received], &report)
	case link.Retryable:
		o.failures++
		o.status = StatusError
		wait = o.Config.RetryBackoff
		glog.Warningf("cycle %d: %v, retrying in %s", o.cycle, out, wait)
	default:
		o.failures++
		o.status = StatusError
		wait = o.Config.FatalDelay
		glog.Errorf("cycle %d: %v, restarting in %s", o.cycle, out, wait)
	}
	if o.failures > 0 {
		o.showFallback(&report)
	}

	report.OK = o.status == StatusOK
	report.Duration = o.Clock.Now().Sub(start)
	if r, ok := o.Indicator.(status.Reporter); ok {
		r.Report(report)
	}

	if o.status == StatusOK {
		o.cooldown(ctx, wait)
	} else {
		o.backoff(ctx, wait)
	}
	o.setState(StateIdle)
	return out
}

func (o *Orchestrator) handleFrame(frame []byte, report *status.Report) time.Duration {
	sum := Checksum(frame)
	report.Checksum = sum
	glog.Infof("received %d bytes, checksum %d", len(frame), sum)
	if glog.V(1) {
		n := len(frame)
		if n > hexDumpSize {
			n = hexDumpSize
		}
		glog.Infof("first %d bytes:\n%s", n, hex.Dump(frame[:n]))
	}

	if o.Deduper.Seen(sum) {
		glog.Info("frame unchanged, skipping render")
		report.Skipped = true
		o.status = StatusOK
		return o.Config.Interval
	}

	if err := o.render(frame); err != nil {
		glog.Errorf("render failed: %v", err)
		report.Err = err
		o.status = StatusError
		return o.Config.FatalDelay
	}
	o.Deduper.Remember(sum)
	report.Rendered = true
	o.status = StatusOK
	o.Indicator.Idle()
	return o.Config.Interval
}

func (o *Orchestrator) render(frame []byte) error {
	o.setState(StateRendering)
	o.status = StatusTransferring
	o.Indicator.Transferring()
	if err := o.Sink.Init(); err != nil {
		return fmt.Errorf("display init: %w", err)
	}
	if err := o.Sink.Render(frame, len(frame)); err != nil {
		return fmt.Errorf("display render: %w", err)
	}
	o.Clock.Sleep(o.Config.RenderSettle)
	if o.Config.SkipDisplaySleep {
		return nil
	}
	if err := o.Sink.Sleep(); err != nil {
		return fmt.Errorf("display sleep: %w", err)
	}
	return nil
}

func (o *Orchestrator) showFallback(report *status.Report) {
	frame, err := o.Fallback.Frame(o.failures)
	if err != nil {
		glog.Errorf("load fallback frame: %v", err)
		return
	}
	if frame == nil {
		return
	}
	if len(frame) > o.Config.FrameSize {
		frame = frame[:o.Config.FrameSize]
	}
	glog.Warningf("%d consecutive failures, showing fallback frame", o.failures)
	if err := o.render(frame); err != nil {
		glog.Errorf("render fallback frame: %v", err)
	} else {
		o.Deduper.Forget()
		report.Fallback = true
	}
	o.status = StatusError
}

func (o *Orchestrator) cooldown(ctx context.Context, d time.Duration) {
	select {
	case <-o.wakeUpCh:
	default:
	}
	o.setState(StateCooldown)
	for remaining := d; remaining > 0; {
		glog.Infof("next update in %d minute(s)", (remaining+time.Minute-1)/time.Minute)
		step := time.Minute
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return
		case <-o.wakeUpCh:
			glog.Info("update triggered")
			return
		case <-o.Clock.After(step):
		}
		remaining -= step
	}
}

func (o *Orchestrator) backoff(ctx context.Context, d time.Duration) {
	o.setState(StateErrorBackoff)
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-o.Clock.After(d):
	}
}

func (o *Orchestrator) buffer() []byte {
	if len(o.buf) != o.Config.FrameSize {
		o.buf = make([]byte, o.Config.FrameSize)
	}
	return o.buf
}

func (o *Orchestrator) setState(s State) {
	atomic.StoreInt32(&o.state, int32(s))
}
