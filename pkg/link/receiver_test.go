package link

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/inkframe.go/pkg/clock"
)

// scriptTransport delivers reply bytes once the request has been written.
// Bytes present before the request are stale and dropped by Flush.
type scriptTransport struct {
	in       []byte
	reply    []byte
	written  bytes.Buffer
	reads    int
	flushes  int
	writeErr error
}

func newScriptTransport(stale []byte, reply ...[]byte) *scriptTransport {
	return &scriptTransport{in: stale, reply: bytes.Join(reply, nil)}
}

func (t *scriptTransport) IsReadable() bool {
	return len(t.in) > 0
}

func (t *scriptTransport) ReadByte() (byte, error) {
	if len(t.in) == 0 {
		return 0, io.EOF
	}
	b := t.in[0]
	t.in = t.in[1:]
	t.reads++
	return b, nil
}

func (t *scriptTransport) WriteText(s string) error {
	if t.writeErr != nil {
		return t.writeErr
	}
	t.written.WriteString(s)
	t.in = append(t.in, t.reply...)
	return nil
}

func (t *scriptTransport) Flush() error {
	t.flushes++
	t.in = nil
	return nil
}

func testReceiver(t *testing.T, tr Transport) (*Receiver, *clock.Fake) {
	clk := clock.NewFake(time.Millisecond)
	conf := NewConfig()
	conf.AckTimeout = time.Second
	conf.SOFTimeout = 2 * time.Second
	conf.HeaderTimeout = time.Second
	conf.PayloadTimeout = 3 * time.Second
	r, err := conf.NewReceiver(tr, clk)
	require.NoError(t, err)
	return r, clk
}

var (
	sof     = []byte{0xAA, 0x55, 0xAA, 0x55}
	length4 = []byte{0x00, 0x00, 0x00, 0x04}
)

func TestReceiveEndToEnd(t *testing.T) {
	tr := newScriptTransport(nil,
		[]byte("garbageACK\n"), sof, length4, []byte{0x01, 0x02, 0x03, 0x04})
	r, _ := testReceiver(t, tr)
	buf := make([]byte, 16)
	out := r.Receive(buf)
	require.True(t, out.OK(), out.String())
	require.Equal(t, Succeeded(4), out)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf[:4])
	require.Equal(t, 4, r.LastReceived())
	require.Equal(t, DefaultRequest, tr.written.String())
	require.Equal(t, 1, tr.flushes)
}

func TestReceiveIgnoresChatter(t *testing.T) {
	tr := newScriptTransport([]byte("ACK\n"),
		[]byte("booting...\r\n"), []byte("NACK\r\n"),
		[]byte{0x00, 0xAA, 0x13}, sof, length4, []byte("data"))
	r, _ := testReceiver(t, tr)
	buf := make([]byte, 4)
	out := r.Receive(buf)
	require.True(t, out.OK(), out.String())
	require.Equal(t, "data", string(buf))
}

func TestReceiveFlushesStaleInput(t *testing.T) {
	// the stale ACK and frame must not satisfy the cycle.
	stale := bytes.Join([][]byte{[]byte("ACK\n"), sof, length4, []byte("old!")}, nil)
	tr := newScriptTransport(stale)
	r, _ := testReceiver(t, tr)
	out := r.Receive(make([]byte, 4))
	require.Equal(t, Retryable, out.Kind)
	require.Equal(t, PhaseAwaitAck, out.Phase)
	require.Zero(t, tr.reads)
}

func TestReceiveAckTimeout(t *testing.T) {
	tr := newScriptTransport(nil, []byte("NO\n"))
	r, clk := testReceiver(t, tr)
	start := clk.Now()
	out := r.Receive(make([]byte, 4))
	require.Equal(t, TimedOut(PhaseAwaitAck, 0), out)
	var te *TimeoutError
	require.True(t, errors.As(out.Err, &te))
	require.Equal(t, PhaseAwaitAck, te.Phase)
	// the SOF deadline was never started.
	require.Less(t, int64(clk.Now().Sub(start)), int64(r.Config.AckTimeout+time.Second))
}

func TestReceiveSOFTimeout(t *testing.T) {
	tr := newScriptTransport(nil, []byte("ACK\n"), []byte{0x55, 0xAA, 0x55})
	r, _ := testReceiver(t, tr)
	out := r.Receive(make([]byte, 4))
	require.Equal(t, TimedOut(PhaseAwaitSOF, 0), out)
}

func TestReceiveHeaderTimeout(t *testing.T) {
	tr := newScriptTransport(nil, []byte("ACK\n"), sof, []byte{0x00, 0x00})
	r, _ := testReceiver(t, tr)
	out := r.Receive(make([]byte, 4))
	require.Equal(t, TimedOut(PhaseReadLength, 0), out)
}

func TestReceiveOversized(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	tr := newScriptTransport(nil, []byte("ACK\n"), sof, []byte{0, 0, 0, 5}, payload)
	r, _ := testReceiver(t, tr)
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	out := r.Receive(buf)
	require.Equal(t, Fatal, out.Kind)
	require.True(t, out.Oversized())
	require.ErrorIs(t, out.Err, ErrOversizedFrame)
	require.Equal(t, payload, tr.in, "no payload byte may be read")
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, buf)
	require.Zero(t, r.LastReceived())
}

func TestReceiveMaxLengthOversized(t *testing.T) {
	tr := newScriptTransport(nil, []byte("ACK\n"), sof, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	r, _ := testReceiver(t, tr)
	out := r.Receive(make([]byte, 192000))
	require.True(t, out.Oversized())
}

func TestReceivePayloadTimeout(t *testing.T) {
	tr := newScriptTransport(nil, []byte("ACK\n"), sof, []byte{0, 0, 0, 8}, []byte{1, 2, 3})
	r, _ := testReceiver(t, tr)
	buf := make([]byte, 8)
	out := r.Receive(buf)
	require.Equal(t, TimedOut(PhaseReadPayload, 3), out)
	require.Equal(t, 3, r.LastReceived())
	require.Equal(t, []byte{1, 2, 3}, buf[:3])
	require.Contains(t, out.Err.Error(), "after 3 bytes")
}

func TestReceiveZeroLength(t *testing.T) {
	tr := newScriptTransport(nil, []byte("ACK\n"), sof, []byte{0, 0, 0, 0})
	r, _ := testReceiver(t, tr)
	out := r.Receive(make([]byte, 4))
	require.Equal(t, Succeeded(0), out)
}

func TestReceiveWriteError(t *testing.T) {
	tr := newScriptTransport(nil, []byte("ACK\n"))
	tr.writeErr = errors.New("broken pipe")
	r, _ := testReceiver(t, tr)
	out := r.Receive(make([]byte, 4))
	require.Equal(t, Fatal, out.Kind)
	require.Equal(t, PhaseRequest, out.Phase)
	var te *TransportError
	require.True(t, errors.As(out.Err, &te))
	require.Equal(t, "write", te.Op)
	require.False(t, out.Oversized())
}

func TestReceiveCustomTokens(t *testing.T) {
	tr := newScriptTransport(nil, []byte("ready OK\n"), []byte{0x7E, 0x7E}, []byte{0, 0, 0, 1}, []byte{9})
	r, _ := testReceiver(t, tr)
	r.Config.Request = "GET\n"
	r.Config.AckToken = "OK"
	r.Config.SOF = []byte{0x7E, 0x7E}
	buf := make([]byte, 1)
	out := r.Receive(buf)
	require.True(t, out.OK(), out.String())
	require.Equal(t, "GET\n", tr.written.String())
	require.Equal(t, byte(9), buf[0])
}

func TestReceivePollIntervalSleeps(t *testing.T) {
	tr := newScriptTransport(nil)
	r, clk := testReceiver(t, tr)
	r.Config.PollInterval = 100 * time.Millisecond
	out := r.Receive(make([]byte, 4))
	require.Equal(t, PhaseAwaitAck, out.Phase)
	require.True(t, clk.Slept() >= r.Config.AckTimeout)
}

func TestPhaseAndKindStrings(t *testing.T) {
	require.Equal(t, "await-sof", PhaseAwaitSOF.String())
	require.Equal(t, "phase(9)", Phase(9).String())
	require.Equal(t, "retryable", Retryable.String())
	require.Equal(t, "success(4 bytes)", Succeeded(4).String())
	require.Equal(t, "retryable at await-ack: await-ack timeout", TimedOut(PhaseAwaitAck, 0).String())
}

// reopenTransport is a scriptTransport whose link can break and be reopened.
type reopenTransport struct {
	*scriptTransport
	err       error
	reopens   int
	reopenErr error
}

func (t *reopenTransport) Err() error { return t.err }

func (t *reopenTransport) Reopen() error {
	t.reopens++
	if t.reopenErr != nil {
		return t.reopenErr
	}
	t.err, t.writeErr = nil, nil
	return nil
}

func TestReceiveReopensBrokenLink(t *testing.T) {
	tr := &reopenTransport{
		scriptTransport: newScriptTransport(nil, []byte("ACK\n"), sof, length4, []byte{1, 2, 3, 4}),
		err:             io.EOF,
	}
	tr.writeErr = errors.New("broken pipe")
	r, _ := testReceiver(t, tr)
	buf := make([]byte, 4)
	out := r.Receive(buf)
	require.True(t, out.OK(), out.String())
	require.Equal(t, 1, tr.reopens)
	require.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestReceiveReopensOnWriteError(t *testing.T) {
	tr := &reopenTransport{
		scriptTransport: newScriptTransport(nil, []byte("ACK\n"), sof, length4, []byte{1, 2, 3, 4}),
	}
	tr.writeErr = errors.New("broken pipe")
	r, _ := testReceiver(t, tr)
	out := r.Receive(make([]byte, 4))
	require.True(t, out.OK(), out.String())
	require.Equal(t, 1, tr.reopens)
	require.Equal(t, DefaultRequest, tr.written.String())
}

func TestReceiveReopenFails(t *testing.T) {
	tr := &reopenTransport{
		scriptTransport: newScriptTransport(nil, []byte("ACK\n")),
		err:             io.EOF,
		reopenErr:       errors.New("connection refused"),
	}
	r, _ := testReceiver(t, tr)
	out := r.Receive(make([]byte, 4))
	require.Equal(t, Fatal, out.Kind)
	require.Equal(t, PhaseRequest, out.Phase)
	var te *TransportError
	require.True(t, errors.As(out.Err, &te))
	require.Equal(t, "reopen", te.Op)
	require.Equal(t, 1, tr.reopens)
	require.Empty(t, tr.written.String())
}
