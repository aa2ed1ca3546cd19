package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/inkframe.go/pkg/link"
	"github.com/robotalks/inkframe.go/pkg/status"
)

func newTestPublisher() (*Publisher, *fakeClient) {
	client := &fakeClient{}
	p := &Publisher{
		Queue:         &Queue{Client: client, TopicPrefix: "inkframe/"},
		DeviceID:      "dev",
		RetryInterval: time.Millisecond,
		metaJSON:      []byte(`{"frame_size":192000}`),
	}
	p.init()
	return p, client
}

func TestPublisherState(t *testing.T) {
	p, client := newTestPublisher()
	p.Transferring()
	msg, ok := client.last("inkframe/dev/state")
	require.True(t, ok)
	assert.Equal(t, "transferring", string(msg.payload))
	assert.True(t, msg.retain)

	p.Error()
	msg, _ = client.last("inkframe/dev/state")
	assert.Equal(t, "error", string(msg.payload))
}

func TestPublisherReport(t *testing.T) {
	p, client := newTestPublisher()
	p.Report(status.Report{
		Cycle:    3,
		OK:       false,
		Outcome:  link.Retryable,
		Phase:    link.PhaseAwaitAck,
		Err:      errors.New("boom"),
		Duration: 1500 * time.Millisecond,
		Time:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	msg, ok := client.last("inkframe/dev/status")
	require.True(t, ok)
	s, err := DecodeReport(msg.payload)
	require.NoError(t, err)
	assert.Equal(t, "error", s.Fields["state"].GetStringValue())
	assert.Equal(t, float64(3), s.Fields["cycle"].GetNumberValue())
	assert.Equal(t, link.Retryable.String(), s.Fields["outcome"].GetStringValue())
	assert.Equal(t, link.PhaseAwaitAck.String(), s.Fields["phase"].GetStringValue())
	assert.Equal(t, float64(1500), s.Fields["duration_ms"].GetNumberValue())
	assert.Equal(t, "2024-01-02T03:04:05Z", s.Fields["time"].GetStringValue())
	assert.Equal(t, "boom", s.Fields["error"].GetStringValue())
}

func TestPublisherReportSuccess(t *testing.T) {
	data, err := EncodeReport(status.Report{OK: true, Bytes: 4, Checksum: 10, Rendered: true})
	require.NoError(t, err)
	s, err := DecodeReport(data)
	require.NoError(t, err)
	assert.Equal(t, "ok", s.Fields["state"].GetStringValue())
	assert.Equal(t, float64(4), s.Fields["bytes"].GetNumberValue())
	assert.Equal(t, float64(10), s.Fields["checksum"].GetNumberValue())
	assert.True(t, s.Fields["rendered"].GetBoolValue())
	assert.NotContains(t, s.Fields, "error")
}

func TestPublisherRefresh(t *testing.T) {
	p, client := newTestPublisher()
	refreshed := 0
	p.OnRefresh = func() { refreshed++ }

	p.Queue.onConnect(client)
	assert.Contains(t, client.subscribed, "inkframe/dev/refresh")
	meta, ok := client.last("inkframe/dev/meta")
	require.True(t, ok)
	assert.True(t, meta.retain)
	assert.JSONEq(t, `{"frame_size":192000}`, string(meta.payload))

	client.handler(client, &fakeMessage{topic: "inkframe/dev/refresh"})
	assert.Equal(t, 1, refreshed)
}

func TestPublisherRun(t *testing.T) {
	p, client := newTestPublisher()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, client.IsConnected, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	meta, ok := client.last("inkframe/dev/meta")
	require.True(t, ok)
	assert.Empty(t, meta.payload)
	assert.True(t, client.closed)
}
