package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/inkframe.go/pkg/status"
)

// Topics relative to <prefix><device-id>/.
const (
	TopicMeta    = "meta"
	TopicState   = "state"
	TopicStatus  = "status"
	TopicRefresh = "refresh"
)

// Meta is published retained while the device is online.
type Meta struct {
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	FrameSize   int               `json:"frame_size"`
}

// Publisher implements status.Indicator and status.Reporter over MQTT and
// turns messages on the refresh topic into OnRefresh calls.
type Publisher struct {
	Queue     *Queue
	DeviceID  string
	OnRefresh func()

	// RetryInterval is the wait between failed connection attempts.
	RetryInterval time.Duration

	metaJSON []byte
}

// NewPublisher creates a Publisher for the broker, e.g.
// mqtt://localhost:1883/inkframe/.
func NewPublisher(brokerURL, deviceID string, meta Meta) (*Publisher, error) {
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+deviceID+"/"+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("inkframe:" + deviceID)
	}
	p := &Publisher{
		Queue:         NewQueue(opts, topicPrefix),
		DeviceID:      deviceID,
		RetryInterval: 10 * time.Second,
		metaJSON:      metaJSON,
	}
	p.init()
	return p, nil
}

func (p *Publisher) init() {
	p.Queue.OnConnect = func(*Queue) { p.onConnected() }
	p.Queue.Sub(p.topic(TopicRefresh), func(string, []byte) {
		glog.Info("refresh requested")
		if fn := p.OnRefresh; fn != nil {
			fn()
		}
	})
}

// OK implements status.Indicator.
func (p *Publisher) OK() { p.publishState("ok") }

// Error implements status.Indicator.
func (p *Publisher) Error() { p.publishState("error") }

// Transferring implements status.Indicator.
func (p *Publisher) Transferring() { p.publishState("transferring") }

// Idle implements status.Indicator.
func (p *Publisher) Idle() { p.publishState("idle") }

// Report implements status.Reporter.
func (p *Publisher) Report(r status.Report) {
	data, err := EncodeReport(r)
	if err != nil {
		glog.Errorf("encode report: %v", err)
		return
	}
	p.Queue.Pub(p.topic(TopicStatus), data)
}

// Run implements framework.Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		token := p.Queue.Connect()
		token.Wait()
		if token.Error() == nil {
			break
		}
		glog.Warningf("mqtt connect: %v", token.Error())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.RetryInterval):
		}
	}
	<-ctx.Done()
	p.Queue.PubWith(p.topic(TopicMeta), nil, 1, true).WaitTimeout(time.Second)
	return p.Queue.Close()
}

func (p *Publisher) onConnected() {
	p.Queue.PubWith(p.topic(TopicMeta), p.metaJSON, 1, true)
}

func (p *Publisher) publishState(state string) {
	p.Queue.PubWith(p.topic(TopicState), []byte(state), 0, true)
}

func (p *Publisher) topic(name string) string {
	return p.DeviceID + "/" + name
}

// EncodeReport serializes a report as google.protobuf.Struct.
func EncodeReport(r status.Report) ([]byte, error) {
	state := "ok"
	if !r.OK {
		state = "error"
	}
	fields := map[string]*structpb.Value{
		"state":       stringValue(state),
		"cycle":       numberValue(float64(r.Cycle)),
		"outcome":     stringValue(r.Outcome.String()),
		"phase":       stringValue(r.Phase.String()),
		"bytes":       numberValue(float64(r.Bytes)),
		"checksum":    numberValue(float64(r.Checksum)),
		"rendered":    boolValue(r.Rendered),
		"skipped":     boolValue(r.Skipped),
		"fallback":    boolValue(r.Fallback),
		"duration_ms": numberValue(float64(r.Duration / time.Millisecond)),
		"time":        stringValue(r.Time.UTC().Format(time.RFC3339)),
	}
	if r.Err != nil {
		fields["error"] = stringValue(r.Err.Error())
	}
	return proto.Marshal(&structpb.Struct{Fields: fields})
}

// DecodeReport parses a payload produced by EncodeReport.
func DecodeReport(data []byte) (*structpb.Struct, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func numberValue(n float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: n}}
}

func boolValue(b bool) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: b}}
}
