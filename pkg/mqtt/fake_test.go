package mqtt

import (
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	paho.Client

	lock       sync.Mutex
	connected  bool
	published  []published
	subscribed []string
	handler    paho.MessageHandler
	closed     bool
}

func (c *fakeClient) IsConnected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.connected
}

func (c *fakeClient) Connect() paho.Token {
	c.lock.Lock()
	c.connected = true
	c.lock.Unlock()
	return &paho.DummyToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.lock.Lock()
	c.connected = false
	c.closed = true
	c.lock.Unlock()
}

func (c *fakeClient) Publish(topic string, qos byte, retain bool, payload interface{}) paho.Token {
	c.lock.Lock()
	defer c.lock.Unlock()
	data, _ := payload.([]byte)
	c.published = append(c.published, published{topic: topic, qos: qos, retain: retain, payload: data})
	return &paho.DummyToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, handler paho.MessageHandler) paho.Token {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.subscribed = append(c.subscribed, topic)
	c.handler = handler
	return &paho.DummyToken{}
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, handler paho.MessageHandler) paho.Token {
	c.lock.Lock()
	defer c.lock.Unlock()
	for topic := range filters {
		c.subscribed = append(c.subscribed, topic)
	}
	c.handler = handler
	return &paho.DummyToken{}
}

func (c *fakeClient) last(topic string) (published, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for i := len(c.published) - 1; i >= 0; i-- {
		if c.published[i].topic == topic {
			return c.published[i], true
		}
	}
	return published{}, false
}

type fakeMessage struct {
	paho.Message
	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string   { return m.topic }
func (m *fakeMessage) Payload() []byte { return m.payload }
