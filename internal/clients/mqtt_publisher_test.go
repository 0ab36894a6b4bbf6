package clients

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"evquota/internal/models"
)

type fakeToken struct {
	err error
}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type fakeMQTTClient struct {
	mqtt.Client
	topic   string
	qos     byte
	payload []byte
	err     error
}

func (f *fakeMQTTClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	f.topic = topic
	f.qos = qos
	f.payload, _ = payload.([]byte)
	return fakeToken{err: f.err}
}

func TestMQTTPublisherForward(t *testing.T) {
	client := &fakeMQTTClient{}
	p := newMQTTPublisher(client, "evse/{charger}/readings", 1, time.Second, nil)

	if err := p.Forward(context.Background(), models.Reading{ID: "r1", ChargerName: "CP-7"}); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if client.topic != "evse/CP-7/readings" || client.qos != 1 {
		t.Fatalf("unexpected publish topic=%s qos=%d", client.topic, client.qos)
	}
	var got models.Reading
	if err := json.Unmarshal(client.payload, &got); err != nil || got.ID != "r1" {
		t.Fatalf("unexpected payload %s: %v", client.payload, err)
	}

	client.err = errors.New("broker down")
	if err := p.Forward(context.Background(), models.Reading{}); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestNewMQTTPublisherRequiresBroker(t *testing.T) {
	if _, err := NewMQTTPublisher(MQTTConfig{}, nil); err == nil {
		t.Fatalf("expected error for empty broker")
	}
}
