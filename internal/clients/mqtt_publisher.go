package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"evquota/internal/models"
)

// MQTTConfig configures the broker readings are published to.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic may contain {charger}, replaced by the reading's charger name.
	Topic   string
	QoS     byte
	Timeout time.Duration
}

// MQTTPublisher publishes readings as JSON messages.
type MQTTPublisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	logger  *zap.Logger
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("mqtt: broker is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "evse/{charger}/readings"
	}

	options := mqtt.NewClientOptions()
	options.AddBroker(cfg.Broker)
	options.SetClientID(cfg.ClientID)
	options.SetUsername(cfg.Username)
	options.SetPassword(cfg.Password)
	options.SetAutoReconnect(true)
	options.SetConnectTimeout(timeout)
	options.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(options)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}

	return newMQTTPublisher(client, topic, cfg.QoS, timeout, logger), nil
}

func newMQTTPublisher(client mqtt.Client, topic string, qos byte, timeout time.Duration, logger *zap.Logger) *MQTTPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTPublisher{client: client, topic: topic, qos: qos, timeout: timeout, logger: logger}
}

// Forward publishes one reading and waits for the broker acknowledgement.
func (p *MQTTPublisher) Forward(ctx context.Context, reading models.Reading) error {
	body, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	topic := strings.ReplaceAll(p.topic, "{charger}", reading.ChargerName)
	token := p.client.Publish(topic, p.qos, false, body)

	wait := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
		return err
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
