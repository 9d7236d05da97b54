// Package mqtt publishes detections to an MQTT broker, announces them to Home
// Assistant and delivers subscribed messages to the Frigate consumer.
package mqtt

import (
	"context"
	"time"
)

// Payloads of the retained availability topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// MessageHandler receives one message from a subscription.
type MessageHandler func(topic string, payload []byte)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends payload to topic with QoS 1.
	Publish(ctx context.Context, topic, payload string, retain bool) error

	// Subscribe registers handler for topic. Subscriptions survive reconnects.
	Subscribe(topic string, handler MessageHandler) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect announces offline and closes the connection.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// StatusTopic carries the retained online/offline state and the last will.
	StatusTopic string

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
	MaxReconnectDelay time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		ClientID:          "birdview",
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
		MaxReconnectDelay: 2 * time.Minute,
	}
}

// StatusTopic returns the availability topic under prefix.
func StatusTopic(prefix string) string {
	return prefix + "/status"
}
