package mqtt

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/observability/metrics"
)

const qos = 1

// PahoClient implements Client on the Eclipse Paho library. Reconnection is
// left to paho; subscriptions and the online status are restored in the
// connect handler.
type PahoClient struct {
	config  Config
	metrics *metrics.MQTTMetrics

	mu            sync.Mutex
	internal      paho.Client
	subscriptions map[string]MessageHandler
	onConnect     []func()
}

// NewClient creates a client. Nothing is dialed until Connect.
func NewClient(config Config, m *metrics.MQTTMetrics) *PahoClient {
	defaults := DefaultConfig()
	if config.ClientID == "" {
		config.ClientID = defaults.ClientID
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaults.PublishTimeout
	}
	if config.DisconnectTimeout <= 0 {
		config.DisconnectTimeout = defaults.DisconnectTimeout
	}
	if config.MaxReconnectDelay <= 0 {
		config.MaxReconnectDelay = defaults.MaxReconnectDelay
	}
	return &PahoClient{
		config:        config,
		metrics:       m,
		subscriptions: make(map[string]MessageHandler),
	}
}

// OnConnect registers fn to run after every successful (re)connection.
func (c *PahoClient) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// Connect resolves the broker host and connects. After a timeout paho keeps
// retrying in the background.
func (c *PahoClient) Connect(ctx context.Context) error {
	u, err := url.Parse(c.config.Broker)
	if err != nil || u.Host == "" {
		return errors.Newf("invalid broker URL %q", logger.RedactURL(c.config.Broker)).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(err).
				Component("mqtt").
				Category(errors.CategoryNetwork).
				Context("host", host).
				Build()
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectDelay)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.handleConnect)
	opts.SetConnectionLostHandler(c.handleConnectionLost)
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		c.metrics.IncrementReconnectAttempts()
	})
	if c.config.StatusTopic != "" {
		opts.SetWill(c.config.StatusTopic, StatusOffline, qos, true)
	}

	client := paho.NewClient(opts)
	c.mu.Lock()
	c.internal = client
	c.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return errors.Newf("connection to %s timed out", logger.RedactURL(c.config.Broker)).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors()
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", logger.RedactURL(c.config.Broker)).
			Build()
	}
	return nil
}

func (c *PahoClient) handleConnect(client paho.Client) {
	log := GetLogger()
	log.Info("connected to MQTT broker", logger.String("broker", logger.RedactURL(c.config.Broker)))
	c.metrics.UpdateConnectionStatus(true)

	if c.config.StatusTopic != "" {
		client.Publish(c.config.StatusTopic, qos, true, StatusOnline)
	}

	c.mu.Lock()
	subs := make(map[string]MessageHandler, len(c.subscriptions))
	for topic, h := range c.subscriptions {
		subs[topic] = h
	}
	hooks := append([]func(){}, c.onConnect...)
	c.mu.Unlock()

	for topic, h := range subs {
		token := client.Subscribe(topic, qos, wrapHandler(h))
		if token.WaitTimeout(c.config.PublishTimeout) && token.Error() != nil {
			log.Warn("failed to restore subscription", logger.String("topic", topic), logger.Error(token.Error()))
		}
	}
	for _, fn := range hooks {
		go fn()
	}
}

func (c *PahoClient) handleConnectionLost(_ paho.Client, err error) {
	GetLogger().Warn("connection to MQTT broker lost",
		logger.String("broker", logger.RedactURL(c.config.Broker)),
		logger.Error(err))
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.IncrementErrors()
}

func wrapHandler(h MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	}
}

// Publish sends payload to topic. It fails fast when disconnected.
func (c *PahoClient) Publish(ctx context.Context, topic, payload string, retain bool) error {
	if !c.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("topic", topic).
			Build()
	}

	timer := c.metrics.StartPublishTimer()
	defer timer.ObserveDuration()

	c.mu.Lock()
	client := c.internal
	c.mu.Unlock()

	token := client.Publish(topic, qos, retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.config.PublishTimeout):
		c.metrics.IncrementErrors()
		return errors.Newf("publish to %s timed out", topic).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors()
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	c.metrics.IncrementMessagesDelivered(len(payload))
	return nil
}

// Subscribe records the subscription and applies it immediately when connected.
func (c *PahoClient) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subscriptions[topic] = handler
	client := c.internal
	c.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return nil
	}
	token := client.Subscribe(topic, qos, wrapHandler(handler))
	if !token.WaitTimeout(c.config.PublishTimeout) {
		return errors.Newf("subscribe to %s timed out", topic).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("topic", topic).
			Build()
	}
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *PahoClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal != nil && c.internal.IsConnected()
}

// Disconnect publishes the offline status and closes the connection.
func (c *PahoClient) Disconnect() {
	c.mu.Lock()
	client := c.internal
	c.mu.Unlock()
	if client == nil {
		return
	}
	if client.IsConnected() && c.config.StatusTopic != "" {
		client.Publish(c.config.StatusTopic, qos, true, StatusOffline).WaitTimeout(c.config.DisconnectTimeout)
	}
	client.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.metrics.UpdateConnectionStatus(false)
}
