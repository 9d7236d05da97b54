package mqtt

import (
	"context"
	"encoding/json"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/notification"
)

// Publisher turns completed visits into MQTT messages. It implements
// notification.Notifier.
type Publisher struct {
	client       Client
	prefix       string
	retain       bool
	mediaBaseURL string
}

// NewPublisher returns a Publisher writing under prefix. retain applies to the
// per-visit detection topic; last_bird is always retained.
func NewPublisher(client Client, prefix string, retain bool, mediaBaseURL string) *Publisher {
	return &Publisher{client: client, prefix: prefix, retain: retain, mediaBaseURL: mediaBaseURL}
}

// DetectionTopic is the per-visit topic.
func (p *Publisher) DetectionTopic() string { return p.prefix + "/detection" }

// LastBirdTopic is the retained state topic.
func (p *Publisher) LastBirdTopic() string { return p.prefix + "/last_bird" }

// Notify publishes e. Nothing is sent while disconnected.
func (p *Publisher) Notify(ctx context.Context, e notification.Event) error {
	if !p.client.IsConnected() {
		GetLogger().Debug("skipping MQTT publish while disconnected", logger.String("event_id", e.EventID))
		return nil
	}

	detection, err := json.Marshal(newDetectionMessage(e, p.mediaBaseURL))
	if err != nil {
		return marshalError(err)
	}
	if err := p.client.Publish(ctx, p.DetectionTopic(), string(detection), p.retain); err != nil {
		return err
	}

	last, err := json.Marshal(newLastBirdMessage(e))
	if err != nil {
		return marshalError(err)
	}
	return p.client.Publish(ctx, p.LastBirdTopic(), string(last), true)
}

func marshalError(err error) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTPublish).
		Context("operation", "marshal").
		Build()
}
