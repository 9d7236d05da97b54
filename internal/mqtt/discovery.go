// Home Assistant MQTT auto-discovery.
// See: https://www.home-assistant.io/integrations/mqtt/#mqtt-discovery
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ando01/BirdView/internal/logger"
)

// Sensor type constants
const (
	SensorSpecies        = "species"
	SensorScientificName = "scientific_name"
	SensorConfidence     = "confidence"
	SensorTodayCount     = "today_count"
)

// AllSensorTypes lists all sensor types for iteration
var AllSensorTypes = []string{SensorSpecies, SensorScientificName, SensorConfidence, SensorTodayCount}

// idSanitizer replaces invalid characters in IDs with underscores.
// Home Assistant requires IDs to contain only [a-zA-Z0-9_-].
var idSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeID ensures the ID contains only valid characters for MQTT topics and HA entity IDs.
func SanitizeID(id string) string {
	sanitized := idSanitizer.ReplaceAllString(id, "_")
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = "unknown"
	}
	return sanitized
}

// DiscoveryPayload represents a Home Assistant MQTT discovery message.
type DiscoveryPayload struct {
	Name                string          `json:"name"`
	UniqueID            string          `json:"unique_id"`
	StateTopic          string          `json:"state_topic"`
	ValueTemplate       string          `json:"value_template,omitempty"`
	JSONAttributesTopic string          `json:"json_attributes_topic,omitempty"`
	UnitOfMeasurement   string          `json:"unit_of_measurement,omitempty"`
	StateClass          string          `json:"state_class,omitempty"`
	Icon                string          `json:"icon,omitempty"`
	PayloadAvailable    string          `json:"payload_available,omitempty"`
	PayloadNotAvailable string          `json:"payload_not_available,omitempty"`
	AvailabilityTopic   string          `json:"availability_topic,omitempty"`
	Device              DiscoveryDevice `json:"device"`
}

// TriggerPayload is a device_automation trigger fired on every detection.
type TriggerPayload struct {
	AutomationType string          `json:"automation_type"`
	Type           string          `json:"type"`
	Subtype        string          `json:"subtype"`
	Topic          string          `json:"topic"`
	Device         DiscoveryDevice `json:"device"`
}

// DiscoveryDevice represents the device information in a discovery payload.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// DiscoveryConfig holds configuration for generating discovery payloads.
type DiscoveryConfig struct {
	DiscoveryPrefix string // Home Assistant discovery topic prefix (default: homeassistant)
	BaseTopic       string // topic prefix of the state messages
	DeviceName      string
	NodeID          string
	Version         string
}

// DiscoveryPublisher publishes Home Assistant discovery messages.
type DiscoveryPublisher struct {
	client Client
	config DiscoveryConfig
}

// NewDiscoveryPublisher creates a new discovery publisher.
func NewDiscoveryPublisher(client Client, config DiscoveryConfig) *DiscoveryPublisher {
	if config.DiscoveryPrefix == "" {
		config.DiscoveryPrefix = "homeassistant"
	}
	if config.DeviceName == "" {
		config.DeviceName = "Bird Feeder"
	}
	if config.NodeID == "" {
		config.NodeID = config.BaseTopic
	}
	return &DiscoveryPublisher{client: client, config: config}
}

func (p *DiscoveryPublisher) device() DiscoveryDevice {
	return DiscoveryDevice{
		Identifiers:  []string{SanitizeID(p.config.NodeID)},
		Name:         p.config.DeviceName,
		Manufacturer: "BirdView",
		Model:        "Camera Feeder",
		SWVersion:    p.config.Version,
	}
}

// Sensors returns the discovery payloads keyed by their config topic.
func (p *DiscoveryPublisher) Sensors() map[string]any {
	nodeID := SanitizeID(p.config.NodeID)
	stateTopic := p.config.BaseTopic + "/last_bird"
	availability := StatusTopic(p.config.BaseTopic)
	device := p.device()

	sensor := func(kind, name, template, icon string) DiscoveryPayload {
		return DiscoveryPayload{
			Name:                name,
			UniqueID:            nodeID + "_" + kind,
			StateTopic:          stateTopic,
			ValueTemplate:       template,
			Icon:                icon,
			PayloadAvailable:    StatusOnline,
			PayloadNotAvailable: StatusOffline,
			AvailabilityTopic:   availability,
			Device:              device,
		}
	}

	species := sensor(SensorSpecies, "Last Bird", "{{ value_json.common_name }}", "mdi:bird")
	species.JSONAttributesTopic = stateTopic

	confidence := sensor(SensorConfidence, "Confidence", "{{ (value_json.score * 100) | round(1) }}", "mdi:percent")
	confidence.UnitOfMeasurement = "%"
	confidence.StateClass = "measurement"

	today := sensor(SensorTodayCount, "Birds Today", "{{ value_json.today_count }}", "mdi:counter")
	today.StateClass = "total_increasing"

	payloads := map[string]any{
		p.sensorTopic(nodeID, SensorSpecies):        species,
		p.sensorTopic(nodeID, SensorScientificName): sensor(SensorScientificName, "Scientific Name", "{{ value_json.scientific_name }}", "mdi:format-quote-close"),
		p.sensorTopic(nodeID, SensorConfidence):     confidence,
		p.sensorTopic(nodeID, SensorTodayCount):     today,
		p.triggerTopic(nodeID): TriggerPayload{
			AutomationType: "trigger",
			Type:           "bird_detected",
			Subtype:        "new_detection",
			Topic:          p.config.BaseTopic + "/detection",
			Device:         device,
		},
	}
	return payloads
}

// PublishDiscovery publishes every discovery payload retained.
func (p *DiscoveryPublisher) PublishDiscovery(ctx context.Context) error {
	log := GetLogger()
	var firstErr error
	for topic, payload := range p.Sensors() {
		data, err := json.Marshal(payload)
		if err != nil {
			return marshalError(err)
		}
		if err := p.client.Publish(ctx, topic, string(data), true); err != nil {
			log.Warn("failed to publish discovery message", logger.String("topic", topic), logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("failed to publish one or more discovery messages: %w", firstErr)
	}
	log.Info("Home Assistant discovery messages published", logger.String("discovery_prefix", p.config.DiscoveryPrefix))
	return nil
}

// RemoveDiscovery publishes empty retained payloads to remove all entities.
func (p *DiscoveryPublisher) RemoveDiscovery(ctx context.Context) {
	for topic := range p.Sensors() {
		if err := p.client.Publish(ctx, topic, "", true); err != nil {
			GetLogger().Warn("failed to remove discovery message", logger.String("topic", topic), logger.Error(err))
		}
	}
}

func (p *DiscoveryPublisher) sensorTopic(nodeID, sensorType string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", p.config.DiscoveryPrefix, nodeID, sensorType)
}

func (p *DiscoveryPublisher) triggerTopic(nodeID string) string {
	return fmt.Sprintf("%s/device_automation/%s/detection/config", p.config.DiscoveryPrefix, nodeID)
}
