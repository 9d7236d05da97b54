package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/notification"
	"github.com/ando01/BirdView/internal/vision"
)

type published struct {
	topic   string
	payload string
	retain  bool
}

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	messages  []published
	failTopic string
}

func (f *fakeClient) Connect(context.Context) error { f.connected = true; return nil }

func (f *fakeClient) Publish(_ context.Context, topic, payload string, retain bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == f.failTopic {
		return errors.NewStd("broker rejected publish")
	}
	f.messages = append(f.messages, published{topic, payload, retain})
	return nil
}

func (f *fakeClient) Subscribe(string, MessageHandler) error { return nil }
func (f *fakeClient) IsConnected() bool                      { return f.connected }
func (f *fakeClient) Disconnect()                            { f.connected = false }

func testEvent() notification.Event {
	return notification.Event{
		EventID:  "visit-7",
		Source:   notification.SourceRealtime,
		Time:     time.Date(2026, 5, 1, 8, 15, 3, 0, time.UTC),
		Duration: 12340 * time.Millisecond,
		Species: vision.Classification{
			ScientificName: "Poecile atricapillus",
			CommonName:     "Black-capped Chickadee",
			Score:          0.87654,
		},
		DetectionConfidence: 0.7211,
		SnapshotPath:        "snapshots/2026-05-01/visit-7.jpg",
		TodayCount:          12,
	}
}

func TestPublisherNotify(t *testing.T) {
	t.Parallel()

	client := &fakeClient{connected: true}
	p := NewPublisher(client, "birdfeeder", false, "http://birdview.local:8080/")
	require.NoError(t, p.Notify(t.Context(), testEvent()))
	require.Len(t, client.messages, 2)

	det := client.messages[0]
	assert.Equal(t, "birdfeeder/detection", det.topic)
	assert.False(t, det.retain)

	var msg DetectionMessage
	require.NoError(t, json.Unmarshal([]byte(det.payload), &msg))
	assert.Equal(t, DetectionMessage{
		EventID:             "visit-7",
		Source:              "realtime",
		CommonName:          "Black-capped Chickadee",
		ScientificName:      "Poecile atricapillus",
		Score:               0.877,
		DetectionConfidence: 0.721,
		DetectionTime:       "2026-05-01T08:15:03Z",
		DurationSeconds:     12.3,
		SnapshotURL:         "http://birdview.local:8080/media/snapshots/2026-05-01/visit-7.jpg",
		TodayCount:          12,
	}, msg)

	last := client.messages[1]
	assert.Equal(t, "birdfeeder/last_bird", last.topic)
	assert.True(t, last.retain)
	assert.JSONEq(t, `{"common_name":"Black-capped Chickadee","scientific_name":"Poecile atricapillus","score":0.877,"time":"08:15:03","today_count":12}`, last.payload)
}

func TestPublisherSkipsWhileDisconnected(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	require.NoError(t, NewPublisher(client, "birdfeeder", true, "").Notify(t.Context(), testEvent()))
	assert.Empty(t, client.messages)
}

func TestPublisherReturnsPublishError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{connected: true, failTopic: "birdfeeder/detection"}
	require.Error(t, NewPublisher(client, "birdfeeder", false, "").Notify(t.Context(), testEvent()))
	assert.Empty(t, client.messages, "last_bird is not updated when the detection publish fails")
}

func TestMediaURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "clips/a.mp4", mediaURL("", "clips/a.mp4"))
	assert.Equal(t, "http://h/media/clips/a.mp4", mediaURL("http://h//", "clips/a.mp4"))
}

func TestDiscoveryPayloads(t *testing.T) {
	t.Parallel()

	client := &fakeClient{connected: true}
	d := NewDiscoveryPublisher(client, DiscoveryConfig{BaseTopic: "birdfeeder", NodeID: "back yard", Version: "1.2.0"})
	require.NoError(t, d.PublishDiscovery(t.Context()))
	require.Len(t, client.messages, len(AllSensorTypes)+1)

	byTopic := map[string]published{}
	for _, m := range client.messages {
		assert.True(t, m.retain, m.topic)
		byTopic[m.topic] = m
	}

	species, ok := byTopic["homeassistant/sensor/back_yard/species/config"]
	require.True(t, ok)
	var payload DiscoveryPayload
	require.NoError(t, json.Unmarshal([]byte(species.payload), &payload))
	assert.Equal(t, "back_yard_species", payload.UniqueID)
	assert.Equal(t, "birdfeeder/last_bird", payload.StateTopic)
	assert.Equal(t, "birdfeeder/status", payload.AvailabilityTopic)
	assert.Equal(t, "{{ value_json.common_name }}", payload.ValueTemplate)
	assert.Equal(t, []string{"back_yard"}, payload.Device.Identifiers)
	assert.Equal(t, "1.2.0", payload.Device.SWVersion)

	trigger, ok := byTopic["homeassistant/device_automation/back_yard/detection/config"]
	require.True(t, ok)
	assert.Contains(t, trigger.payload, `"topic":"birdfeeder/detection"`)

	client.messages = nil
	d.RemoveDiscovery(t.Context())
	for _, m := range client.messages {
		assert.Empty(t, m.payload)
	}
}

func TestSanitizeID(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"birdview":       "birdview",
		"back yard":      "back_yard",
		"__a//b__":       "a_b",
		"!!!":            "unknown",
		"feeder-1_north": "feeder-1_north",
	}
	for in, want := range testCases {
		assert.Equal(t, want, SanitizeID(in), in)
	}
}

func TestPahoClientValidation(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{Broker: "not a url"}, nil)
	err := c.Connect(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	assert.False(t, c.IsConnected())
	err = c.Publish(t.Context(), "birdfeeder/detection", "{}", false)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))

	require.NoError(t, c.Subscribe("frigate/events", func(string, []byte) {}))
	c.Disconnect()
}
