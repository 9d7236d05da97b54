package conf

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// defaultSettings unmarshals the registered defaults into a Settings value.
func defaultSettings(t *testing.T) *Settings {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaultConfig()

	s := &Settings{}
	require.NoError(t, viper.Unmarshal(s))
	return s
}

func TestDefaults(t *testing.T) {
	s := defaultSettings(t)

	assert.InDelta(t, 2.0, s.Camera.DetectionFPS, 1e-9)
	assert.Equal(t, 60, s.Camera.BufferSeconds)
	assert.Equal(t, 5*time.Second, s.Camera.ReconnectDelay)
	assert.Equal(t, 60*time.Second, s.Camera.MaxReconnectDelay)

	assert.InDelta(t, 500.0, s.Motion.MinArea, 1e-9)
	assert.InDelta(t, 0.5, s.Detection.Confidence, 1e-9)
	assert.Equal(t, 16, s.Detection.TargetClass)
	assert.InDelta(t, 0.7, s.Classification.Threshold, 1e-9)
	assert.Equal(t, 964, s.Classification.BackgroundIndex)

	assert.Equal(t, 10, s.Tracker.MaxMissingFrames)
	assert.InDelta(t, 0.3, s.Tracker.IoUThreshold, 1e-9)

	assert.Equal(t, 3*time.Second, s.Clips.PreCapture)
	assert.Equal(t, 2*time.Second, s.Clips.PostCapture)
	assert.Equal(t, 60*time.Second, s.Clips.MaxDuration)

	assert.Equal(t, "birdfeeder", s.MQTT.TopicPrefix)
	assert.Equal(t, "frigate/events", s.Frigate.Topic)
	assert.Equal(t, 4, s.Frigate.MaxWorkers)
	assert.Equal(t, 30*time.Second, s.Frigate.ClipDelay)

	assert.False(t, s.Daylight.Enabled)
	assert.False(t, s.WebServer.Auth.Enabled)
	assert.Equal(t, 30*time.Second, s.Notification.Script.Timeout)

	assert.Equal(t, "info", s.Logging.DefaultLevel)
	require.NotNil(t, s.Logging.FileOutput)
	assert.Equal(t, "logs/birdview.log", s.Logging.FileOutput.Path)

	require.NoError(t, ValidateSettings(s))
}

func TestEmbeddedConfigIsValid(t *testing.T) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	require.NoError(t, err)

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(data)))

	s := &Settings{}
	require.NoError(t, v.Unmarshal(s))
	require.NoError(t, ValidateSettings(s))

	assert.Equal(t, 30, s.Storage.RetentionDays)
	assert.Equal(t, 95, s.Storage.SnapshotQuality)
	assert.Equal(t, time.Hour, s.Storage.CleanupInterval)
	assert.Empty(t, s.Detection.Zone)
}

func TestEnvironmentOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("BIRDVIEW_DETECTION_CONFIDENCE", "0.65")
	t.Setenv("BIRDVIEW_MQTT_BROKER", "tcp://broker.local:1883")

	setDefaultConfig()
	require.NoError(t, configureEnvironmentVariables())

	s := &Settings{}
	require.NoError(t, viper.Unmarshal(s))
	assert.InDelta(t, 0.65, s.Detection.Confidence, 1e-9)
	assert.Equal(t, "tcp://broker.local:1883", s.MQTT.Broker)
}

func TestEnvironmentValidationWarnings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("BIRDVIEW_CLASSIFICATION_THRESHOLD", "1.5")
	t.Setenv("BIRDVIEW_FRIGATE_URL", "ftp://frigate")

	err := configureEnvironmentVariables()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BIRDVIEW_CLASSIFICATION_THRESHOLD")
	assert.Contains(t, err.Error(), "BIRDVIEW_FRIGATE_URL")
}

func TestValidateSettingsCollectsErrors(t *testing.T) {
	s := defaultSettings(t)
	s.Detection.Confidence = 1.2
	s.Tracker.IoUThreshold = -0.1
	s.Detection.Zone = [][]float64{{0.1, 0.1}, {2, 0.5}, {0.3}}
	s.MQTT.Enabled = true
	s.MQTT.Broker = "http://not-mqtt"

	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3, "detection, tracker and mqtt sections each report once")
	assert.Contains(t, err.Error(), "detection.confidence")
	assert.Contains(t, err.Error(), "zone point 1")
	assert.Contains(t, err.Error(), "zone point 2")
	assert.Contains(t, err.Error(), "mqtt.broker")
}

func TestValidateSkipsDisabledSections(t *testing.T) {
	s := defaultSettings(t)
	s.Frigate.Enabled = false
	s.Frigate.MaxWorkers = 0
	s.Notification.Enabled = false
	s.Notification.URLs = nil
	s.Clips.Enabled = false
	s.Clips.FPS = 0

	assert.NoError(t, ValidateSettings(s))
}

func TestValidateDaylightAndAuth(t *testing.T) {
	s := defaultSettings(t)
	s.Daylight.Enabled = true
	s.Daylight.Latitude = 95
	s.WebServer.Auth.Enabled = true
	s.WebServer.Auth.PasswordHash = "plaintext"

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daylight.latitude")
	assert.Contains(t, err.Error(), "passwordhash must be a bcrypt hash")

	s.Daylight.Latitude = 60.17
	s.Daylight.Longitude = 24.94
	s.WebServer.Auth.PasswordHash = "$2a$10$abcdefghijklmnopqrstuvCDEFGHIJKLMNOPQRSTUVWXYZ012345"
	assert.NoError(t, ValidateSettings(s))
}

func TestValidateNotificationScript(t *testing.T) {
	s := defaultSettings(t)
	s.Notification.Enabled = true
	s.Notification.URLs = nil
	s.Notification.Script.Command = "/usr/local/bin/on-visit"
	assert.NoError(t, ValidateSettings(s), "a script alone is a valid target")

	s.Notification.Script.InputFormat = "xml"
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inputformat")

	s.Notification.Script = ScriptSettings{}
	err = ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notification.urls or notification.script.command")
}

func TestSaveYAMLConfig(t *testing.T) {
	s := defaultSettings(t)
	s.Camera.URL = "rtsp://feeder.local/live"
	s.Detection.Zone = [][]float64{{0, 0}, {1, 0}, {1, 1}}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveYAMLConfig(path, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Settings
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, s.Camera.URL, loaded.Camera.URL)
	assert.Equal(t, s.Detection.Zone, loaded.Detection.Zone)
	assert.Equal(t, s.Clips.PreCapture, loaded.Clips.PreCapture)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is removed after rename")
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fn      func(string) error
		value   string
		wantErr bool
	}{
		{"rtsp stream", validateEnvStreamURL, "rtsp://cam/live", false},
		{"device path", validateEnvStreamURL, "/dev/video0", false},
		{"bad stream scheme", validateEnvStreamURL, "gopher://cam", true},
		{"tcp broker", validateEnvBrokerURL, "tcp://localhost:1883", false},
		{"http broker", validateEnvBrokerURL, "http://localhost", true},
		{"threshold in range", validateEnvUnitInterval, "0.7", false},
		{"threshold above one", validateEnvUnitInterval, "1.01", true},
		{"fps zero", validateEnvPositiveFloat, "0", true},
		{"retention negative", validateEnvNonNegativeInt, "-1", true},
		{"bool", validateEnvBool, "yes", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.fn(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
