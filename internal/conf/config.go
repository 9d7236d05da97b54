// Package conf loads, validates and persists BirdView settings.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// CameraSettings configures the frame source
type CameraSettings struct {
	URL               string        `yaml:"url"`               // RTSP/HTTP stream or device path
	DetectionFPS      float64       `yaml:"detectionfps"`      // orchestrator tick rate
	BufferSeconds     int           `yaml:"bufferseconds"`     // rolling buffer window
	BufferCapacity    int           `yaml:"buffercapacity"`    // capacity before the stream rate is known
	ReconnectDelay    time.Duration `yaml:"reconnectdelay"`    // initial reconnect backoff
	MaxReconnectDelay time.Duration `yaml:"maxreconnectdelay"` // backoff ceiling
}

// AcceleratorSettings configures the inference backend selection
type AcceleratorSettings struct {
	Enabled     bool     `yaml:"enabled"`     // try the accelerator before CPU
	DevicePaths []string `yaml:"devicepaths"` // any existing path counts as present
	Threads     int      `yaml:"threads"`     // CPU interpreter threads, 0 = auto
}

// MotionSettings configures the motion gate
type MotionSettings struct {
	Enabled      bool    `yaml:"enabled"`
	MinArea      float64 `yaml:"minarea"`      // contour area in pixels
	History      int     `yaml:"history"`      // background model history length
	VarThreshold float64 `yaml:"varthreshold"` // MOG2 variance threshold
}

// DetectionSettings configures the object detector
type DetectionSettings struct {
	ModelPath            string      `yaml:"modelpath"`
	AcceleratorModelPath string      `yaml:"acceleratormodelpath"`
	Confidence           float64     `yaml:"confidence"`
	InputSize            int         `yaml:"inputsize"`
	TargetClass          int         `yaml:"targetclass"` // COCO class id, 16 = bird
	Zone                 [][]float64 `yaml:"zone"`        // normalized polygon, fewer than 3 points = no zone
}

// ClassificationSettings configures the species classifier
type ClassificationSettings struct {
	ModelPath            string  `yaml:"modelpath"`
	AcceleratorModelPath string  `yaml:"acceleratormodelpath"`
	LabelsPath           string  `yaml:"labelspath"`
	NamesDB              string  `yaml:"namesdb"` // optional sqlite db with common names
	Threshold            float64 `yaml:"threshold"`
	InputSize            int     `yaml:"inputsize"`
	BackgroundIndex      int     `yaml:"backgroundindex"`
}

// TrackerSettings configures visit tracking
type TrackerSettings struct {
	MaxMissingFrames int     `yaml:"maxmissingframes"`
	IoUThreshold     float64 `yaml:"iouthreshold"`
}

// ClipSettings configures clip extraction
type ClipSettings struct {
	Enabled     bool          `yaml:"enabled"`
	PreCapture  time.Duration `yaml:"precapture"`
	PostCapture time.Duration `yaml:"postcapture"`
	FPS         float64       `yaml:"fps"`
	MaxDuration time.Duration `yaml:"maxduration"`
	Transcode   bool          `yaml:"transcode"` // re-encode to h264 with ffmpeg
	FFmpegPath  string        `yaml:"ffmpegpath"`
	Timeout     time.Duration `yaml:"timeout"` // encode + transcode deadline
}

// StorageSettings configures on-disk media
type StorageSettings struct {
	Path            string        `yaml:"path"`
	RetentionDays   int           `yaml:"retentiondays"` // 0 disables the sweep
	SnapshotQuality int           `yaml:"snapshotquality"`
	CleanupInterval time.Duration `yaml:"cleanupinterval"`
}

// SQLiteSettings configures the SQLite store
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MySQLSettings configures the MySQL store
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// OutputSettings selects the persistence backend
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// HomeAssistantSettings configures MQTT discovery
type HomeAssistantSettings struct {
	Enabled         bool   `yaml:"enabled"`
	DiscoveryPrefix string `yaml:"discoveryprefix"`
}

// MQTTSettings configures the MQTT publisher
type MQTTSettings struct {
	Enabled       bool                  `yaml:"enabled"`
	Broker        string                `yaml:"broker"` // tcp://host:1883
	Username      string                `yaml:"username"`
	Password      string                `yaml:"password"`
	TopicPrefix   string                `yaml:"topicprefix"`
	Retain        bool                  `yaml:"retain"`
	HomeAssistant HomeAssistantSettings `yaml:"homeassistant"`
}

// FrigateSettings configures external event ingestion
type FrigateSettings struct {
	Enabled           bool          `yaml:"enabled"`
	URL               string        `yaml:"url"`
	Topic             string        `yaml:"topic"`
	Cameras           []string      `yaml:"cameras"` // empty = all cameras
	ProcessOnSnapshot bool          `yaml:"processonsnapshot"`
	MaxWorkers        int           `yaml:"maxworkers"`
	DownloadClips     bool          `yaml:"downloadclips"`
	ClipDelay         time.Duration `yaml:"clipdelay"`
	RequestTimeout    time.Duration `yaml:"requesttimeout"`
}

// NotificationSettings configures push notifications
type NotificationSettings struct {
	Enabled   bool           `yaml:"enabled"`
	URLs      []string       `yaml:"urls"` // shoutrrr service URLs
	RateLimit time.Duration  `yaml:"ratelimit"`
	Burst     int            `yaml:"burst"`
	Script    ScriptSettings `yaml:"script"`
}

// ScriptSettings runs a local command for every visit.
type ScriptSettings struct {
	Command     string        `yaml:"command"`
	Args        []string      `yaml:"args"`
	InputFormat string        `yaml:"inputformat"` // env, json or both
	Timeout     time.Duration `yaml:"timeout"`
}

// WebServerSettings configures the status HTTP surface
type WebServerSettings struct {
	Enabled bool            `yaml:"enabled"`
	Listen  string          `yaml:"listen"`
	BaseURL string          `yaml:"baseurl"` // public URL used in MQTT media links
	Auth    WebAuthSettings `yaml:"auth"`
}

// WebAuthSettings protects write endpoints with HTTP basic auth.
type WebAuthSettings struct {
	Enabled      bool   `yaml:"enabled"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"passwordhash"` // bcrypt hash
}

// DaylightSettings limits camera analysis to civil daylight at a location.
type DaylightSettings struct {
	Enabled   bool    `yaml:"enabled"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// TelemetrySettings configures error reporting
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings is the root configuration
type Settings struct {
	Debug          bool                   `yaml:"debug"`
	Camera         CameraSettings         `yaml:"camera"`
	Accelerator    AcceleratorSettings    `yaml:"accelerator"`
	Motion         MotionSettings         `yaml:"motion"`
	Daylight       DaylightSettings       `yaml:"daylight"`
	Detection      DetectionSettings      `yaml:"detection"`
	Classification ClassificationSettings `yaml:"classification"`
	Tracker        TrackerSettings        `yaml:"tracker"`
	Clips          ClipSettings           `yaml:"clips"`
	Storage        StorageSettings        `yaml:"storage"`
	Output         OutputSettings         `yaml:"output"`
	MQTT           MQTTSettings           `yaml:"mqtt"`
	Frigate        FrigateSettings        `yaml:"frigate"`
	Notification   NotificationSettings   `yaml:"notification"`
	WebServer      WebServerSettings      `yaml:"webserver"`
	Telemetry      TelemetrySettings      `yaml:"telemetry"`
	Logging        logger.LoggingConfig   `yaml:"logging"`
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads .env, the configuration file and environment variables into a
// new Settings and validates it.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	// .env is optional; variables already set in the environment win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		GetLogger().Warn("failed to read .env file", logger.Error(err))
	}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults and env bindings and reads the config file,
// writing the embedded default on first run.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it back.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings, loading them on first use.
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() != nil {
			return
		}
		if _, err := Load(); err != nil {
			GetLogger().Error("error loading settings", logger.Error(err))
			os.Exit(1)
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes settings to configPath through a temp file and rename.
// Comments in the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempName := tempFile.Name()
	defer os.Remove(tempName)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Rename(tempName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
