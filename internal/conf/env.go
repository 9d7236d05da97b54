// env.go environment variable bindings for BirdView
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is prepended to every automatically bound variable
const envPrefix = "BIRDVIEW"

type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"camera.url", "BIRDVIEW_CAMERA_URL", validateEnvStreamURL},
		{"camera.detectionfps", "BIRDVIEW_CAMERA_DETECTIONFPS", validateEnvPositiveFloat},

		{"accelerator.enabled", "BIRDVIEW_ACCELERATOR_ENABLED", validateEnvBool},

		{"detection.confidence", "BIRDVIEW_DETECTION_CONFIDENCE", validateEnvUnitInterval},
		{"detection.modelpath", "BIRDVIEW_DETECTION_MODELPATH", nil},
		{"classification.threshold", "BIRDVIEW_CLASSIFICATION_THRESHOLD", validateEnvUnitInterval},
		{"classification.modelpath", "BIRDVIEW_CLASSIFICATION_MODELPATH", nil},
		{"classification.labelspath", "BIRDVIEW_CLASSIFICATION_LABELSPATH", nil},

		{"storage.path", "BIRDVIEW_STORAGE_PATH", nil},
		{"storage.retentiondays", "BIRDVIEW_STORAGE_RETENTIONDAYS", validateEnvNonNegativeInt},

		{"mqtt.enabled", "BIRDVIEW_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "BIRDVIEW_MQTT_BROKER", validateEnvBrokerURL},
		{"mqtt.username", "BIRDVIEW_MQTT_USERNAME", nil},
		{"mqtt.password", "BIRDVIEW_MQTT_PASSWORD", nil},

		{"frigate.enabled", "BIRDVIEW_FRIGATE_ENABLED", validateEnvBool},
		{"frigate.url", "BIRDVIEW_FRIGATE_URL", validateEnvHTTPURL},

		{"output.mysql.password", "BIRDVIEW_MYSQL_PASSWORD", nil},
		{"webserver.auth.passwordhash", "BIRDVIEW_WEB_PASSWORDHASH", nil},
		{"telemetry.dsn", "BIRDVIEW_SENTRY_DSN", nil},
	}
}

// configureEnvironmentVariables binds BIRDVIEW_* variables to config keys.
// Invalid values are reported but still bound; ValidateSettings has the final say.
func configureEnvironmentVariables() error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var warnings []string
	for _, b := range getEnvBindings() {
		if err := viper.BindEnv(b.ConfigKey, b.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", b.EnvVar, err))
			continue
		}
		if b.Validate == nil {
			continue
		}
		if value := os.Getenv(b.EnvVar); value != "" {
			if err := b.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s: %v", b.EnvVar, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("%q is not a boolean", value)
	}
	return nil
}

func validateEnvPositiveFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", value)
	}
	if f <= 0 {
		return fmt.Errorf("must be greater than 0, got %g", f)
	}
	return nil
}

func validateEnvUnitInterval(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", value)
	}
	if f < 0 || f > 1 {
		return fmt.Errorf("must be between 0 and 1, got %g", f)
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%q is not an integer", value)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

// validateEnvStreamURL accepts URLs with a scheme or local device paths
func validateEnvStreamURL(value string) error {
	if strings.HasPrefix(value, "/dev/") {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "rtsp", "rtsps", "http", "https", "rtmp", "file":
		return nil
	default:
		return fmt.Errorf("unsupported stream scheme %q", u.Scheme)
	}
}

func validateEnvBrokerURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
		return nil
	default:
		return fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}

func validateEnvHTTPURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
