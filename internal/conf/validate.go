// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateCameraSettings(&s.Camera) },
		func(s *Settings) error { return validateMotionSettings(&s.Motion) },
		func(s *Settings) error { return validateDaylightSettings(&s.Daylight) },
		func(s *Settings) error { return validateDetectionSettings(&s.Detection) },
		func(s *Settings) error { return validateClassificationSettings(&s.Classification) },
		func(s *Settings) error { return validateTrackerSettings(&s.Tracker) },
		func(s *Settings) error { return validateClipSettings(&s.Clips) },
		func(s *Settings) error { return validateStorageSettings(&s.Storage) },
		func(s *Settings) error { return validateMQTTSettings(&s.MQTT) },
		func(s *Settings) error { return validateFrigateSettings(&s.Frigate) },
		func(s *Settings) error { return validateNotificationSettings(&s.Notification) },
		func(s *Settings) error { return validateWebServerSettings(&s.WebServer) },
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateCameraSettings(s *CameraSettings) error {
	var errs []string
	if s.DetectionFPS <= 0 {
		errs = append(errs, "camera.detectionfps must be greater than 0")
	}
	if s.BufferSeconds <= 0 {
		errs = append(errs, "camera.bufferseconds must be greater than 0")
	}
	if s.BufferCapacity <= 0 {
		errs = append(errs, "camera.buffercapacity must be greater than 0")
	}
	if s.ReconnectDelay <= 0 {
		errs = append(errs, "camera.reconnectdelay must be positive")
	}
	if s.MaxReconnectDelay < s.ReconnectDelay {
		errs = append(errs, "camera.maxreconnectdelay must not be less than camera.reconnectdelay")
	}
	return joinErrs("camera", errs)
}

func validateMotionSettings(s *MotionSettings) error {
	var errs []string
	if s.MinArea < 0 {
		errs = append(errs, "motion.minarea must not be negative")
	}
	if s.History <= 0 {
		errs = append(errs, "motion.history must be greater than 0")
	}
	if s.VarThreshold <= 0 {
		errs = append(errs, "motion.varthreshold must be greater than 0")
	}
	return joinErrs("motion", errs)
}

func validateDetectionSettings(s *DetectionSettings) error {
	var errs []string
	if s.Confidence < 0 || s.Confidence > 1 {
		errs = append(errs, fmt.Sprintf("detection.confidence must be between 0 and 1, got %g", s.Confidence))
	}
	if s.InputSize <= 0 {
		errs = append(errs, "detection.inputsize must be greater than 0")
	}
	if s.TargetClass < 0 {
		errs = append(errs, "detection.targetclass must not be negative")
	}
	for i, pt := range s.Zone {
		if len(pt) != 2 {
			errs = append(errs, fmt.Sprintf("detection.zone point %d must have 2 coordinates", i))
			continue
		}
		if pt[0] < 0 || pt[0] > 1 || pt[1] < 0 || pt[1] > 1 {
			errs = append(errs, fmt.Sprintf("detection.zone point %d must be normalized to [0,1]", i))
		}
	}
	return joinErrs("detection", errs)
}

func validateClassificationSettings(s *ClassificationSettings) error {
	var errs []string
	if s.Threshold < 0 || s.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("classification.threshold must be between 0 and 1, got %g", s.Threshold))
	}
	if s.InputSize <= 0 {
		errs = append(errs, "classification.inputsize must be greater than 0")
	}
	return joinErrs("classification", errs)
}

func validateTrackerSettings(s *TrackerSettings) error {
	var errs []string
	if s.MaxMissingFrames < 0 {
		errs = append(errs, "tracker.maxmissingframes must not be negative")
	}
	if s.IoUThreshold < 0 || s.IoUThreshold > 1 {
		errs = append(errs, fmt.Sprintf("tracker.iouthreshold must be between 0 and 1, got %g", s.IoUThreshold))
	}
	return joinErrs("tracker", errs)
}

func validateClipSettings(s *ClipSettings) error {
	if !s.Enabled {
		return nil
	}
	var errs []string
	if s.PreCapture < 0 || s.PostCapture < 0 {
		errs = append(errs, "clips.precapture and clips.postcapture must not be negative")
	}
	if s.FPS <= 0 {
		errs = append(errs, "clips.fps must be greater than 0")
	}
	if s.MaxDuration <= 0 {
		errs = append(errs, "clips.maxduration must be positive")
	}
	if s.Transcode && s.FFmpegPath == "" {
		errs = append(errs, "clips.ffmpegpath is required when transcoding")
	}
	return joinErrs("clips", errs)
}

func validateStorageSettings(s *StorageSettings) error {
	var errs []string
	if s.Path == "" {
		errs = append(errs, "storage.path is required")
	}
	if s.RetentionDays < 0 {
		errs = append(errs, "storage.retentiondays must not be negative")
	}
	if s.SnapshotQuality < 1 || s.SnapshotQuality > 100 {
		errs = append(errs, fmt.Sprintf("storage.snapshotquality must be between 1 and 100, got %d", s.SnapshotQuality))
	}
	return joinErrs("storage", errs)
}

func validateMQTTSettings(s *MQTTSettings) error {
	if !s.Enabled {
		return nil
	}
	var errs []string
	if s.Broker == "" {
		errs = append(errs, "mqtt.broker is required when MQTT is enabled")
	} else if err := validateEnvBrokerURL(s.Broker); err != nil {
		errs = append(errs, fmt.Sprintf("mqtt.broker: %v", err))
	}
	if s.TopicPrefix == "" {
		errs = append(errs, "mqtt.topicprefix must not be empty")
	}
	return joinErrs("mqtt", errs)
}

func validateFrigateSettings(s *FrigateSettings) error {
	if !s.Enabled {
		return nil
	}
	var errs []string
	if u, err := url.Parse(s.URL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Sprintf("frigate.url %q is not a valid URL", s.URL))
	}
	if s.Topic == "" {
		errs = append(errs, "frigate.topic is required")
	}
	if s.MaxWorkers <= 0 {
		errs = append(errs, "frigate.maxworkers must be greater than 0")
	}
	if s.ClipDelay < 0 {
		errs = append(errs, "frigate.clipdelay must not be negative")
	}
	return joinErrs("frigate", errs)
}

func validateNotificationSettings(s *NotificationSettings) error {
	if !s.Enabled {
		return nil
	}
	var errs []string
	if len(s.URLs) == 0 && s.Script.Command == "" {
		errs = append(errs, "notification.urls or notification.script.command must be set")
	}
	switch s.Script.InputFormat {
	case "", "env", "json", "both":
	default:
		errs = append(errs, fmt.Sprintf("notification.script.inputformat must be env, json or both, got %q", s.Script.InputFormat))
	}
	if s.RateLimit < 0 {
		errs = append(errs, "notification.ratelimit must not be negative")
	}
	if s.Burst <= 0 {
		errs = append(errs, "notification.burst must be greater than 0")
	}
	return joinErrs("notification", errs)
}

func validateDaylightSettings(s *DaylightSettings) error {
	if !s.Enabled {
		return nil
	}
	var errs []string
	if s.Latitude < -90 || s.Latitude > 90 {
		errs = append(errs, "daylight.latitude must be between -90 and 90")
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		errs = append(errs, "daylight.longitude must be between -180 and 180")
	}
	return joinErrs("daylight", errs)
}

func validateWebServerSettings(s *WebServerSettings) error {
	if !s.Enabled || !s.Auth.Enabled {
		return nil
	}
	var errs []string
	if s.Auth.Username == "" {
		errs = append(errs, "webserver.auth.username is required")
	}
	if !strings.HasPrefix(s.Auth.PasswordHash, "$2") {
		errs = append(errs, "webserver.auth.passwordhash must be a bcrypt hash")
	}
	return joinErrs("webserver", errs)
}

func joinErrs(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s settings errors: %s", section, strings.Join(errs, ", "))
}
