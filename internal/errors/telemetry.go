package errors

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives built errors when telemetry is enabled
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	reporterMu     sync.RWMutex
	globalReporter TelemetryReporter
)

// SetTelemetryReporter installs the global reporter. Passing nil disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	globalReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

func reportToTelemetry(ee *EnhancedError) {
	reporterMu.RLock()
	reporter := globalReporter
	reporterMu.RUnlock()
	if reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

// SentryReporter reports errors to Sentry
type SentryReporter struct {
	enabled bool
}

// InitSentry initializes the Sentry SDK and installs a SentryReporter.
// An empty dsn leaves telemetry disabled.
func InitSentry(dsn, release string) (*SentryReporter, error) {
	if dsn == "" {
		return &SentryReporter{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: false,
		SendDefaultPII:   false,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			event.ServerName = ""
			event.Message = ScrubMessage(event.Message)
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init failed: %w", err)
	}
	reporter := &SentryReporter{enabled: true}
	SetTelemetryReporter(reporter)
	return reporter, nil
}

// FlushSentry waits up to timeout for queued events to be delivered.
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}

func (sr *SentryReporter) IsEnabled() bool {
	return sr != nil && sr.enabled
}

// ReportError sends ee to Sentry once, grouped by component and category.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.IsEnabled() || ee.IsReported() {
		return
	}

	message := ScrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = ScrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetFingerprint([]string{ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Level = levelFor(ee.Category)
		event.Message = message
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%s %s", ee.Component, ee.Category),
			Value: message,
		}}
		sentry.CaptureEvent(event)
	})
	ee.MarkReported()
}

func levelFor(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryCapture, CategoryNetwork, CategoryMQTTConnection, CategoryImageFetch, CategoryClipEncode:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	urlUserinfoRegex = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s]+@`)
	urlQueryRegex    = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	secretPairRegex  = regexp.MustCompile(`(?i)(password|passwd|token|api[_-]?key|secret)[=:]\S+`)
)

// ScrubMessage removes URL credentials, query strings and key=value secrets.
func ScrubMessage(message string) string {
	message = urlUserinfoRegex.ReplaceAllString(message, "$1[REDACTED]@")
	message = urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	return secretPairRegex.ReplaceAllString(message, "$1=[REDACTED]")
}
