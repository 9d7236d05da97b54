package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/observability/metrics"
)

// Script input formats.
const (
	InputEnv  = "env"
	InputJSON = "json"
	InputBoth = "both"
)

const (
	serviceScript        = "script"
	defaultScriptTimeout = 30 * time.Second
	maxScriptOutput      = 512
)

// ScriptOptions configures a Script notifier.
type ScriptOptions struct {
	Command     string
	Args        []string
	InputFormat string // env, json or both; env when empty
	Timeout     time.Duration
	Metrics     *metrics.NotificationMetrics
}

// Script runs a local command for every visit. Visit fields are passed as
// BIRDVIEW_* environment variables, as JSON on stdin, or both.
type Script struct {
	opts ScriptOptions
}

// NewScript validates opts and returns a Script notifier.
func NewScript(opts ScriptOptions) (*Script, error) {
	opts.Command = strings.TrimSpace(opts.Command)
	if opts.Command == "" {
		return nil, errors.Newf("script command is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	opts.InputFormat = strings.ToLower(strings.TrimSpace(opts.InputFormat))
	switch opts.InputFormat {
	case "":
		opts.InputFormat = InputEnv
	case InputEnv, InputJSON, InputBoth:
	default:
		return nil, errors.Newf("unknown script input format %q", opts.InputFormat).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultScriptTimeout
	}
	opts.Args = append([]string(nil), opts.Args...)
	return &Script{opts: opts}, nil
}

// scriptPayload is the JSON document written to the script's stdin.
type scriptPayload struct {
	EventID             string  `json:"event_id"`
	Source              string  `json:"source"`
	Time                string  `json:"time"`
	DurationSeconds     float64 `json:"duration_seconds"`
	ScientificName      string  `json:"scientific_name"`
	CommonName          string  `json:"common_name"`
	Score               float64 `json:"score"`
	DetectionConfidence float64 `json:"detection_confidence"`
	SnapshotPath        string  `json:"snapshot_path,omitempty"`
	ThumbnailPath       string  `json:"thumbnail_path,omitempty"`
	TodayCount          int     `json:"today_count"`
}

func newScriptPayload(e Event) scriptPayload {
	return scriptPayload{
		EventID:             e.EventID,
		Source:              e.Source,
		Time:                e.Time.UTC().Format(time.RFC3339),
		DurationSeconds:     e.Duration.Seconds(),
		ScientificName:      e.Species.ScientificName,
		CommonName:          e.Species.CommonName,
		Score:               e.Species.Score,
		DetectionConfidence: e.DetectionConfidence,
		SnapshotPath:        e.SnapshotPath,
		ThumbnailPath:       e.ThumbnailPath,
		TodayCount:          e.TodayCount,
	}
}

func (p scriptPayload) env() []string {
	return []string{
		"BIRDVIEW_EVENT_ID=" + p.EventID,
		"BIRDVIEW_SOURCE=" + p.Source,
		"BIRDVIEW_TIME=" + p.Time,
		"BIRDVIEW_DURATION=" + strconv.FormatFloat(p.DurationSeconds, 'f', 2, 64),
		"BIRDVIEW_SCIENTIFIC_NAME=" + p.ScientificName,
		"BIRDVIEW_COMMON_NAME=" + p.CommonName,
		"BIRDVIEW_SCORE=" + strconv.FormatFloat(p.Score, 'f', 4, 64),
		"BIRDVIEW_DETECTION_CONFIDENCE=" + strconv.FormatFloat(p.DetectionConfidence, 'f', 4, 64),
		"BIRDVIEW_SNAPSHOT=" + p.SnapshotPath,
		"BIRDVIEW_THUMBNAIL=" + p.ThumbnailPath,
		"BIRDVIEW_TODAY_COUNT=" + strconv.Itoa(p.TodayCount),
	}
}

// Notify runs the command and waits for it to exit.
func (s *Script) Notify(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	payload := newScriptPayload(e)
	cmd := exec.CommandContext(ctx, s.opts.Command, s.opts.Args...)
	cmd.Env = os.Environ()
	if s.opts.InputFormat != InputJSON {
		cmd.Env = append(cmd.Env, payload.env()...)
	}
	if s.opts.InputFormat != InputEnv {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.New(err).
				Component("notification").
				Category(errors.CategoryNotification).
				Build()
		}
		cmd.Stdin = bytes.NewReader(data)
	}

	out, err := cmd.CombinedOutput()
	s.opts.Metrics.IncSent(serviceScript, err)
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("command", s.opts.Command).
			Context("event_id", e.EventID).
			Context("output", truncate(string(out), maxScriptOutput)).
			Build()
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
