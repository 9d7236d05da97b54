package clip

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

const stderrTailSize = 4096

// transcoder re-encodes a clip for browser playback.
type transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// ffmpegTranscoder converts mp4v to H.264 with the moov atom up front.
type ffmpegTranscoder struct {
	path    string
	timeout time.Duration
}

func (f ffmpegTranscoder) Transcode(ctx context.Context, src, dst string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.path,
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		dst,
	)
	stderr := newStderrTail(stderrTailSize)
	cmd.Stderr = stderr

	GetLogger().Trace("running ffmpeg", logger.String("command", cmd.String()))

	if err := cmd.Run(); err != nil {
		category := errors.CategoryClipEncode
		if ctx.Err() == context.DeadlineExceeded {
			category = errors.CategoryTimeout
		}
		return errors.New(err).
			Component("clip").
			Category(category).
			Context("stderr", strings.TrimSpace(stderr.String())).
			Timing("transcode", time.Since(start)).
			Build()
	}
	return nil
}
