package notification

import (
	"context"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"golang.org/x/time/rate"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/observability/metrics"
)

const (
	serviceShoutrrr    = "shoutrrr"
	defaultSendTimeout = 10 * time.Second
)

// Sender delivers a message to every configured service.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// PushOptions configures a Push notifier.
type PushOptions struct {
	URLs    []string      // shoutrrr service URLs
	Every   time.Duration // minimum spacing between notifications once the burst is spent
	Burst   int
	Timeout time.Duration
	Metrics *metrics.NotificationMetrics
}

// Push sends visits through shoutrrr, dropping notifications that exceed the
// rate limit.
type Push struct {
	sender  Sender
	limiter *rate.Limiter
	metrics *metrics.NotificationMetrics
}

// NewPush validates the URLs and builds the shoutrrr router.
func NewPush(opts PushOptions) (*Push, error) {
	if len(opts.URLs) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	router, err := shoutrrr.CreateSender(opts.URLs...)
	if err != nil {
		// URLs carry tokens, so only the sanitized message is kept
		return nil, errors.Newf("invalid notification URL: %s", logger.RedactSensitiveData(err.Error())).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	router.Timeout = opts.Timeout
	if router.Timeout <= 0 {
		router.Timeout = defaultSendTimeout
	}
	router.SetLogger(log.New(io.Discard, "", 0))

	return newPush(router, opts), nil
}

func newPush(sender Sender, opts PushOptions) *Push {
	limit := rate.Inf
	if opts.Every > 0 {
		limit = rate.Every(opts.Every)
	}
	burst := max(opts.Burst, 1)
	return &Push{
		sender:  sender,
		limiter: rate.NewLimiter(limit, burst),
		metrics: opts.Metrics,
	}
}

// Notify sends e unless the rate limit is exhausted. A dropped notification is
// not an error.
func (p *Push) Notify(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.limiter.Allow() {
		p.metrics.IncRateLimited()
		GetLogger().Debug("notification rate limited", logger.String("event_id", e.EventID))
		return nil
	}

	params := stypes.Params{}
	params.SetTitle(e.Title())

	var sendErr error
	for _, err := range p.sender.Send(e.Message(), &params) {
		if err != nil {
			sendErr = err
			break
		}
	}
	p.metrics.IncSent(serviceShoutrrr, sendErr)
	if sendErr != nil {
		return errors.Newf("push notification failed: %s", logger.RedactSensitiveData(sendErr.Error())).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("event_id", e.EventID).
			Build()
	}
	return nil
}
