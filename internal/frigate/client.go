package frigate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/httpclient"
	"github.com/ando01/BirdView/internal/observability/metrics"
)

const (
	maxSnapshotBytes = 32 << 20

	fetchSnapshot = "snapshot"
	fetchClip     = "clip"
)

// Client fetches event media from the Frigate HTTP API.
type Client struct {
	baseURL string
	http    *httpclient.Client
	metrics *metrics.FrigateMetrics
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper // nil uses a pooled transport
	Metrics   *metrics.FrigateMetrics
}

// NewClient returns a client for the Frigate instance at opts.BaseURL.
func NewClient(opts ClientOptions) *Client {
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http: httpclient.New(&httpclient.Config{
			DefaultTimeout: opts.Timeout,
			Transport:      opts.Transport,
		}),
		metrics: opts.Metrics,
	}
}

func (c *Client) eventURL(eventID, file string) string {
	return fmt.Sprintf("%s/api/events/%s/%s", c.baseURL, url.PathEscape(eventID), file)
}

// Snapshot downloads the event snapshot JPEG.
func (c *Client) Snapshot(ctx context.Context, eventID string) ([]byte, error) {
	start := time.Now()
	defer func() { c.metrics.ObserveFetch(fetchSnapshot, time.Since(start)) }()

	body, cancel, err := c.get(ctx, eventID, "snapshot.jpg")
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxSnapshotBytes))
	if err != nil {
		return nil, fetchError(err, eventID, fetchSnapshot)
	}
	if len(data) == 0 {
		return nil, errors.Newf("empty snapshot").
			Component("frigate").
			Category(errors.CategoryImageFetch).
			Context("event_id", eventID).
			Build()
	}
	return data, nil
}

// DownloadClip streams the event clip into w.
func (c *Client) DownloadClip(ctx context.Context, eventID string, w io.Writer) (int64, error) {
	start := time.Now()
	defer func() { c.metrics.ObserveFetch(fetchClip, time.Since(start)) }()

	body, cancel, err := c.get(ctx, eventID, "clip.mp4")
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer body.Close()

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fetchError(err, eventID, fetchClip)
	}
	return n, nil
}

func (c *Client) get(ctx context.Context, eventID, file string) (io.ReadCloser, context.CancelFunc, error) {
	resp, cancel, err := c.http.Get(ctx, c.eventURL(eventID, file))
	if err != nil {
		return nil, cancel, fetchError(err, eventID, file)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, func() {}, errors.Newf("unexpected status %d", resp.StatusCode).
			Component("frigate").
			Category(errors.CategoryImageFetch).
			Context("event_id", eventID).
			Context("file", file).
			Build()
	}
	return resp.Body, cancel, nil
}

func fetchError(err error, eventID, kind string) error {
	return errors.New(err).
		Component("frigate").
		Category(errors.CategoryImageFetch).
		Context("event_id", eventID).
		Context("file", kind).
		Build()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}
