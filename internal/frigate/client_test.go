package frigate

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ando01/BirdView/internal/errors"
)

func newMockClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	c := NewClient(ClientOptions{BaseURL: "http://frigate:5000/", Transport: transport})
	t.Cleanup(c.Close)
	return c, transport
}

func TestClientSnapshot(t *testing.T) {
	t.Parallel()

	c, transport := newMockClient(t)
	transport.RegisterResponder(http.MethodGet, "http://frigate:5000/api/events/evt-1/snapshot.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte{0xff, 0xd8, 0xff}))

	data, err := c.Snapshot(t.Context(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestClientSnapshotErrors(t *testing.T) {
	t.Parallel()

	c, transport := newMockClient(t)
	transport.RegisterResponder(http.MethodGet, "http://frigate:5000/api/events/missing/snapshot.jpg",
		httpmock.NewStringResponder(http.StatusNotFound, `{"success":false}`))
	transport.RegisterResponder(http.MethodGet, "http://frigate:5000/api/events/empty/snapshot.jpg",
		httpmock.NewBytesResponder(http.StatusOK, nil))

	for _, id := range []string{"missing", "empty", "unregistered"} {
		_, err := c.Snapshot(t.Context(), id)
		require.Error(t, err, id)
		assert.True(t, errors.IsCategory(err, errors.CategoryImageFetch), id)
	}
}

func TestClientDownloadClip(t *testing.T) {
	t.Parallel()

	c, transport := newMockClient(t)
	clip := bytes.Repeat([]byte("mp4"), 1000)
	transport.RegisterResponder(http.MethodGet, "http://frigate:5000/api/events/evt-2/clip.mp4",
		httpmock.NewBytesResponder(http.StatusOK, clip))

	var buf bytes.Buffer
	n, err := c.DownloadClip(t.Context(), "evt-2", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(clip)), n)
	assert.Equal(t, clip, buf.Bytes())
}
