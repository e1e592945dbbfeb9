package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverTracksReceivedAndDropped(t *testing.T) {
	o := &Observer{}
	o.ObserveFramesReceived(3)
	o.ObserveFramesReceived(2)
	o.ObserveFramesDropped(1)

	assert.Equal(t, uint64(5), o.Received())
	assert.Equal(t, uint64(1), o.Dropped())
}

func TestHandlerServesMetrics(t *testing.T) {
	PublishPluginStats("test-plugin", 1000, 2000, 1500, 4)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "odin_plugin_process_duration_last_seconds")
	assert.Contains(t, body, `plugin="test-plugin"`)
}

func TestPublishAcquisitionCounters(t *testing.T) {
	PublishAcquisitionCounters("acq1", 10, 12)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "odin_acquisition_frames_written")
	assert.Contains(t, body, `acquisition="acq1"`)
}
