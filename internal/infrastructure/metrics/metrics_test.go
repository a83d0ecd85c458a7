package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()

	r.Operation("join", "")
	r.Operation("join", "BANNED")
	r.Operation("join", "")
	r.SetRooms(3)
	r.ItemStored("message")
	r.Translation(120*time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("join", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("join", "BANNED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.rooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.items.WithLabelValues("message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.translations.WithLabelValues("failed")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ConnectionOpened()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "murmur_websocket_connections 1")
}
