package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyric-companion/backend/internal/model"
	"github.com/lyric-companion/backend/internal/ws"
)

var _ ws.Observer = (*Collector)(nil)

func TestCollector_Counts(t *testing.T) {
	version := 0.0
	c := New("1.2.3", func() float64 { return version })

	c.SessionOpened()
	c.SessionOpened()
	c.FrameIn("get")
	c.FrameIn("state")
	c.FrameIn("state")
	c.FrameOut()
	c.StateSet()
	c.ProtocolError()
	c.SessionClosed(model.CloseReasonProtocol)
	version = 7

	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsOpened))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsClosed.WithLabelValues("protocol_error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.framesIn.WithLabelValues("state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesIn.WithLabelValues("get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesOut))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stateSets))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.protocolErrors))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.stateVersion))
}

func TestCollector_Handler(t *testing.T) {
	c := New("dev", nil)
	c.SessionOpened()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, "companion_sessions_active 1"), text)
	assert.Contains(t, text, `companion_build_info{version="dev"} 1`)
	assert.Contains(t, text, "go_goroutines")
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := New("a", nil)
	b := New("b", nil)
	a.StateSet()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.stateSets))
}
