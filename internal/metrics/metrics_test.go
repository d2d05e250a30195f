package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/responder/internal/core"
)

func TestObserveDisposition(t *testing.T) {
	ObserveDisposition("t0", core.Accept(&core.ParsedFrame{}))
	ObserveDisposition("t0", core.Pass(core.PassNotTCP))
	ObserveDisposition("t0", core.Pass(core.PassNotTCP))
	ObserveDisposition("t0", core.Reject(core.ErrTCPChecksumMismatch))

	assert.Equal(t, 1.0, testutil.ToFloat64(FramesTotal.WithLabelValues("t0", "accept", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(FramesTotal.WithLabelValues("t0", "pass", "not_tcp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(FramesTotal.WithLabelValues("t0", "error", "checksum")))
}

func TestObserveResponse(t *testing.T) {
	ObserveResponse("t1", ResultSent)
	ObserveResponse("t1", ResultLimited)
	assert.Equal(t, 1.0, testutil.ToFloat64(ResponsesTotal.WithLabelValues("t1", ResultSent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(ResponsesTotal.WithLabelValues("t1", ResultLimited)))
}

func TestServer(t *testing.T) {
	ObserveResponse("srv", ResultSent)

	s := NewServer("127.0.0.1:0", "")
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `responder_responses_total{result="sent",worker="srv"}`))

	health, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestServerBindError(t *testing.T) {
	a := NewServer("127.0.0.1:0", "/m")
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop(context.Background())

	b := NewServer(a.Addr(), "/m")
	assert.Error(t, b.Start(context.Background()))
	assert.NoError(t, b.Stop(context.Background()), "stop before a successful start is a no-op")
}
