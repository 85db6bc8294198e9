package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smm-orders/internal/core/logger"
	"smm-orders/internal/core/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLoggingRoundTripper verifies that requests are logged and counted.
func TestLoggingRoundTripper(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	require.NoError(t, logger.Init("development", "debug"))

	m := metrics.New()
	client := NewClient(1*time.Second, WithMetrics(m))
	resp, err := client.Post(ts.URL, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboundRequests.WithLabelValues("POST", "200")))
}

// TestLoggingRoundTripper_Error verifies that failed requests are logged and counted as errors.
func TestLoggingRoundTripper_Error(t *testing.T) {
	require.NoError(t, logger.Init("development", "debug"))

	m := metrics.New()
	client := NewClient(1*time.Second, WithMetrics(m))
	_, err := client.Get("http://invalid-url-that-does-not-exist.local")
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboundRequests.WithLabelValues("GET", "error")))
}

// TestNewClient_Timeout verifies the configured timeout is applied.
func TestNewClient_Timeout(t *testing.T) {
	client := NewClient(DefaultTimeout)
	assert.Equal(t, 30*time.Second, client.Timeout)
}

// TestLoggingRoundTripper_DefinitionHeader verifies the definition name is logged with the request.
func TestLoggingRoundTripper_DefinitionHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	client := &http.Client{Transport: &LoggingRoundTripper{
		Proxied: http.DefaultTransport,
		log:     zap.New(core),
	}}

	req, err := http.NewRequest(http.MethodPost, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set(DefinitionHeader, "smm.status")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	started := logs.FilterMessage("HTTP Request Started").All()
	require.Len(t, started, 1)
	assert.Equal(t, "smm.status", started[0].ContextMap()["definition"])
}
