package httpclient

import (
	"net/http"
	"strconv"
	"time"

	"smm-orders/internal/core/logger"
	"smm-orders/internal/core/metrics"
	"smm-orders/internal/core/proxy"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every outbound provider call.
const DefaultTimeout = 30 * time.Second

// DefinitionHeader names the request definition behind an outbound call.
// It is only set in development and is logged with the request.
const DefinitionHeader = "Request-Definition"

// LoggingRoundTripper logs and measures every outbound request.
type LoggingRoundTripper struct {
	// Proxied is the underlying RoundTripper to execute the request.
	Proxied http.RoundTripper
	// Metrics is optional.
	Metrics *metrics.Metrics

	log *zap.Logger
}

// RoundTrip executes the request and logs details.
func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	log := lrt.log
	if log == nil {
		log = logger.Named("httpclient")
	}

	log.Debug("HTTP Request Started",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.String("definition", req.Header.Get(DefinitionHeader)),
	)

	resp, err := lrt.Proxied.RoundTrip(req)

	duration := time.Since(start)
	lrt.observe(req.Method, resp, err, duration)

	if err != nil {
		log.Error("HTTP Request Failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	log.Debug("HTTP Request Completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	return resp, nil
}

func (lrt *LoggingRoundTripper) observe(method string, resp *http.Response, err error, d time.Duration) {
	if lrt.Metrics == nil {
		return
	}
	code := "error"
	if err == nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	lrt.Metrics.OutboundRequests.WithLabelValues(method, code).Inc()
	lrt.Metrics.OutboundDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Option customizes the client built by NewClient.
type Option func(*options)

type options struct {
	proxy   proxy.Settings
	metrics *metrics.Metrics
}

// WithProxy routes requests through the given upstream proxy.
func WithProxy(s proxy.Settings) Option {
	return func(o *options) { o.proxy = s }
}

// WithMetrics records request counters and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// NewClient returns an http.Client with logging middleware.
func NewClient(timeout time.Duration, opts ...Option) *http.Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = o.proxy.Func()

	return &http.Client{
		Transport: &LoggingRoundTripper{
			Proxied: base,
			Metrics: o.metrics,
		},
		Timeout: timeout,
	}
}
