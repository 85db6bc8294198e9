package requestdef

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"smm-orders/internal/core/httpclient"
	"smm-orders/internal/core/logger"
	"smm-orders/internal/core/metrics"
	"smm-orders/internal/core/ratelimit"

	"go.uber.org/zap"
)

// Sender validates, rate limits and issues definitions.
type Sender struct {
	client  *http.Client
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
	timeout time.Duration
	debug   bool
}

// SenderOption customizes a Sender.
type SenderOption func(*Sender)

// WithLimiter sets the counter store shared by every worker. Defaults to a
// process-local limiter.
func WithLimiter(l ratelimit.Limiter) SenderOption {
	return func(s *Sender) { s.limiter = l }
}

// WithMetrics counts rate limited sends.
func WithMetrics(m *metrics.Metrics) SenderOption {
	return func(s *Sender) { s.metrics = m }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) SenderOption {
	return func(s *Sender) { s.timeout = d }
}

// WithDebugHeader adds the Request-Definition header to every request.
func WithDebugHeader(enabled bool) SenderOption {
	return func(s *Sender) { s.debug = enabled }
}

// NewSender creates a Sender on top of client.
func NewSender(client *http.Client, opts ...SenderOption) *Sender {
	s := &Sender{
		client:  client,
		timeout: httpclient.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewMemoryLimiter()
	}
	return s
}

// Send validates def, checks its fingerprint against the limiter and issues
// the request. The returned response may carry any status code.
func (s *Sender) Send(ctx context.Context, def Definition) (*Response, error) {
	if err := Validate(def); err != nil {
		return nil, err
	}

	id := UniqueID(def)
	window := time.Duration(def.DecayWindowSeconds()) * time.Second
	allowed, err := s.limiter.Allow(ctx, id, def.MaxExecutionsWithinDecayWindow(), window)
	if err != nil {
		return nil, fmt.Errorf("rate limit check for %s: %w", def.Name(), err)
	}
	if !allowed {
		if s.metrics != nil {
			s.metrics.RateLimited.WithLabelValues(def.Name()).Inc()
		}
		logger.Named("requestdef").Warn("Request rate limited",
			zap.String("definition", def.Name()),
			zap.String("fingerprint", id),
		)
		return nil, fmt.Errorf("%s (%s): %w", def.Name(), id, ErrRateLimited)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.build(ctx, def)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &HTTPError{Definition: def.Name(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &HTTPError{Definition: def.Name(), Err: fmt.Errorf("read body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		definition: def.Name(),
	}, nil
}

func (s *Sender) build(ctx context.Context, def Definition) (*http.Request, error) {
	u, err := url.Parse(def.URL())
	if err != nil {
		return nil, fmt.Errorf("invalid URL for %s: %w", def.Name(), err)
	}

	query := u.Query()
	for k, v := range def.QueryParams() {
		query.Set(k, v)
	}

	var body io.Reader
	var contentType string

	method := def.Method()
	payload := def.Payload()

	switch {
	case method == http.MethodGet || method == http.MethodHead:
		for k, v := range payload {
			query.Set(k, stringify(v))
		}
	case def.Format() == FormatForm:
		form := url.Values{}
		for k, v := range payload {
			form.Set(k, stringify(v))
		}
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", def.Name(), err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", def.Name(), err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range def.Headers() {
		req.Header.Set(k, v)
	}
	if s.debug {
		req.Header.Set(httpclient.DefinitionHeader, def.Name())
	}

	return req, nil
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
