package proxy

import (
	"fmt"
	"net/http"
	"net/url"

	"smm-orders/internal/core/config"
)

// Settings describes an optional upstream HTTP proxy for provider calls.
type Settings struct {
	Enabled  bool
	Hostname string
	Port     int
	Username string
	Password string
}

// FromConfig converts the env-loaded proxy block.
func FromConfig(cfg config.ProxyConfig) Settings {
	return Settings{
		Enabled:  cfg.Enabled,
		Hostname: cfg.Hostname,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
	}
}

// HasProxy returns true if proxy is enabled and configured.
func (p Settings) HasProxy() bool {
	return p.Enabled && p.Hostname != "" && p.Port > 0
}

// URL returns the proxy URL including credentials when present.
func (p Settings) URL() *url.URL {
	if !p.HasProxy() {
		return nil
	}
	u := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", p.Hostname, p.Port),
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// Func returns a proxy selector for http.Transport.
// Without a configured proxy it falls back to the environment (HTTP_PROXY etc).
func (p Settings) Func() func(*http.Request) (*url.URL, error) {
	if u := p.URL(); u != nil {
		return http.ProxyURL(u)
	}
	return http.ProxyFromEnvironment
}
