// Package requestdef describes single outbound API operations as values:
// what to send, how to validate it before sending, and how often an identical
// request may be repeated.
package requestdef

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Format selects how the payload is encoded in the request body.
type Format string

const (
	FormatJSON Format = "json"
	FormatForm Format = "form"
)

const (
	// DefaultMaxExecutions is how many identical requests may be sent per decay window.
	DefaultMaxExecutions = 2
	// DefaultDecayWindowSeconds is the rolling window length.
	DefaultDecayWindowSeconds = 15
)

// Definition is one operation against one target.
type Definition interface {
	// Name identifies the kind of request, e.g. "smm.add". It is part of the fingerprint.
	Name() string
	Method() string
	URL() string
	Headers() map[string]string
	QueryParams() map[string]string
	Payload() map[string]any
	Rules() Rules
	Format() Format
	MaxExecutionsWithinDecayWindow() int
	DecayWindowSeconds() int
}

// Defaults can be embedded by definitions to inherit the common settings.
type Defaults struct{}

func (Defaults) Headers() map[string]string { return map[string]string{} }
func (Defaults) QueryParams() map[string]string { return map[string]string{} }
func (Defaults) Rules() Rules { return Rules{} }
func (Defaults) Format() Format { return FormatJSON }
func (Defaults) MaxExecutionsWithinDecayWindow() int { return DefaultMaxExecutions }
func (Defaults) DecayWindowSeconds() int { return DefaultDecayWindowSeconds }

// UniqueID fingerprints a definition. Two definitions with the same name,
// method, URL, payload, headers and query params share a fingerprint.
func UniqueID(def Definition) string {
	raw := fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		def.Name(),
		def.Method(),
		def.URL(),
		canonicalJSON(def.Payload()),
		canonicalJSON(def.Headers()),
		canonicalJSON(def.QueryParams()),
	)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// canonicalJSON relies on encoding/json sorting map keys.
func canonicalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
