package requestdef

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrRateLimited is returned when the fingerprint exhausted its decay window budget.
var ErrRateLimited = errors.New("request rate limited")

// ValidationError reports payload fields that broke the definition's rules.
type ValidationError struct {
	// Definition is the definition that was rejected.
	Definition Definition
	// Fields maps the offending key to the rule it failed.
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s (%s)", k, e.Fields[k]))
	}
	return fmt.Sprintf("validation failed for %s: %s", e.DefinitionName(), strings.Join(parts, ", "))
}

// DefinitionName returns the name of the rejected definition.
func (e *ValidationError) DefinitionName() string {
	if e.Definition == nil {
		return ""
	}
	return e.Definition.Name()
}

// HTTPError is a transport failure (StatusCode 0) or a non-2xx response.
type HTTPError struct {
	Definition string
	StatusCode int
	Body       string
	Err        error
}

func (e *HTTPError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request %s failed: %v", e.Definition, e.Err)
	}
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("request %s returned HTTP %d: %s", e.Definition, e.StatusCode, body)
}

func (e *HTTPError) Unwrap() error { return e.Err }
