package requestdef

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is the raw outcome of a send. Callers decide whether a non-2xx
// status is fatal by calling Throw.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	definition string
}

// Successful reports a 2xx status.
func (r *Response) Successful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Throw returns an *HTTPError for non-2xx responses.
func (r *Response) Throw() error {
	if r.Successful() {
		return nil
	}
	return &HTTPError{
		Definition: r.definition,
		StatusCode: r.StatusCode,
		Body:       string(r.Body),
	}
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s response: %w", r.definition, err)
	}
	return nil
}
