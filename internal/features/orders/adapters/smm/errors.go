package smm

import "fmt"

// ProtocolError means the provider answered 2xx with an unexpected body.
type ProtocolError struct {
	Action  Action
	Message string
	Body    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("smm %s: %s", e.Action, e.Message)
}
