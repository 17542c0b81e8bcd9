package gateway

import (
	"fmt"
)

// Kind classifies a failed backend call.
type Kind string

const (
	// KindTransport: the request never produced a response.
	KindTransport Kind = "transport"
	// KindStatus: the backend answered with a non-2xx status.
	KindStatus Kind = "status"
	// KindDecode: the response body was not the expected JSON.
	KindDecode Kind = "decode"
	// KindRejected: a 2xx answer that reports failure, e.g. {"success": false}.
	KindRejected Kind = "rejected"
)

// Error is returned by every Client operation.
type Error struct {
	Op        string
	Kind      Kind
	Status    int
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
