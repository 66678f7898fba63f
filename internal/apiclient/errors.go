package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/cockroachdb/errors"
)

// Kind classifies a RequestError.
type Kind int

const (
	// KindTransport covers unreachable hosts, DNS failures, resets and aborted calls.
	KindTransport Kind = iota + 1
	// KindTimeout is a call that exceeded the client timeout.
	KindTimeout
	// KindHTTPStatus is a non-2xx response.
	KindHTTPStatus
	// KindDecode is a 2xx response whose body could not be parsed.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http_status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *RequestError of the same kind.
var (
	ErrTransport  = errors.New("transport error")
	ErrTimeout    = errors.New("request timed out")
	ErrHTTPStatus = errors.New("unexpected HTTP status")
	ErrDecode     = errors.New("invalid response body")
)

// RequestError is the single error type returned by every Client operation.
// Detail holds the backend's human-readable "detail" message when the response carried one.
type RequestError struct {
	Op         string
	Kind       Kind
	StatusCode int
	Detail     string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Kind == KindHTTPStatus && e.Detail != "":
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Detail)
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTimeout) and friends match on Kind.
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrHTTPStatus:
		return e.Kind == KindHTTPStatus
	case ErrDecode:
		return e.Kind == KindDecode
	}
	return false
}

// DetailOf returns the backend detail message carried by err, if any.
func DetailOf(err error) (string, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Detail != "" {
		return reqErr.Detail, true
	}
	return "", false
}

func transportError(op string, err error) *RequestError {
	kind := KindTransport
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &RequestError{Op: op, Kind: kind, Err: err}
}

// statusError builds a KindHTTPStatus error, pulling a string "detail" out of body when present.
func statusError(op string, status int, body []byte) *RequestError {
	e := &RequestError{Op: op, Kind: KindHTTPStatus, StatusCode: status}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var detail string
		if json.Unmarshal(payload.Detail, &detail) == nil {
			e.Detail = detail
		}
	}
	return e
}
