package gateway

import "fmt"

// ErrorKind classifies gateway failures so callers can branch on a single
// discriminator instead of unwrapping transport-specific error types.
type ErrorKind string

const (
	KindNetwork ErrorKind = "network"  // connection refused, DNS, reset
	KindTimeout ErrorKind = "timeout"  // request exceeded the client timeout
	KindHTTP    ErrorKind = "http"     // non-2xx status without a usable envelope
	KindBadJSON ErrorKind = "bad_json" // 2xx body that is not valid JSON
	KindService ErrorKind = "service"  // envelope with success=false
)

// APIError is the one error type the gateway produces. Every failure mode is
// folded into it; Kind tells the caller which one occurred.
type APIError struct {
	Kind       ErrorKind
	StatusCode int    // 0 when the request never completed
	ErrCode    string // service-reported error name, e.g. "NotAuthorized"
	Message    string
	Err        error // underlying cause, if any
}

func (e *APIError) Error() string {
	switch {
	case e.ErrCode != "":
		return fmt.Sprintf("habitica: %s (%d %s): %s", e.Kind, e.StatusCode, e.ErrCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("habitica: %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("habitica: %s: %s", e.Kind, e.Message)
	}
}

func (e *APIError) Unwrap() error { return e.Err }
