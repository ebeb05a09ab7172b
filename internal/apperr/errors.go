// Package apperr defines the session error taxonomy of §7 and the mapping
// from each kind to the WebSocket close-frame code a terminal error sends.
package apperr

import (
	"fmt"

	"github.com/gobwas/ws"
)

// Kind identifies why a session is terminating (or, for RateLimited, why a
// single inbound frame was rejected without terminating the session).
type Kind int

const (
	// Shutdown is raised when the process-wide cancellation signal fires.
	Shutdown Kind = iota
	// RateLimited is the only non-terminal kind: the frame is dropped, the
	// session continues.
	RateLimited
	// ClientClose is raised by a peer-initiated close frame or a closed
	// stream; the session exits silently, no close frame is sent back.
	ClientClose
	// IdleTimeout is raised after 300s with no inbound message.
	IdleTimeout
	// InvalidMessage is raised when a binary frame fails to decode.
	InvalidMessage
	// UnsupportedMessage is raised for text or otherwise-unknown frames.
	UnsupportedMessage
	// OutOfBounds is raised when a window or magnet update fails validation,
	// or when a magnet update targets a nonexistent row.
	OutOfBounds
	// Transport is raised for socket read/write errors other than the
	// close/ping/pong cases above.
	Transport
	// PayloadTooLong is raised when a frame exceeds the transport's maximum
	// payload size.
	PayloadTooLong
	// Store is raised for unexpected store errors.
	Store
	// Other is raised for any unexpected internal error.
	Other
)

// Error wraps a Kind with the underlying cause, if any.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// CloseCode returns the WebSocket close-frame status code for e's kind and
// whether a close frame should be sent at all. ClientClose and RateLimited
// report ok=false: §7 sends no close frame for either.
func (e *Error) CloseCode() (code ws.StatusCode, ok bool) {
	switch e.Kind {
	case Shutdown:
		return ws.StatusServiceRestart, true
	case IdleTimeout:
		return ws.StatusGoingAway, true
	case InvalidMessage:
		return ws.StatusInvalidFramePayloadData, true
	case UnsupportedMessage:
		return ws.StatusUnsupportedData, true
	case OutOfBounds:
		return ws.StatusPolicyViolation, true
	case Transport:
		return ws.StatusAbnormalClosure, true
	case PayloadTooLong:
		return ws.StatusMessageTooBig, true
	case Store, Other:
		return ws.StatusInternalServerError, true
	case ClientClose, RateLimited:
		return 0, false
	default:
		return ws.StatusInternalServerError, true
	}
}

// LogLevel reports the zap-compatible log level name this kind is logged at,
// per the table in §7.
func (e *Error) LogLevel() string {
	switch e.Kind {
	case Store, Other:
		return "error"
	case RateLimited:
		return "warn"
	default:
		return "debug"
	}
}
