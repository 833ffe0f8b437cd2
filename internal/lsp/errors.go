package lsp

import (
	"errors"
	"fmt"
)

// Sentinel errors for session and capability failures. Callers match with
// errors.Is; the typed errors below wrap these where more context exists.
var (
	// ErrServerNotInstalled means the configured server binary was not
	// found on PATH.
	ErrServerNotInstalled = errors.New("language server not installed")

	// ErrSessionTerminated means the session was shut down and can no
	// longer carry requests.
	ErrSessionTerminated = errors.New("session terminated")

	// ErrTooManyCrashes means the server crashed again after its single
	// allowed restart.
	ErrTooManyCrashes = errors.New("language server crashed twice")

	// ErrUnsupportedCapability means the server did not advertise the
	// capability needed for an optional request. Callers degrade by
	// omitting the enrichment instead of failing.
	ErrUnsupportedCapability = errors.New("capability not supported by server")
)

// SpawnError reports that a server executable is missing or its process
// exited before completing the initialize handshake. Fatal for that
// language's portion of the run.
type SpawnError struct {
	Language string
	Command  string
	Err      error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("cannot start %s language server (%s): %v", e.Language, e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// FailureReason classifies a ProtocolError.
type FailureReason int

const (
	// ReasonTimeout: the request exceeded its deadline. Recovered per
	// request; siblings are unaffected.
	ReasonTimeout FailureReason = iota + 1

	// ReasonMalformedMessage: the server sent bytes that could not be
	// framed or parsed. Fatal for the session.
	ReasonMalformedMessage

	// ReasonServerCrashed: the server process exited with requests still
	// in flight. Recovered once via restart; fatal on repeat.
	ReasonServerCrashed
)

func (r FailureReason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonMalformedMessage:
		return "malformed message"
	case ReasonServerCrashed:
		return "server crashed"
	default:
		return "unknown"
	}
}

// ProtocolError is a per-request or per-session transport failure.
type ProtocolError struct {
	Reason FailureReason
	Method string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("protocol error: %s", e.Reason)
	}
	return fmt.Sprintf("request %s: %s", e.Method, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// SessionFailedError marks a language's analysis as aborted: the session
// is unusable and remaining requests for it must not be retried.
type SessionFailedError struct {
	Language string
	Err      error
}

func (e *SessionFailedError) Error() string {
	return fmt.Sprintf("analysis aborted for %s: %v", e.Language, e.Err)
}

func (e *SessionFailedError) Unwrap() error { return e.Err }

// IsCrash reports whether err is a ProtocolError caused by a server crash.
func IsCrash(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr) && perr.Reason == ReasonServerCrashed
}

// IsTimeout reports whether err is a ProtocolError caused by a request
// timeout.
func IsTimeout(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr) && perr.Reason == ReasonTimeout
}

// IsMalformed reports whether a malformed message appears anywhere in
// err's chain. The manual walk matters: when the reader loop dies on
// unparseable bytes, pending requests surface as ServerCrashed wrapping
// the MalformedMessage cause, and errors.As would stop at the outer
// ProtocolError.
func IsMalformed(err error) bool {
	for err != nil {
		if perr, ok := err.(*ProtocolError); ok && perr.Reason == ReasonMalformedMessage {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// ResponseError is the error object of a JSON-RPC response.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// JSON-RPC error codes the engine cares about. codeConnectionClosed is a
// synthetic code in the implementation-reserved range used to fail pending
// requests when the connection dies.
const (
	codeParseError       = -32700
	codeMethodNotFound   = -32601
	codeConnectionClosed = -32099
)

// IsMethodNotFound reports whether err is the server rejecting an unknown
// method, which is treated like a missing capability.
func IsMethodNotFound(err error) bool {
	var rerr *ResponseError
	return errors.As(err, &rerr) && rerr.Code == codeMethodNotFound
}
