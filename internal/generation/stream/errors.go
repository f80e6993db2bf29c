package stream

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoTerminalFrame means the body ended before a complete or error frame.
	ErrNoTerminalFrame = errors.New("stream ended without a terminal frame")
	ErrUnknownFrame    = errors.New("unknown frame type")
	ErrLineTooLong     = errors.New("frame exceeds max line size")
)

// DecodeError describes one skipped line. It is never fatal to the stream.
type DecodeError struct {
	Line int
	Raw  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "stream decode error"
	}
	return fmt.Sprintf("stream decode error: line=%d raw=%q: %v", e.Line, e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RemoteError is a terminal error frame sent by the generator.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "unspecified"
	}
	return "generator error: " + msg
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
