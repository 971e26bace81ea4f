// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// UpstreamError reports a failed call to one upstream provider. Status is
// the HTTP status code, or 0 for transport-level failures (timeout,
// connection reset) where no response arrived.
type UpstreamError struct {
	Source  string
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Source, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Source, e.Status)
	default:
		return fmt.Sprintf("%s: %s", e.Source, e.Message)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Transient reports whether retrying could plausibly succeed: rate limits,
// server-side errors, and transport failures. Client errors (4xx other than
// 429) are permanent; retrying a malformed query wastes attempts.
func (e *UpstreamError) Transient() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// IsTransient classifies an error for the retry executor. Timeouts,
// connection resets and truncated responses count as transient alongside
// transient UpstreamErrors. Whether the surrounding context is still alive
// is the executor's concern, not the classifier's.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Transient()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}
