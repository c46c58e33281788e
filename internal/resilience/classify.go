// Package resilience decides which faults are worth retrying and how long to wait between attempts.
package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

// Class is the retry verdict for a fault.
type Class int

const (
	Fatal Class = iota
	Retryable
)

func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "fatal"
}

// Classify maps a task fault to a retry verdict. Unrecognised faults are fatal.
func Classify(err error) Class {
	if err == nil {
		return Fatal
	}
	if errors.Is(err, context.Canceled) {
		return Fatal
	}
	if _, ok := domain.AsBlockedError(err); ok {
		return Fatal
	}
	if _, ok := domain.AsMalformedURLError(err); ok {
		return Fatal
	}
	if _, ok := domain.AsUnknownMarketError(err); ok {
		return Fatal
	}
	if _, ok := domain.AsHeaderParseError(err); ok {
		return Fatal
	}
	if se, ok := domain.AsScriptError(err); ok {
		if se.Detached {
			return Retryable
		}
		return Fatal
	}
	if _, ok := domain.AsTimeoutError(err); ok {
		return Retryable
	}
	if _, ok := domain.AsNavigationError(err); ok {
		return Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, domain.ErrNoPage) {
		return Retryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable
	}
	return Fatal
}
