package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoPage is returned when the page pool cannot hand out a page.
var ErrNoPage = errors.New("no browser page available")

// NavigationError reports a failed or timed-out page navigation.
type NavigationError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *NavigationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("navigation to %s timed out", e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigation to %s failed", e.URL)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ScriptError reports a failed script evaluation or element interaction.
type ScriptError struct {
	Op       string
	Selector string
	Detached bool
	Err      error
}

func (e *ScriptError) Error() string {
	msg := "script " + e.Op + " failed"
	if e.Selector != "" {
		msg += " (selector=" + e.Selector + ")"
	}
	if e.Detached {
		msg += ": element detached"
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ScriptError) Unwrap() error { return e.Err }

// HeaderParseError reports an event header that could not be read.
type HeaderParseError struct {
	URL    string
	Reason string
	Err    error
}

func (e *HeaderParseError) Error() string {
	msg := fmt.Sprintf("event header for %s unreadable", e.URL)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HeaderParseError) Unwrap() error { return e.Err }

// OddsFormatError reports a single odds cell whose text is not a decimal price.
type OddsFormatError struct {
	Raw string
}

func (e *OddsFormatError) Error() string {
	return fmt.Sprintf("invalid odds value %q", e.Raw)
}

// UnknownMarketError reports a market key that was never registered for the sport.
// All is set when every requested market for a task was unknown.
type UnknownMarketError struct {
	Sport Sport
	Keys  []string
	All   bool
}

func (e *UnknownMarketError) Error() string {
	return fmt.Sprintf("unknown market %s for sport %s", strings.Join(e.Keys, ","), e.Sport)
}

// TimeoutError reports a task attempt that outlived its deadline.
type TimeoutError struct {
	Stage    TaskState
	Deadline time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("task timed out after %s in %s", e.Deadline, e.Stage)
	}
	return fmt.Sprintf("task timed out after %s", e.Deadline)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// StorageError reports a persistence failure for one match result.
type StorageError struct {
	Sink    string
	MatchID string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for match %s: %v", e.Sink, e.MatchID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// BlockedError reports an explicit denial from the site (captcha, 403, ban page).
type BlockedError struct {
	URL    string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("access to %s denied: %s", e.URL, e.Reason)
}

// MalformedURLError reports a match URL the harvester cannot derive an id from.
type MalformedURLError struct {
	URL    string
	Reason string
}

func (e *MalformedURLError) Error() string {
	return fmt.Sprintf("malformed match url %q: %s", e.URL, e.Reason)
}

// AsNavigationError attempts to unwrap an error into a NavigationError.
func AsNavigationError(err error) (*NavigationError, bool) {
	var target *NavigationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsScriptError attempts to unwrap an error into a ScriptError.
func AsScriptError(err error) (*ScriptError, bool) {
	var target *ScriptError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsHeaderParseError attempts to unwrap an error into a HeaderParseError.
func AsHeaderParseError(err error) (*HeaderParseError, bool) {
	var target *HeaderParseError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsOddsFormatError attempts to unwrap an error into an OddsFormatError.
func AsOddsFormatError(err error) (*OddsFormatError, bool) {
	var target *OddsFormatError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsUnknownMarketError attempts to unwrap an error into an UnknownMarketError.
func AsUnknownMarketError(err error) (*UnknownMarketError, bool) {
	var target *UnknownMarketError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsTimeoutError attempts to unwrap an error into a TimeoutError.
func AsTimeoutError(err error) (*TimeoutError, bool) {
	var target *TimeoutError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsStorageError attempts to unwrap an error into a StorageError.
func AsStorageError(err error) (*StorageError, bool) {
	var target *StorageError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsBlockedError attempts to unwrap an error into a BlockedError.
func AsBlockedError(err error) (*BlockedError, bool) {
	var target *BlockedError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsMalformedURLError attempts to unwrap an error into a MalformedURLError.
func AsMalformedURLError(err error) (*MalformedURLError, bool) {
	var target *MalformedURLError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
