package models

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why processing a site for an address failed
type Kind int

const (
	KindUnknown Kind = iota
	// KindGeocodeUnavailable means the address or a candidate could not be geocoded
	KindGeocodeUnavailable
	// KindNoMatch means no candidate was within the acceptance distance
	KindNoMatch
	// KindNavigation means the renderer could not reach the page
	KindNavigation
	// KindRenderTimeout means the page loaded but its wait condition never held
	KindRenderTimeout
	// KindPropertyNotFound means the site reports no such property at the URL
	KindPropertyNotFound
	// KindParse means the page rendered but its price nodes were malformed
	KindParse
	// KindTimeout means the per-site deadline was exceeded
	KindTimeout
	// KindCanceled means the caller abandoned the request
	KindCanceled
)

var kindNames = map[Kind]string{
	KindUnknown:            "Unknown",
	KindGeocodeUnavailable: "GeocodeUnavailable",
	KindNoMatch:            "NoMatch",
	KindNavigation:         "NavigationError",
	KindRenderTimeout:      "RenderTimeout",
	KindPropertyNotFound:   "PropertyNotFound",
	KindParse:              "ParseError",
	KindTimeout:            "Timeout",
	KindCanceled:           "Canceled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText renders the kind by name in JSON output
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown failure kind %q", b)
}

// Transient reports whether a failure of this kind may succeed on another attempt
func (k Kind) Transient() bool {
	switch k {
	case KindGeocodeUnavailable, KindNavigation, KindRenderTimeout:
		return true
	}
	return false
}

// Error is a classified failure for one unit of work
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Sentinels usable with errors.Is; they match any *Error of the same kind.
var (
	ErrGeocodeUnavailable = &Error{Kind: KindGeocodeUnavailable}
	ErrNoMatch            = &Error{Kind: KindNoMatch}
	ErrNavigation         = &Error{Kind: KindNavigation}
	ErrRenderTimeout      = &Error{Kind: KindRenderTimeout}
	ErrPropertyNotFound   = &Error{Kind: KindPropertyNotFound}
	ErrParse              = &Error{Kind: KindParse}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrCanceled           = &Error{Kind: KindCanceled}
)

// Errorf builds a classified error. A %w verb in format is honoured.
func Errorf(kind Kind, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Msg: wrapped.Error(), Err: errors.Unwrap(wrapped)}
}

// Wrap classifies err under kind with a short message
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil && !containsErr(e.Msg, e.Err):
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

func containsErr(msg string, err error) bool {
	s := err.Error()
	return len(msg) >= len(s) && msg[len(msg)-len(s):] == s
}

// KindOf extracts the failure kind of err. Context errors that were never
// classified map to Timeout and Canceled.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindUnknown
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	return KindOf(err).Transient()
}

// Classify returns err as an *Error, classifying bare errors under fallback
func Classify(err error, fallback Kind) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	kind := KindOf(err)
	if kind == KindUnknown {
		kind = fallback
	}
	return &Error{Kind: kind, Err: err}
}
