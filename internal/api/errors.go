package api

import (
	"errors"
	"fmt"
)

// Kind classifies a broker API failure. The set is closed: callers switch
// on kinds rather than on message text.
type Kind int

const (
	// KindValidation means the caller supplied bad input.
	KindValidation Kind = iota + 1

	// KindConfiguration means a required setting is missing.
	KindConfiguration

	// KindUpstream means the broker returned a non-success status or an
	// otherwise unusable response.
	KindUpstream

	// KindCatalogFetch means the instrument catalog could not be fetched,
	// decompressed, or parsed.
	KindCatalogFetch

	// KindResponseFormat means an expected field was missing from an
	// otherwise successful response.
	KindResponseFormat
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindUpstream:
		return "upstream"
	case KindCatalogFetch:
		return "catalog_fetch"
	case KindResponseFormat:
		return "response_format"
	default:
		return "unknown"
	}
}

// Error is a structured broker API error. StatusCode and Body are set for
// upstream failures that carry an HTTP response. Messages never contain
// secrets or bearer tokens.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Body       []byte

	cause error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}

func newError(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg}
}

func wrapError(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, cause: cause}
}

func upstreamError(status int, body []byte, msg string) *Error {
	return &Error{Kind: KindUpstream, Message: msg, StatusCode: status, Body: body}
}
