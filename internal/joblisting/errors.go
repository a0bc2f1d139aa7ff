package joblisting

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies fetch failures for the user-facing notices.
type Kind int

const (
	KindNetwork Kind = iota
	KindTimeout
	KindInvalidURL
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindInvalidURL:
		return "invalid url"
	default:
		return "network"
	}
}

type Error struct {
	Kind  Kind
	URL   string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is a fetch that ran past its deadline.
func IsTimeout(err error) bool {
	var fetchErr *Error
	return errors.As(err, &fetchErr) && fetchErr.Kind == KindTimeout
}

func classify(rawURL string, err error) *Error {
	kind := KindNetwork

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}

	return &Error{Kind: kind, URL: rawURL, Cause: err}
}
