// Package ai defines the language model gateway used by the advisor.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// SystemInstruction is sent with every request, regardless of provider.
const SystemInstruction = "You are a helpful jobs application assessment expert."

var (
	ErrEmptyPrompt   = errors.New("prompt must not be empty")
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrStreamClosed terminates a stream closed by its consumer before completion.
	ErrStreamClosed = errors.New("stream closed")
)

// Generator sends a prompt to a hosted model, either waiting for the whole
// answer or streaming it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string) *Stream
	Model() string
}

// Error wraps every failure coming out of a Generator.
type Error struct {
	Op       string
	Provider string
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the call ran past its deadline.
func (e *Error) Timeout() bool {
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(e.Cause, &netErr) && netErr.Timeout()
}

// IsTimeout reports whether err is a model call that ran past its deadline.
func IsTimeout(err error) bool {
	var aiErr *Error
	return errors.As(err, &aiErr) && aiErr.Timeout()
}

// Wrap returns err as an *Error for provider and op. Errors that already are
// an *Error are returned unchanged.
func Wrap(provider, op string, err error) error {
	if err == nil {
		return nil
	}

	var aiErr *Error
	if errors.As(err, &aiErr) {
		return err
	}

	return &Error{Op: op, Provider: provider, Cause: err}
}

// Unavailable is used when a provider cannot be configured, usually because of
// a missing API key. Every call fails with Cause.
type Unavailable struct {
	Provider string
	Cause    error
}

func (u Unavailable) Generate(context.Context, string) (string, error) {
	return "", &Error{Op: "generate", Provider: u.Provider, Cause: u.Cause}
}

func (u Unavailable) GenerateStream(ctx context.Context, _ string) *Stream {
	return FailedStream(ctx, u.Provider, u.Cause)
}

func (u Unavailable) Model() string {
	return ""
}
