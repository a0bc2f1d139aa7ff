package ai

import (
	"context"
	"iter"
	"strings"
)

// EventKind tells fragments apart from the terminal events of a Stream.
type EventKind int

const (
	EventFragment EventKind = iota + 1
	EventComplete
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventFragment:
		return "fragment"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one step of a Stream. Text is set for fragments, Err for errors.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Stream is a forward-only pull iterator over the text fragments of one model
// answer. It ends with exactly one Complete or Error event, which is repeated
// by every later call to Next. A Stream must be used by a single goroutine.
type Stream struct {
	provider string
	next     func() (string, error, bool)
	stop     func()
	cancel   context.CancelFunc
	terminal *Event
	yielded  bool
}

// NewStream starts a stream over the chunks produced by open. The context given
// to open is cancelled once the stream reaches its terminal event or is closed.
// Empty chunks are skipped. A stream that ends without any non-blank text fails
// with ErrEmptyResponse.
func NewStream(ctx context.Context, provider string, open func(ctx context.Context) iter.Seq2[string, error]) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	next, stop := iter.Pull2(open(ctx))

	return &Stream{
		provider: provider,
		next:     next,
		stop:     stop,
		cancel:   cancel,
	}
}

// FailedStream returns a stream whose only event is an error.
func FailedStream(ctx context.Context, provider string, err error) *Stream {
	return NewStream(ctx, provider, func(context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			yield("", err)
		}
	})
}

// Next blocks until the next event is available.
func (s *Stream) Next() Event {
	if s.terminal != nil {
		return *s.terminal
	}

	for {
		text, err, ok := s.next()
		switch {
		case !ok && !s.yielded:
			return s.finish(Event{Kind: EventError, Err: Wrap(s.provider, "stream", ErrEmptyResponse)})
		case !ok:
			return s.finish(Event{Kind: EventComplete})
		case err != nil:
			return s.finish(Event{Kind: EventError, Err: Wrap(s.provider, "stream", err)})
		case text == "":
			continue
		}

		if strings.TrimSpace(text) != "" {
			s.yielded = true
		}
		return Event{Kind: EventFragment, Text: text}
	}
}

// Close releases the underlying remote call. Closing an unfinished stream makes
// it terminate with ErrStreamClosed. Close is idempotent.
func (s *Stream) Close() {
	if s.terminal != nil {
		return
	}

	s.finish(Event{Kind: EventError, Err: Wrap(s.provider, "stream", ErrStreamClosed)})
}

func (s *Stream) finish(ev Event) Event {
	s.terminal = &ev
	s.stop()
	s.cancel()

	return ev
}

// Collect drains the stream, calling onFragment (when non-nil) for every
// fragment in arrival order, and returns the concatenated text. On error the
// partial text is discarded.
func Collect(s *Stream, onFragment func(string)) (string, error) {
	defer s.Close()

	var builder strings.Builder
	for {
		ev := s.Next()
		switch ev.Kind {
		case EventFragment:
			builder.WriteString(ev.Text)
			if onFragment != nil {
				onFragment(ev.Text)
			}
		case EventComplete:
			return builder.String(), nil
		default:
			return "", ev.Err
		}
	}
}
