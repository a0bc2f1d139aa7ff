// Package gate admits at most one model request per session at a time.
package gate

import (
	"errors"
	"fmt"
	"sync"
)

type State int

const (
	Idle State = iota
	Busy
)

func (s State) String() string {
	if s == Busy {
		return "busy"
	}
	return "idle"
}

type Event int

const (
	Submit Event = iota
	Succeeded
	Failed
)

func (e Event) String() string {
	switch e {
	case Submit:
		return "submit"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

var (
	// ErrRejected is returned for a submission while a request is in flight.
	ErrRejected = errors.New("already processing a request")
	ErrNotBusy  = errors.New("no request in flight")
)

// Transition returns the state after ev. On error the returned state equals s.
func Transition(s State, ev Event) (State, error) {
	switch ev {
	case Submit:
		if s == Busy {
			return s, ErrRejected
		}
		return Busy, nil
	case Succeeded, Failed:
		if s != Busy {
			return s, ErrNotBusy
		}
		return Idle, nil
	default:
		return s, fmt.Errorf("unknown event %s", ev)
	}
}

// Gate applies Transition under a mutex. The zero value is an idle gate.
type Gate struct {
	mu    sync.Mutex
	state State
}

// Enter admits the caller or fails with ErrRejected. An admitted caller must
// call Leave exactly once.
func (g *Gate) Enter() error {
	return g.apply(Submit)
}

// Leave reports the outcome of the admitted request and reopens the gate.
func (g *Gate) Leave(ok bool) {
	ev := Failed
	if ok {
		ev = Succeeded
	}
	_ = g.apply(ev)
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) apply(ev Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	next, err := Transition(g.state, ev)
	if err != nil {
		return err
	}
	g.state = next
	return nil
}
