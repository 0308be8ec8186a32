package extract

import (
	"fmt"
)

// State is the progress of a field that arrives incrementally.
//
// Progress only moves forward: Pending, Incomplete, Complete. Error can be
// reached from any state and is final.
type State int

const (
	Pending State = iota
	Incomplete
	Complete
	Error
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Incomplete:
		return "Incomplete"
	case Complete:
		return "Complete"
	case Error:
		return "Error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further progress is possible.
func (s State) Terminal() bool {
	return s == Complete || s == Error
}

// Advance returns the state after observing next. A state never moves
// backwards and Error absorbs everything.
func (s State) Advance(next State) State {
	if s == Error || next == Error {
		return Error
	}
	return max(s, next)
}

func (s State) MarshalText() ([]byte, error) {
	if s < Pending || s > Error {
		return nil, fmt.Errorf("extract: invalid state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	v, ok := ParseState(string(b))
	if !ok {
		return fmt.Errorf("extract: unknown state %q", b)
	}
	*s = v
	return nil
}

func ParseState(s string) (State, bool) {
	switch s {
	case "Pending":
		return Pending, true
	case "Incomplete":
		return Incomplete, true
	case "Complete":
		return Complete, true
	case "Error":
		return Error, true
	}
	return Pending, false
}

// StreamState wraps a value that may still be growing.
type StreamState[T any] struct {
	Value T     `json:"value"`
	State State `json:"state"`
}

// Get returns the value of a possibly absent field.
func (s *StreamState[T]) Get() T {
	var zero T
	if s == nil {
		return zero
	}
	return s.Value
}

// Done reports whether the field is present and terminal.
func (s *StreamState[T]) Done() bool {
	return s != nil && s.State.Terminal()
}
