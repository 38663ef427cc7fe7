package state

import "github.com/gnoswap-labs/symex/internal/analysis/cfg"

type ExceptionKind int

const (
	ExceptionNone ExceptionKind = iota
	ExceptionUnknown
	ExceptionKnown
)

// Exception is the exception marker of a path. A caught exception stays
// on the stack while its handler runs so that rethrow can restore it.
type Exception struct {
	Kind   ExceptionKind
	Type   *cfg.Type
	Caught bool
}

var (
	NoException      = Exception{}
	UnknownException = Exception{Kind: ExceptionUnknown}
)

// KnownException is an exception of type t.
func KnownException(t *cfg.Type) Exception {
	if t == nil {
		return UnknownException
	}
	return Exception{Kind: ExceptionKnown, Type: t}
}

// IsNone reports whether e marks no exception.
func (e Exception) IsNone() bool { return e.Kind == ExceptionNone }

func (e Exception) Equal(o Exception) bool {
	if e.Kind != o.Kind || e.Caught != o.Caught {
		return false
	}
	if e.Kind != ExceptionKnown {
		return true
	}
	return e.Type == o.Type || (e.Type != nil && o.Type != nil && e.Type.Name == o.Type.Name)
}

func (e Exception) String() string {
	var s string
	switch e.Kind {
	case ExceptionNone:
		return "None"
	case ExceptionUnknown:
		s = "Unknown"
	default:
		s = e.Type.String()
	}
	if e.Caught {
		s += " (caught)"
	}
	return s
}

func (s *ProgramState) top() (Exception, bool) {
	if len(s.exceptions) == 0 {
		return NoException, false
	}
	return s.exceptions[len(s.exceptions)-1], true
}

// Exception returns the exception in flight, or NoException.
func (s *ProgramState) Exception() Exception {
	e, ok := s.top()
	if !ok || e.Caught {
		return NoException
	}
	return e
}

// InException reports whether an exception is in flight.
func (s *ProgramState) InException() bool {
	return !s.Exception().IsNone()
}

// CaughtException returns the exception handled by the innermost active
// handler, or NoException.
func (s *ProgramState) CaughtException() Exception {
	e, ok := s.top()
	if !ok || !e.Caught {
		return NoException
	}
	e.Caught = false
	return e
}

func (s *ProgramState) withExceptions(es []Exception) *ProgramState {
	c := s.clone()
	c.exceptions = es
	return c
}

// PushException raises e. A new exception replaces one already in flight,
// as it does when a finally block throws.
func (s *ProgramState) PushException(e Exception) *ProgramState {
	if e.IsNone() {
		return s
	}
	e.Caught = false
	n := len(s.exceptions)
	if top, ok := s.top(); ok && !top.Caught {
		n--
	}
	es := make([]Exception, n, n+1)
	copy(es, s.exceptions[:n])
	return s.withExceptions(append(es, e))
}

// PopException removes the top of the exception stack.
func (s *ProgramState) PopException() *ProgramState {
	if len(s.exceptions) == 0 {
		return s
	}
	return s.withExceptions(s.exceptions[: len(s.exceptions)-1 : len(s.exceptions)-1])
}

// Catch marks the in-flight exception as handled, refined to t when the
// handler narrows it.
func (s *ProgramState) Catch(t *cfg.Type) *ProgramState {
	e := s.Exception()
	if e.IsNone() {
		return s
	}
	if t != nil && (e.Kind == ExceptionUnknown || t.DerivesFrom(e.Type)) {
		e = KnownException(t)
	}
	e.Caught = true
	es := make([]Exception, len(s.exceptions))
	copy(es, s.exceptions)
	es[len(es)-1] = e
	return s.withExceptions(es)
}

// DropCaught removes a handled exception when control leaves its handler.
func (s *ProgramState) DropCaught() *ProgramState {
	if top, ok := s.top(); ok && top.Caught {
		return s.PopException()
	}
	return s
}

// Rethrow puts the handled exception back in flight.
func (s *ProgramState) Rethrow() *ProgramState {
	top, ok := s.top()
	if !ok || !top.Caught {
		return s.PushException(UnknownException)
	}
	top.Caught = false
	es := make([]Exception, len(s.exceptions))
	copy(es, s.exceptions)
	es[len(es)-1] = top
	return s.withExceptions(es)
}
