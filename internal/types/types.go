package types

import "go/token"

// Issue is a diagnostic reported by an analysis pass.
type Issue struct {
	Rule     string
	Category string
	Filename string
	Message  string
	Note     string
	Start    token.Position
	End      token.Position
}

// Exit summarises one path that reached the end of a procedure.
type Exit struct {
	Threw     bool
	Exception string
	// Origin is where the exception was raised. It is the zero position
	// for normal exits or when the raising operation has no position.
	Origin token.Position
	Return string
	State  string
}

// Report is the exploration outcome of one procedure.
type Report struct {
	Filename string
	Func     string
	Start    token.Position
	End      token.Position
	Status   string
	Steps    int
	Exits    []Exit
}

// Completed reports whether every path of the procedure was explored.
func (r Report) Completed() bool { return r.Status == "completed" }

// Thrown returns the exits that leave with an exception.
func (r Report) Thrown() []Exit {
	var out []Exit
	for _, e := range r.Exits {
		if e.Threw {
			out = append(out, e)
		}
	}
	return out
}
