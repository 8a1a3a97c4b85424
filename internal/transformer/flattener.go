package transformer

import (
	"fmt"
	"math/rand"

	"github.com/whit3rabbit/pymixer/internal/astutil"
	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/pyast"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
)

// UnsupportedConstructError reports a construct a pass cannot transform. The
// enclosing subtree passes through unchanged and processing continues.
type UnsupportedConstructError struct {
	Construct string
	Context   string
	Pos       pyast.Pos
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("%d:%d: %s in %s left untransformed", e.Pos.Line, e.Pos.Col, e.Construct, e.Context)
}

// Flattener rewrites eligible function bodies into a state-variable dispatch
// loop. Statement order is preserved: each statement gets a state label, and
// every dispatch arm ends by assigning the label of its successor. The
// terminal arm assigns -1, which exits the loop. A few arms carry labels the
// state variable never takes, filled with junk assignments.
type Flattener struct {
	Cfg       *config.ControlFlowConfig
	Rng       *rand.Rand
	Scrambler *scrambler.Scrambler

	counter     int
	junkCounter int
	flattened   int
	warnings    []error
}

// NewFlattener builds the pass from its config section.
func NewFlattener(cfg *config.ControlFlowConfig, rng *rand.Rand, scr *scrambler.Scrambler) *Flattener {
	return &Flattener{Cfg: cfg, Rng: rng, Scrambler: scr}
}

// Count returns the number of functions flattened.
func (f *Flattener) Count() int { return f.flattened }

// Warnings returns the constructs that exempted functions from flattening.
func (f *Flattener) Warnings() []error { return f.warnings }

// Apply flattens every eligible function body in mod.
func (f *Flattener) Apply(mod *pyast.Module) error {
	var err error
	pyast.Inspect(mod, func(n pyast.Node) bool {
		if err != nil {
			return false
		}
		if fn, ok := n.(*pyast.FunctionDef); ok {
			if flatErr := f.flattenFunc(fn); flatErr != nil {
				err = flatErr
			}
		}
		return true
	})
	return err
}

func (f *Flattener) flattenFunc(fn *pyast.FunctionDef) error {
	body := fn.Body
	start := 0
	if astutil.IsDocstring(body, 0) {
		start = 1
	}
	stmts := body[start:]
	if len(stmts) < f.Cfg.MinStatements {
		return nil
	}
	if construct, pos, ok := f.exemption(stmts); ok {
		f.warnings = append(f.warnings, &UnsupportedConstructError{
			Construct: construct,
			Context:   fmt.Sprintf("function %q", fn.Name),
			Pos:       pos,
		})
		return nil
	}

	f.counter++
	stateVar, err := f.Scrambler.Scramble(fmt.Sprintf("state$%d", f.counter))
	if err != nil {
		return err
	}

	// Distinct non-negative labels in random order; drawing from a range four
	// times the arm count keeps the numbering sparse. The surplus of the
	// permutation supplies labels the state variable never takes.
	perm := f.Rng.Perm(len(stmts) * 4)
	labels := make([]int64, len(stmts))
	for i, v := range perm[:len(stmts)] {
		labels[i] = int64(v)
	}
	spare := perm[len(stmts):]

	type arm struct {
		label int64
		body  []pyast.Stmt
	}
	arms := make([]arm, len(stmts))
	for i, s := range stmts {
		next := int64(-1)
		if i+1 < len(stmts) {
			next = labels[i+1]
		}
		arms[i] = arm{labels[i], []pyast.Stmt{s, astutil.Assign(stateVar, astutil.Int(next))}}
	}

	// One or two junk arms at spare labels. They are unreachable, but each
	// chains to another spare label so the dispatch graph reads as live.
	junk := 1 + f.Rng.Intn(2)
	for j := 0; j < junk && len(spare) > 1; j++ {
		junkArm, err := f.junkArm(stateVar, int64(spare[j]), int64(spare[len(spare)-1-j]))
		if err != nil {
			return err
		}
		at := f.Rng.Intn(len(arms) + 1)
		arms = append(arms, arm{})
		copy(arms[at+1:], arms[at:])
		arms[at] = arm{int64(spare[j]), junkArm}
	}

	var dispatch pyast.Stmt
	for i := len(arms) - 1; i >= 0; i-- {
		node := &pyast.If{
			Cond: astutil.Compare(astutil.Load(stateVar), "==", astutil.Int(arms[i].label)),
			Body: arms[i].body,
		}
		if dispatch != nil {
			node.Else = []pyast.Stmt{dispatch}
		}
		dispatch = node
	}

	loop := &pyast.While{
		Cond: astutil.Compare(astutil.Load(stateVar), ">=", astutil.Int(0)),
		Body: []pyast.Stmt{dispatch},
	}

	newBody := make([]pyast.Stmt, 0, start+2)
	newBody = append(newBody, body[:start]...)
	newBody = append(newBody, astutil.Assign(stateVar, astutil.Int(labels[0])), loop)
	fn.Body = newBody
	f.flattened++
	return nil
}

// junkArm builds the body of an unreachable dispatch arm: a synthetic
// assignment followed by a transition to another never-taken label.
func (f *Flattener) junkArm(stateVar string, label, next int64) ([]pyast.Stmt, error) {
	f.junkCounter++
	name, err := f.Scrambler.Scramble(fmt.Sprintf("flat$%d", f.junkCounter))
	if err != nil {
		return nil, err
	}
	return []pyast.Stmt{
		astutil.Assign(name, astutil.BinOp(astutil.Int(label), "*", astutil.Int(int64(f.Rng.Intn(40)+2)))),
		astutil.Assign(stateVar, astutil.Int(next)),
	}, nil
}

// exemption reports the first construct that makes a body ineligible:
// generators, try statements, scope declarations, and nested definitions.
// Constructs inside nested functions or lambdas do not count against the
// enclosing body.
func (f *Flattener) exemption(stmts []pyast.Stmt) (string, pyast.Pos, bool) {
	for _, top := range stmts {
		switch top.(type) {
		case *pyast.FunctionDef:
			return "nested function definition", top.Position(), true
		case *pyast.ClassDef:
			return "nested class definition", top.Position(), true
		}
	}
	var construct string
	var pos pyast.Pos
	for _, top := range stmts {
		if construct != "" {
			break
		}
		pyast.Inspect(top, func(n pyast.Node) bool {
			if construct != "" {
				return false
			}
			switch node := n.(type) {
			case *pyast.FunctionDef, *pyast.Lambda:
				return false
			case *pyast.Yield:
				construct, pos = "yield expression", node.Pos
				return false
			case *pyast.Try:
				construct, pos = "try statement", node.Pos
				return false
			case *pyast.Global:
				construct, pos = "global declaration", node.Pos
				return false
			case *pyast.Nonlocal:
				construct, pos = "nonlocal declaration", node.Pos
				return false
			}
			return true
		})
	}
	return construct, pos, construct != ""
}
