package scenario

import (
	stderrors "errors"
	"fmt"
	"math"

	"github.com/vango-dev/atoms/internal/errors"
	"github.com/vango-dev/atoms/pkg/atom"
)

// ErrDivideByZero is the computation error of a div atom whose divisor is 0.
var ErrDivideByZero = stderrors.New("division by zero")

type opSpec struct {
	min, max int // operand count; max < 0 is unbounded
	needsBy  bool
}

var ops = map[string]opSpec{
	"sum":     {min: 1, max: -1},
	"product": {min: 1, max: -1},
	"min":     {min: 1, max: -1},
	"max":     {min: 1, max: -1},
	"scale":   {min: 1, max: 1, needsBy: true},
	"negate":  {min: 1, max: 1},
	"div":     {min: 2, max: 2},
}

// Program is a compiled scenario: one atom per declaration. The atoms are
// descriptors only, so a Program can run against any number of stores.
type Program struct {
	file   *File
	atoms  map[string]atom.Atom[float64]
	values map[string]*atom.Value[float64]
	order  []string
}

// Compile validates f and builds its atoms.
func Compile(f *File) (*Program, error) {
	p := &Program{
		file:   f,
		atoms:  make(map[string]atom.Atom[float64], len(f.Atoms)),
		values: make(map[string]*atom.Value[float64]),
	}

	for _, spec := range f.Atoms {
		if spec.Name == "" {
			return nil, p.errorAt("A160", spec.Line, spec.Column).
				WithDetail("Every atom needs a name")
		}
		if _, dup := p.atoms[spec.Name]; dup {
			return nil, p.errorAt("A162", spec.Line, spec.Column).
				WithDetail(fmt.Sprintf("%q is declared twice", spec.Name))
		}

		if spec.Primitive() {
			if len(spec.Of) > 0 || spec.By != nil {
				return nil, p.errorAt("A160", spec.Line, spec.Column).
					WithDetail(fmt.Sprintf("%q has operands but no op", spec.Name))
			}
			var initial float64
			if spec.Value != nil {
				initial = *spec.Value
			}
			v := atom.NewValue(initial).Named(spec.Name)
			p.values[spec.Name] = v
			p.atoms[spec.Name] = v
			p.order = append(p.order, spec.Name)
			continue
		}

		if spec.Value != nil {
			return nil, p.errorAt("A160", spec.Line, spec.Column).
				WithDetail(fmt.Sprintf("%q has both a value and an op", spec.Name))
		}
		op, ok := ops[spec.Op]
		if !ok {
			return nil, p.errorAt("A163", spec.Line, spec.Column).
				WithDetail(fmt.Sprintf("%q uses op %q", spec.Name, spec.Op))
		}
		if len(spec.Of) < op.min || (op.max >= 0 && len(spec.Of) > op.max) {
			return nil, p.errorAt("A160", spec.Line, spec.Column).
				WithDetail(fmt.Sprintf("%s takes %s, %q has %d", spec.Op, arity(op), spec.Name, len(spec.Of)))
		}
		if op.needsBy && spec.By == nil {
			return nil, p.errorAt("A160", spec.Line, spec.Column).
				WithDetail(fmt.Sprintf("%q needs a by factor", spec.Name))
		}

		operands := make([]atom.Atom[float64], len(spec.Of))
		for i, name := range spec.Of {
			a, ok := p.atoms[name]
			if !ok {
				return nil, p.errorAt("A161", spec.Line, spec.Column).
					WithDetail(fmt.Sprintf("%q reads %q", spec.Name, name)).
					WithSuggestion(fmt.Sprintf("declare %q before %q", name, spec.Name))
			}
			operands[i] = a
		}
		p.atoms[spec.Name] = derive(spec, operands)
		p.order = append(p.order, spec.Name)
	}

	for _, st := range f.Steps {
		switch st.Kind {
		case StepSet:
			for _, as := range st.Assign {
				if _, ok := p.atoms[as.Atom]; !ok {
					return nil, p.errorAt("A161", st.Line, st.Column).
						WithDetail(fmt.Sprintf("set targets %q", as.Atom))
				}
				if _, ok := p.values[as.Atom]; !ok {
					return nil, p.errorAt("A164", st.Line, st.Column).
						WithDetail(fmt.Sprintf("%q is derived and cannot be set", as.Atom))
				}
			}
		default:
			if _, ok := p.atoms[st.Atom]; !ok {
				return nil, p.errorAt("A161", st.Line, st.Column).
					WithDetail(fmt.Sprintf("%s targets %q", st.Kind, st.Atom))
			}
		}
	}
	return p, nil
}

func (p *Program) errorAt(code string, line, column int) *errors.AtomError {
	e := errors.New(code)
	if p.file.path != "" && line > 0 {
		e.WithLocation(p.file.path, line, column)
	}
	return e
}

func arity(op opSpec) string {
	switch {
	case op.max < 0:
		return fmt.Sprintf("at least %d operand(s)", op.min)
	case op.min == op.max:
		return fmt.Sprintf("exactly %d operand(s)", op.min)
	}
	return fmt.Sprintf("%d to %d operands", op.min, op.max)
}

func derive(spec AtomSpec, operands []atom.Atom[float64]) *atom.Computed[float64] {
	var by float64
	if spec.By != nil {
		by = *spec.By
	}
	return atom.NewComputed(func(get atom.Getter) (float64, error) {
		xs := make([]float64, len(operands))
		for i, o := range operands {
			v, err := atom.Get(get, o)
			if err != nil {
				return 0, err
			}
			xs[i] = v
		}
		return apply(spec.Op, by, xs)
	}).Named(spec.Name)
}

func apply(op string, by float64, xs []float64) (float64, error) {
	switch op {
	case "sum":
		var t float64
		for _, x := range xs {
			t += x
		}
		return t, nil
	case "product":
		t := 1.0
		for _, x := range xs {
			t *= x
		}
		return t, nil
	case "min":
		m := math.Inf(1)
		for _, x := range xs {
			m = math.Min(m, x)
		}
		return m, nil
	case "max":
		m := math.Inf(-1)
		for _, x := range xs {
			m = math.Max(m, x)
		}
		return m, nil
	case "scale":
		return xs[0] * by, nil
	case "negate":
		return -xs[0], nil
	case "div":
		if xs[1] == 0 {
			return 0, ErrDivideByZero
		}
		return xs[0] / xs[1], nil
	}
	return 0, fmt.Errorf("unknown op %q", op)
}

// Name returns the scenario name.
func (p *Program) Name() string { return p.file.Name }

// File returns the parsed scenario.
func (p *Program) File() *File { return p.file }

// Atom returns the atom declared as name.
func (p *Program) Atom(name string) (atom.Atom[float64], bool) {
	a, ok := p.atoms[name]
	return a, ok
}

// Value returns the primitive atom declared as name.
func (p *Program) Value(name string) (*atom.Value[float64], bool) {
	v, ok := p.values[name]
	return v, ok
}

// Names returns the atom names in declaration order.
func (p *Program) Names() []string {
	return append([]string(nil), p.order...)
}

// MountAll subscribes to every atom so the whole graph is mounted in s.
// The returned function releases the subscriptions.
func (p *Program) MountAll(s *atom.Store) (release func()) {
	unsubs := make([]func(), 0, len(p.order))
	for _, name := range p.order {
		unsubs = append(unsubs, s.Subscribe(p.atoms[name], nil))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
