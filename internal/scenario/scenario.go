package scenario

import (
	stderrors "errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/atoms/internal/errors"
)

// StepKind identifies what a step does.
type StepKind string

const (
	StepGet         StepKind = "get"
	StepSet         StepKind = "set"
	StepSubscribe   StepKind = "subscribe"
	StepUnsubscribe StepKind = "unsubscribe"
)

// File is a parsed scenario file.
type File struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Atoms       []AtomSpec `yaml:"atoms"`
	Steps       []Step     `yaml:"steps"`

	path string
}

// Path returns the file the scenario was parsed from.
func (f *File) Path() string { return f.path }

// AtomSpec declares one atom.
type AtomSpec struct {
	Name  string   `yaml:"name"`
	Value *float64 `yaml:"value"`
	Op    string   `yaml:"op"`
	Of    []string `yaml:"of"`
	By    *float64 `yaml:"by"`

	Line   int `yaml:"-"`
	Column int `yaml:"-"`
}

// UnmarshalYAML records where the atom was declared.
func (a *AtomSpec) UnmarshalYAML(value *yaml.Node) error {
	type plain AtomSpec
	if err := value.Decode((*plain)(a)); err != nil {
		return err
	}
	a.Line, a.Column = value.Line, value.Column
	return nil
}

// Primitive reports whether the atom holds a value rather than deriving one.
func (a AtomSpec) Primitive() bool { return a.Op == "" }

// Assignment is one atom = value pair of a set step.
type Assignment struct {
	Atom  string
	Value float64
}

// Step is one scripted store operation.
type Step struct {
	Kind StepKind

	// Atom is the target of get, subscribe and unsubscribe.
	Atom string

	// Assign holds the writes of a set step in file order.
	Assign []Assignment

	Line   int
	Column int
}

// UnmarshalYAML decodes a single-key mapping such as {get: total} or
// {set: {a: 1, b: 2}}, keeping set assignments in file order.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	s.Line, s.Column = value.Line, value.Column
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return &locError{line: value.Line, column: value.Column, code: "A164"}
	}
	key, val := value.Content[0], value.Content[1]
	s.Kind = StepKind(key.Value)

	switch s.Kind {
	case StepGet, StepSubscribe, StepUnsubscribe:
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return &locError{line: val.Line, column: val.Column, code: "A164",
				detail: fmt.Sprintf("%s expects an atom name", key.Value)}
		}
		s.Atom = val.Value
	case StepSet:
		if val.Kind != yaml.MappingNode || len(val.Content) == 0 {
			return &locError{line: val.Line, column: val.Column, code: "A164",
				detail: "set expects a mapping of atom names to numbers"}
		}
		for i := 0; i+1 < len(val.Content); i += 2 {
			var v float64
			if err := val.Content[i+1].Decode(&v); err != nil {
				return &locError{line: val.Content[i+1].Line, column: val.Content[i+1].Column, code: "A164",
					detail: fmt.Sprintf("value for %s is not a number", val.Content[i].Value)}
			}
			s.Assign = append(s.Assign, Assignment{Atom: val.Content[i].Value, Value: v})
		}
	default:
		return &locError{line: key.Line, column: key.Column, code: "A164",
			detail: fmt.Sprintf("unknown step %q", key.Value)}
	}
	return nil
}

// locError carries a position out of yaml decoding, where the file name is
// not known.
type locError struct {
	line, column int
	code         string
	detail       string
}

func (e *locError) Error() string {
	return fmt.Sprintf("line %d: %s", e.line, e.detail)
}

var yamlLineRe = regexp.MustCompile(`line (\d+):`)

// Load reads and parses a scenario file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("A140").
			WithDetail("Cannot read " + path).
			Wrap(err)
	}
	return Parse(path, data)
}

// Parse parses scenario data. name is used in error locations.
func Parse(name string, data []byte) (*File, error) {
	f := &File{path: name}
	if err := yaml.Unmarshal(data, f); err != nil {
		var le *locError
		if stderrors.As(err, &le) {
			e := errors.New(le.code).WithLocation(name, le.line, le.column)
			if le.detail != "" {
				e.WithSuggestion(le.detail)
			}
			return nil, e
		}
		e := errors.New("A160").WithDetail(err.Error())
		if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
			line, _ := strconv.Atoi(m[1])
			e.WithLocation(name, line, 0)
		}
		return nil, e
	}
	if len(f.Atoms) == 0 {
		return nil, errors.New("A160").
			WithDetail(name + " declares no atoms")
	}
	return f, nil
}
