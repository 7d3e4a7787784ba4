package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/vango-dev/atoms/pkg/atom"
)

// Category represents the type of error.
type Category string

const (
	CategoryRuntime  Category = "runtime"
	CategoryConfig   Category = "config"
	CategoryCLI      Category = "cli"
	CategoryScenario Category = "scenario"
)

// Location is a position in a config or scenario file.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// AtomError is a structured error with file location, suggestions, and documentation.
type AtomError struct {
	// Code is a unique error identifier (e.g., "A001").
	Code string

	// Category is the error type (runtime, config, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the file position the error refers to.
	Location *Location

	// Context contains the surrounding file lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Example shows the correct form.
	Example string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *AtomError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *AtomError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds source location to the error.
func (e *AtomError) WithLocation(file string, line, column int) *AtomError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *AtomError) WithSuggestion(s string) *AtomError {
	e.Suggestion = s
	return e
}

// WithExample adds a code example to the error.
func (e *AtomError) WithExample(ex string) *AtomError {
	e.Example = ex
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *AtomError) WithDetail(d string) *AtomError {
	e.Detail = d
	return e
}

// WithContext adds custom context lines to the error.
func (e *AtomError) WithContext(lines []string) *AtomError {
	e.Context = lines
	return e
}

// Wrap wraps another error.
func (e *AtomError) Wrap(err error) *AtomError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates an AtomError from a registered error code.
func New(code string) *AtomError {
	template, ok := registry[code]
	if !ok {
		return &AtomError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &AtomError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates an AtomError with a formatted message and no code.
func Newf(category Category, format string, args ...any) *AtomError {
	return &AtomError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err in an AtomError. Errors from the atom package get the
// code registered for them; anything else gets code.
func FromError(err error, code string) *AtomError {
	if err == nil {
		return nil
	}
	var ae *AtomError
	if stderrors.As(err, &ae) {
		return ae
	}
	if c := Classify(err); c != "" {
		code = c
	}
	e := New(code).Wrap(err)
	e.Detail = strings.TrimSpace(e.Detail + " " + err.Error())
	if hint, ok := hints[e.Code]; ok {
		e.Suggestion = hint
	}
	return e
}

// Classify returns the code registered for an atom package error, or "" when
// err is not one.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, atom.ErrCycle):
		return "A001"
	case stderrors.Is(err, atom.ErrInvalidWrite):
		return "A002"
	case stderrors.Is(err, atom.ErrFlushBudget):
		return "A004"
	case stderrors.Is(err, atom.ErrBlockingAwait):
		return "A005"
	case stderrors.Is(err, atom.ErrClosed):
		return "A006"
	case stderrors.Is(err, atom.ErrComputation):
		return "A003"
	}
	return ""
}
