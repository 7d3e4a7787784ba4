package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/vango-dev/atoms/pkg/atom"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "runtime error",
			code:    "A001",
			wantMsg: "Circular dependency detected",
			wantCat: CategoryRuntime,
		},
		{
			name:    "config error",
			code:    "A120",
			wantMsg: "Invalid configuration file",
			wantCat: CategoryConfig,
		},
		{
			name:    "scenario error",
			code:    "A161",
			wantMsg: "Unknown atom",
			wantCat: CategoryScenario,
		},
		{
			name:    "unknown error code",
			code:    "A999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryScenario, "step %d failed", 3)
	if err.Message != "step 3 failed" {
		t.Errorf("Message = %q, want %q", err.Message, "step 3 failed")
	}
	if err.Error() != "step 3 failed" {
		t.Errorf("Error() = %q, want %q", err.Error(), "step 3 failed")
	}
}

func TestAtomError_Error(t *testing.T) {
	got := New("A002").Error()
	want := "A002: Attempted to set a read-only atom"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAtomError_WithLocation(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "scenario.yaml")
	content := `name: demo
atoms:
  - {name: count, value: 0}
  - {name: doubled, op: scale, of: [cuont], by: 2}
steps:
  - get: doubled
`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	err := New("A161").WithLocation(tmpFile, 4, 36)
	if err.Location == nil || err.Location.Line != 4 || err.Location.Column != 36 {
		t.Fatalf("unexpected location %+v", err.Location)
	}
	if len(err.Context) == 0 {
		t.Error("Context should not be empty")
	}
	if !strings.Contains(strings.Join(err.Context, "\n"), "cuont") {
		t.Errorf("Context should include the offending line, got %v", err.Context)
	}
}

func TestAtomError_Builders(t *testing.T) {
	inner := stderrors.New("inner")
	err := New("A165").
		WithSuggestion("check the divisor").
		WithExample("- set: {divisor: 2}").
		WithDetail("custom detail").
		Wrap(inner)

	if err.Suggestion != "check the divisor" || err.Example != "- set: {divisor: 2}" || err.Detail != "custom detail" {
		t.Errorf("builders not applied: %+v", err)
	}
	if !stderrors.Is(err, inner) {
		t.Error("expected Unwrap to expose the wrapped error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "A165") != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	ae := New("A160")
	if FromError(fmt.Errorf("loading: %w", ae), "A165") != ae {
		t.Error("FromError should return a wrapped AtomError as-is")
	}

	plain := stderrors.New("disk full")
	if got := FromError(plain, "A140"); got.Code != "A140" || got.Wrapped != plain {
		t.Errorf("expected fallback code A140 wrapping the error, got %+v", got)
	}
}

func TestClassify(t *testing.T) {
	s := atom.NewStore()
	var loop *atom.Computed[int]
	loop = atom.NewComputed(func(get atom.Getter) (int, error) { return atom.Get(get, loop) })
	_, cycleErr := atom.Get(s, loop)

	readOnly := atom.NewWritable[int, int](func(atom.Getter) (int, error) { return 0, nil }, nil)
	writeErr := atom.Write(s, readOnly, 1)

	failing := atom.NewComputed(func(atom.Getter) (int, error) { return 0, stderrors.New("boom") })
	_, compErr := atom.Get(s, failing)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"cycle", cycleErr, "A001"},
		{"invalid write", writeErr, "A002"},
		{"computation", compErr, "A003"},
		{"flush budget", atom.ErrFlushBudget, "A004"},
		{"blocking await", atom.ErrBlockingAwait, "A005"},
		{"closed", &atom.ComputationError{Atom: "user", Err: atom.ErrClosed}, "A006"},
		{"other", stderrors.New("other"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}

	got := FromError(cycleErr, "A165")
	if got.Code != "A001" || got.Suggestion == "" {
		t.Errorf("expected A001 with a hint, got %+v", got)
	}
	if !strings.Contains(got.Detail, "circular dependency") {
		t.Errorf("expected the cause in the detail, got %q", got.Detail)
	}
}

func TestLocation_String(t *testing.T) {
	tests := []struct {
		name string
		loc  *Location
		want string
	}{
		{"nil location", nil, ""},
		{"with column", &Location{File: "demo.yaml", Line: 10, Column: 5}, "demo.yaml:10:5"},
		{"without column", &Location{File: "demo.yaml", Line: 10}, "demo.yaml:10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	err := New("A001").
		WithSuggestion("break the cycle").
		WithExample("total := atom.NewComputed(...)")
	formatted := err.Render(lipgloss.NewRenderer(&buf))

	for _, want := range []string{"ERROR A001:", "Circular dependency detected", "Hint: break the cycle", "Example:", "Learn more:"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Render should contain %q:\n%s", want, formatted)
		}
	}
	if strings.Contains(formatted, "\x1b[") {
		t.Errorf("expected no ANSI sequences for a non-terminal writer:\n%q", formatted)
	}
}

func TestRenderContext(t *testing.T) {
	err := New("A161").WithLocation("demo.yaml", 3, 4).WithContext([]string{"a", "b", "c", "d", "e"})
	formatted := err.Render(lipgloss.NewRenderer(&bytes.Buffer{}))

	for _, want := range []string{"demo.yaml:3:4", "→    3 │ c", "       │    ^", "       2 │ b"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Render should contain %q:\n%s", want, formatted)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	out := New("A161").Wrap(stderrors.New("boom")).WithLocation("demo.yaml", 10, 5).FormatJSON()

	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %s: %v", out, err)
	}
	if got["code"] != "A161" || got["category"] != "scenario" || got["message"] != "Unknown atom" || got["cause"] != "boom" {
		t.Errorf("unexpected fields %v", got)
	}
	loc, ok := got["location"].(map[string]any)
	if !ok || loc["file"] != "demo.yaml" || loc["line"] != float64(10) || loc["column"] != float64(5) {
		t.Errorf("unexpected location %v", got["location"])
	}
}

func TestFprint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"coded", New("A140"), "ERROR A140: Scenario file not found"},
		{"atom error", &atom.CycleError{Atom: "a", Path: []string{"a"}}, "ERROR A001: Circular dependency detected"},
		{"plain", stderrors.New("disk full"), "ERROR: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Fprint(&buf, tt.err)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in:\n%s", tt.want, buf.String())
			}
		})
	}

	var buf bytes.Buffer
	Fprint(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output for nil, got %q", buf.String())
	}
}

func TestFprintJSON(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{"coded", New("A121"), "A121", "Invalid log level"},
		{"atom error", atom.ErrFlushBudget, "A004", "Notification flush budget exceeded"},
		{"plain", stderrors.New("disk full"), "", "disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			FprintJSON(&buf, tt.err)

			var got map[string]any
			if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("invalid JSON %q: %v", buf.String(), err)
			}
			if code, _ := got["code"].(string); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if got["message"] != tt.wantMsg {
				t.Errorf("message = %v, want %q", got["message"], tt.wantMsg)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	codes := GetAllCodes()
	found := false
	for _, code := range codes {
		if code == "A001" {
			found = true
			break
		}
	}
	if !found {
		t.Error("A001 should be in the codes list")
	}

	if _, ok := GetTemplate("A999"); ok {
		t.Error("A999 should not exist")
	}

	Register("A999", ErrorTemplate{Category: CategoryCLI, Message: "Custom test error"})
	defer delete(registry, "A999")
	if New("A999").Message != "Custom test error" {
		t.Error("registered template not used")
	}
}

func TestWrapText(t *testing.T) {
	if got := wrapText("short text", 100); len(got) != 1 || got[0] != "short text" {
		t.Errorf("wrapText short text: got %v", got)
	}
	if got := wrapText("this is a longer text that should be wrapped", 20); len(got) != 3 {
		t.Errorf("wrapText long text: expected 3 lines, got %d: %v", len(got), got)
	}
	if got := wrapText("", 10); len(got) != 0 {
		t.Errorf("wrapText empty: expected empty, got %v", got)
	}
}
