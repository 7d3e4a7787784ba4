// Package errors provides structured, actionable error messages for the
// atomstore tools.
//
// Errors carry a code, a category, a short message, an optional file
// location with surrounding lines, a suggestion and a documentation link.
//
// # Error Categories
//
//   - runtime: errors surfaced by a store (cycles, read-only writes, failed computations)
//   - config: invalid atomstore.json or atomstore.toml files
//   - cli: command failures (missing files, inspector, graph rendering)
//   - scenario: invalid scenario files and failing steps
//
// # Error Codes
//
// Each error has a unique code (e.g., "A001") that maps to a message, a
// detailed explanation and a documentation URL. FromError assigns the codes
// for errors returned by the atom package:
//
//	_, err := atom.Get(store, total)
//	if err != nil {
//	    errors.PrintError(errors.FromError(err, "A165"))
//	}
//
// Scenario errors point at the offending line:
//
//	err := errors.New("A161").
//	    WithLocation("counter.yaml", 7, 15).
//	    WithSuggestion(`declare "count" before "doubled"`)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR A161: Unknown atom
//	//
//	//   counter.yaml:7:15
//	//
//	//        5 │   - {name: count, value: 0}
//	//        6 │   - {name: total, op: sum, of: [count, doubled]}
//	//   →    7 │   - {name: doubled, op: scale, of: [count], by: 2}
//	//          │               ^
//	//
//	//   Hint: declare "count" before "doubled"
package errors
