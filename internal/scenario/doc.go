// Package scenario loads and runs YAML scenario files against an atom store.
//
// A scenario declares numeric atoms and a script of steps:
//
//	name: doubled
//	atoms:
//	  - {name: count, value: 0}
//	  - {name: doubled, op: scale, of: [count], by: 2}
//	  - {name: total, op: sum, of: [count, doubled]}
//	steps:
//	  - get: doubled
//	  - subscribe: doubled
//	  - set: {count: 6}
//	  - unsubscribe: doubled
//
// Atoms with a value are primitive. Atoms with an op derive from the atoms
// listed in of, which must be declared earlier in the file, so a scenario
// cannot describe a cycle. The ops are sum, product, min, max, scale (by a
// constant), negate and div. Dividing by zero makes the atom errored until
// the divisor changes.
//
// A set step with several assignments applies them in one batch, so
// subscribers are notified once.
package scenario
