package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime Errors (A001-A099)
	// ============================================

	"A001": {
		Category: CategoryRuntime,
		Message:  "Circular dependency detected",
		Detail:   "An atom's read function transitively reads the atom itself.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a001",
	},
	"A002": {
		Category: CategoryRuntime,
		Message:  "Attempted to set a read-only atom",
		Detail:   "The atom has no write function. The store was not modified.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a002",
	},
	"A003": {
		Category: CategoryRuntime,
		Message:  "Atom computation failed",
		Detail:   "A read, load or write function returned an error or panicked.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a003",
	},
	"A004": {
		Category: CategoryRuntime,
		Message:  "Notification flush budget exceeded",
		Detail:   "Listeners kept writing the atoms they observe. Pending notifications were dropped.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a004",
	},
	"A005": {
		Category: CategoryRuntime,
		Message:  "Await called while holding the store",
		Detail:   "Await blocks until a background load settles and cannot run inside a synchronous read or write function.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a005",
	},
	"A006": {
		Category: CategoryRuntime,
		Message:  "Store closed",
		Detail:   "The store was closed and no longer runs async loads.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a006",
	},

	// ============================================
	// Configuration Errors (A120-A139)
	// ============================================

	"A120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The atomstore configuration file contains invalid JSON or TOML.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a120",
	},
	"A121": {
		Category: CategoryConfig,
		Message:  "Invalid log level",
		Detail:   "log.level must be one of debug, info, warn or error.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a121",
	},
	"A122": {
		Category: CategoryConfig,
		Message:  "Invalid log format",
		Detail:   "log.format must be one of text, json or pretty.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a122",
	},
	"A123": {
		Category: CategoryConfig,
		Message:  "Invalid bench settings",
		Detail:   "bench.stores, bench.depth and bench.writes must be positive.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a123",
	},
	"A124": {
		Category: CategoryConfig,
		Message:  "Unsupported configuration format",
		Detail:   "Configuration files must end in .json or .toml.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a124",
	},

	// ============================================
	// CLI Errors (A140-A159)
	// ============================================

	"A140": {
		Category: CategoryCLI,
		Message:  "Scenario file not found",
		Detail:   "The scenario file does not exist or cannot be read.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a140",
	},
	"A141": {
		Category: CategoryCLI,
		Message:  "Inspector failed to start",
		Detail:   "The devtools HTTP server could not listen on the configured address.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a141",
	},
	"A142": {
		Category: CategoryCLI,
		Message:  "Graph rendering failed",
		Detail:   "Graphviz could not render the dependency graph.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a142",
	},
	"A143": {
		Category: CategoryCLI,
		Message:  "Benchmark failed",
		Detail:   "One of the benchmark stores returned an error.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a143",
	},

	// ============================================
	// Scenario Errors (A160-A179)
	// ============================================

	"A160": {
		Category: CategoryScenario,
		Message:  "Invalid scenario file",
		Detail:   "The scenario file is not valid YAML or does not match the scenario schema.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a160",
	},
	"A161": {
		Category: CategoryScenario,
		Message:  "Unknown atom",
		Detail:   "A step or operand refers to an atom that is not declared before it.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a161",
	},
	"A162": {
		Category: CategoryScenario,
		Message:  "Duplicate atom name",
		Detail:   "Every atom in a scenario must have a unique name.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a162",
	},
	"A163": {
		Category: CategoryScenario,
		Message:  "Unknown operation",
		Detail:   "Supported operations are sum, product, min, max, scale, negate and div.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a163",
	},
	"A164": {
		Category: CategoryScenario,
		Message:  "Invalid step",
		Detail:   "Each step must contain exactly one of get, set, subscribe or unsubscribe.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a164",
	},
	"A165": {
		Category: CategoryScenario,
		Message:  "Step failed",
		Detail:   "A scenario step returned an error.",
		DocURL:   "https://github.com/vango-dev/atoms/blob/main/docs/errors.md#a165",
	},
}

// hints are suggestions attached by FromError.
var hints = map[string]string{
	"A001": "Break the cycle by moving shared state into a primitive atom both sides read.",
	"A002": "Use NewWritable with a write function, or write the primitive atoms it derives from.",
	"A003": "Handle the failing dependency inside the read function if the atom should still produce a value.",
	"A004": "Listeners should not unconditionally write the atom they observe.",
	"A005": "Read the async atom's Loadable instead, or Await from an async load or another goroutine.",
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
