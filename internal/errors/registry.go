package errors

import (
	stderrors "errors"
	"sort"

	"github.com/vango-dev/vbind/pkg/expr"
	"github.com/vango-dev/vbind/pkg/protocol"
	"github.com/vango-dev/vbind/pkg/reactive"
)

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Reactive Errors (VB001-VB099)
	// ============================================

	"VB001": {
		Category: CategoryReactive,
		Message:  "Circular dependency detected",
		Detail:   "A computed value read itself while it was being evaluated. Break the cycle by reading one side with Peek or Untrack.",
	},
	"VB002": {
		Category: CategoryReactive,
		Message:  "Write to a disposed signal",
		Detail:   "The signal's owner has been disposed. This usually means a callback outlived the list item or reconciler that created it.",
	},
	"VB003": {
		Category: CategoryReactive,
		Message:  "Unknown state field",
		Detail:   "State fields are fixed when the State is created. Writes to other names are rejected.",
	},
	"VB004": {
		Category: CategoryReactive,
		Message:  "Effect budget exceeded",
		Detail:   "A single flush ran more effects than the configured budget. Effects that write signals they also read can loop forever.",
	},

	// ============================================
	// Reconcile Errors (VB100-VB299)
	// ============================================

	"VB101": {
		Category: CategoryReconcile,
		Message:  "Undefined variable in key expression",
		Detail:   "The first name of a key expression must be the item variable, the index variable, or a name in the enclosing scope.",
	},
	"VB102": {
		Category: CategoryReconcile,
		Message:  "Key expression cannot be evaluated",
		Detail:   "A path segment names a field that does not exist or is not exported.",
	},
	"VB103": {
		Category: CategoryReconcile,
		Message:  "Malformed key expression",
		Detail:   "Key expressions are dotted paths with optional integer indexes, such as item.id or row.cells[0].",
	},
	"VB201": {
		Category: CategoryReconcile,
		Message:  "Duplicate key",
		Detail:   "Two items produced the same key. The later item was given a synthetic key, so both render, but its identity is positional.",
	},
	"VB202": {
		Category: CategoryReconcile,
		Message:  "Key is not comparable",
		Detail:   "Keys must be usable as map keys. Slices, maps and functions are not; the item position was used instead.",
	},
	"VB203": {
		Category: CategoryReconcile,
		Message:  "Source is not a list",
		Detail:   "The reconciler source must produce a slice or array. All items were removed.",
	},

	// ============================================
	// Protocol Errors (VB300-VB399)
	// ============================================

	"VB301": {
		Category: CategoryProtocol,
		Message:  "Invalid frame",
		Detail:   "The message is empty, truncated, or has an unknown frame type.",
	},
	"VB302": {
		Category: CategoryProtocol,
		Message:  "Unknown patch operation",
		Detail:   "A patch batch contained an op byte this version does not understand.",
	},
	"VB303": {
		Category: CategoryProtocol,
		Message:  "Message too large",
		Detail:   "A length or count prefix exceeded the decoder limits.",
	},
	"VB304": {
		Category: CategoryProtocol,
		Message:  "Invalid request body",
		Detail:   "Item endpoints accept JSON: an array for PUT /items and a single value for POST /items.",
	},
	"VB305": {
		Category: CategoryProtocol,
		Message:  "No item with that key",
		Detail:   "The key is compared with the printed form of each item key.",
	},

	// ============================================
	// Config Errors (VB400-VB499)
	// ============================================

	"VB401": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "The file given with --config does not exist.",
	},
	"VB402": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file is not valid JSON or has a field of the wrong type.",
	},
	"VB403": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range.",
	},

	// ============================================
	// CLI Errors (VB500-VB599)
	// ============================================

	"VB501": {
		Category: CategoryCLI,
		Message:  "Cannot read items file",
		Detail:   "Items files must contain a JSON array.",
	},
	"VB502": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The live host stopped with an error.",
	},
}

// sentinels maps library errors onto codes, checked in order.
var sentinels = []struct {
	err  error
	code string
}{
	{reactive.ErrCycle, "VB001"},
	{reactive.ErrDisposed, "VB002"},
	{reactive.ErrUnknownField, "VB003"},
	{reactive.ErrBudgetExceeded, "VB004"},
	{expr.ErrUndefined, "VB101"},
	{expr.ErrNotTraversable, "VB102"},
	{expr.ErrSyntax, "VB103"},
	{protocol.ErrInvalidFrameType, "VB301"},
	{protocol.ErrUnknownPatchOp, "VB302"},
	{protocol.ErrAllocationTooLarge, "VB303"},
	{protocol.ErrCollectionTooLarge, "VB303"},
	{protocol.ErrVarintOverflow, "VB303"},
}

// Classify returns the registry code for a known library error, or "".
func Classify(err error) string {
	for _, s := range sentinels {
		if stderrors.Is(err, s.err) {
			return s.code
		}
	}
	return ""
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
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
