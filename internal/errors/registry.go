package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Codec Errors (Q001-Q009)
	// ============================================

	"Q001": {
		Category: CategoryParse,
		Message:  "Query value does not match declared type",
	},
	"Q002": {
		Category: CategorySerialize,
		Message:  "Value cannot be encoded for declared type",
	},
	"Q003": {
		Category: CategoryValidation,
		Message:  "Validation failed",
	},

	// ============================================
	// Schema Errors (Q010-Q019)
	// ============================================

	"Q010": {
		Category: CategoryConfig,
		Message:  "Key is not declared in the schema",
	},
	"Q011": {
		Category: CategoryConfig,
		Message:  "Key declared more than once",
	},
	"Q012": {
		Category: CategoryConfig,
		Message:  "Invalid type tag",
	},
	"Q013": {
		Category: CategoryConfig,
		Message:  "Invalid history mode",
	},
	"Q014": {
		Category: CategoryConfig,
		Message:  "Engine is not mounted",
	},

	// ============================================
	// Config File Errors (Q020-Q029)
	// ============================================

	"Q020": {
		Category: CategoryConfig,
		Message:  "Failed to read config file",
	},
	"Q021": {
		Category: CategoryConfig,
		Message:  "Failed to parse config file",
	},
	"Q022": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},

	// ============================================
	// Protocol Errors (Q030-Q039)
	// ============================================

	"Q030": {
		Category: CategoryProtocol,
		Message:  "Invalid protocol message",
	},
	"Q031": {
		Category: CategoryProtocol,
		Message:  "Session closed",
	},

	// ============================================
	// CLI Errors (Q040-Q049)
	// ============================================

	"Q040": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
