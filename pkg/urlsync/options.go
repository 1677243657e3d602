package urlsync

import (
	"log/slog"

	"github.com/vango-dev/querysync/pkg/codec"
	"github.com/vango-dev/querysync/pkg/history"
	"github.com/vango-dev/querysync/pkg/navbridge"
	"github.com/vango-dev/querysync/pkg/snapshot"
)

// DefaultTracerName is the OpenTelemetry tracer used when none is configured.
const DefaultTracerName = "querysync"

// Observer receives engine events. Implementations must not block.
type Observer interface {
	// Committed is called after a new address is written.
	Committed(mode history.Mode)

	// PatchSkipped is called when a patch leaves the query string unchanged.
	PatchSkipped()

	// Published is called each time a new snapshot is handed to the publish callback.
	Published()

	// ErrorReported is called for every failure passed to the error handler.
	ErrorReported(category string)
}

type config struct {
	sortKeys    bool
	defaultMode history.Mode
	defaults    snapshot.Values
	validators  map[string]snapshot.Validator
	codecs      map[string]*codec.Custom
	onError     snapshot.ErrorHandler
	logger      *slog.Logger
	observer    Observer
	tracerName  string
	bridge      *navbridge.Bridge
}

func defaultConfig() config {
	return config{
		defaultMode: history.ModePush,
		defaults:    snapshot.Values{},
		validators:  map[string]snapshot.Validator{},
		codecs:      map[string]*codec.Custom{},
		tracerName:  DefaultTracerName,
	}
}

// Option configures an Engine.
type Option func(*config)

// WithSortKeys canonicalizes query key order before comparing and committing.
func WithSortKeys(sort bool) Option {
	return func(c *config) {
		c.sortKeys = sort
	}
}

// WithDefaultHistory sets the mode used when a patch does not name one.
func WithDefaultHistory(mode history.Mode) Option {
	return func(c *config) {
		c.defaultMode = mode
	}
}

// WithDefault sets the fallback value for key. The default is written into
// the address on mount when key is missing there.
func WithDefault(key string, value any) Option {
	return func(c *config) {
		c.defaults[key] = value
	}
}

// WithDefaults sets several defaults at once.
func WithDefaults(values snapshot.Values) Option {
	return func(c *config) {
		for k, v := range values {
			c.defaults[k] = v
		}
	}
}

// WithValidator runs fn on every decoded value of key. A rejected value is
// replaced by the default and reported.
func WithValidator(key string, fn snapshot.Validator) Option {
	return func(c *config) {
		c.validators[key] = fn
	}
}

// WithCodec replaces the built-in encoding for key.
func WithCodec(key string, custom *codec.Custom) Option {
	return func(c *config) {
		c.codecs[key] = custom
	}
}

// WithErrorHandler observes parse, serialize and validation failures.
func WithErrorHandler(fn snapshot.ErrorHandler) Option {
	return func(c *config) {
		c.onError = fn
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithObserver attaches an observer, such as a metrics.Collector.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

// WithTracerName sets the OpenTelemetry tracer name.
func WithTracerName(name string) Option {
	return func(c *config) {
		c.tracerName = name
	}
}

// WithBridge uses b instead of the shared bridge for the host.
func WithBridge(b *navbridge.Bridge) Option {
	return func(c *config) {
		c.bridge = b
	}
}

// PatchOption configures a single Patch call.
type PatchOption interface {
	applyPatch(*patchConfig)
}

type patchConfig struct {
	mode    history.Mode
	modeSet bool
}

// Mode options as values, matching the history modes.
var (
	// Push creates a new history entry.
	Push PatchOption = modeOption{mode: history.ModePush}

	// Replace updates the address without creating a history entry.
	Replace PatchOption = modeOption{mode: history.ModeReplace}
)

type modeOption struct {
	mode history.Mode
}

func (o modeOption) applyPatch(c *patchConfig) {
	c.mode = o.mode
	c.modeSet = true
}

// WithMode selects the history mode for one patch.
func WithMode(mode history.Mode) PatchOption {
	return modeOption{mode: mode}
}
