package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/codec"
	"github.com/vango-dev/querysync/pkg/history"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "querysync.json"

	// DefaultAddr is the default server listen address.
	DefaultAddr = ":8080"

	// DefaultWSPath is the default WebSocket endpoint.
	DefaultWSPath = "/ws"

	// DefaultMetricsPath is the default Prometheus endpoint.
	DefaultMetricsPath = "/metrics"

	// DefaultReadTimeout bounds how long a session may stay silent.
	DefaultReadTimeout = "60s"
)

// configFileNames are tried in order by Load.
var configFileNames = []string{ConfigFileName, "querysync.yaml", "querysync.yml"}

// Config represents the complete querysync configuration.
type Config struct {
	// Fields declares the query keys in order.
	Fields []FieldConfig `json:"fields" yaml:"fields"`

	// SortKeys canonicalizes query key order before comparing and committing.
	SortKeys bool `json:"sortKeys,omitempty" yaml:"sortKeys,omitempty"`

	// DefaultHistory is "push" or "replace".
	DefaultHistory string `json:"defaultHistory,omitempty" yaml:"defaultHistory,omitempty"`

	// Server contains sync server configuration.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// FieldConfig declares one query key.
type FieldConfig struct {
	// Key is the query parameter name.
	Key string `json:"key" yaml:"key"`

	// Type is a type tag: string, number, boolean, date, string-list or object.
	Type string `json:"type" yaml:"type"`

	// Default is used when the key is absent or invalid, and is written into
	// the address on mount.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`

	// Min and Max bound numbers, string lengths and list sizes.
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`

	// Pattern is a regular expression strings must match.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// OneOf lists the accepted strings.
	OneOf []string `json:"oneOf,omitempty" yaml:"oneOf,omitempty"`
}

// ServerConfig contains sync server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// WSPath is the WebSocket endpoint.
	WSPath string `json:"wsPath,omitempty" yaml:"wsPath,omitempty"`

	// MetricsPath is the Prometheus endpoint. "-" disables it.
	MetricsPath string `json:"metricsPath,omitempty" yaml:"metricsPath,omitempty"`

	// AllowedOrigins lists origins allowed to open sessions. Empty means
	// same-origin only; "*" allows any origin.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`

	// ReadTimeout closes sessions that stay silent longer (e.g., "60s").
	ReadTimeout string `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
}

// New creates a new Config with default values and no fields.
func New() *Config {
	return &Config{
		DefaultHistory: history.ModePush.String(),
		Server: ServerConfig{
			Addr:        DefaultAddr,
			WSPath:      DefaultWSPath,
			MetricsPath: DefaultMetricsPath,
			ReadTimeout: DefaultReadTimeout,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for querysync.json, then querysync.yaml and querysync.yml.
func Load(dir string) (*Config, error) {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("Q020").
		WithDetail("No querysync.json or querysync.yaml found in " + dir).
		WithSuggestion("Run 'querysync init' to create one")
}

// LoadFile reads configuration from the specified file path. Files ending in
// .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("Q020").
				WithDetail("No config file at " + path).
				WithSuggestion("Run 'querysync init' to create one")
		}
		return nil, errors.New("Q020").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("Q021").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid " + formatName(path))
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, in the format its
// extension selects.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("Q020").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("Q020").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.DefaultHistory == "" {
		c.DefaultHistory = history.ModePush.String()
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = DefaultMetricsPath
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
}

// Validate checks that every field is well formed, that rules fit their
// field's type, and that defaults can be coerced.
func (c *Config) Validate() error {
	if len(c.Fields) == 0 {
		return errors.New("Q022").
			WithDetail("No fields declared").
			WithSuggestion(`Add at least one entry to "fields"`)
	}

	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if f.Key == "" {
			return errors.New("Q022").WithDetail("A field has an empty key")
		}
		if seen[f.Key] {
			return errors.New("Q011").WithKey(f.Key)
		}
		seen[f.Key] = true

		kind, err := codec.ParseKind(f.Type)
		if err != nil {
			return errors.FromError(err, "Q012").WithKey(f.Key)
		}
		if f.Default != nil {
			if _, ok := codec.Coerce(f.Default, kind); !ok {
				return errors.New("Q022").
					WithKey(f.Key).
					WithDetail("default is not a valid " + kind.String())
			}
		}
		if _, err := f.validator(kind); err != nil {
			return err
		}
	}

	if _, err := history.ParseMode(c.DefaultHistory); err != nil {
		return err
	}

	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return errors.New("Q022").WithDetail("server.wsPath must start with /")
	}
	if c.Server.MetricsPath != "-" && !strings.HasPrefix(c.Server.MetricsPath, "/") {
		return errors.New("Q022").WithDetail(`server.metricsPath must start with / or be "-"`)
	}
	if _, err := c.ReadTimeout(); err != nil {
		return err
	}
	return nil
}

// ReadTimeout returns the parsed server read timeout.
func (c *Config) ReadTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.ReadTimeout)
	if err != nil || d < 0 {
		return 0, errors.New("Q022").
			WithDetail("server.readTimeout " + `"` + c.Server.ReadTimeout + `"` + " is not a duration").
			WithSuggestion(`Use a value like "60s"`)
	}
	return d, nil
}

// MetricsEnabled reports whether the Prometheus endpoint is served.
func (c *Config) MetricsEnabled() bool {
	return c.Server.MetricsPath != "-"
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range configFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the directory holding a
// config file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("Q020").
				WithDetail("No querysync config found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'querysync init' to create one")
		}
		dir = parent
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func formatName(path string) string {
	if isYAML(path) {
		return "YAML"
	}
	return "JSON"
}
