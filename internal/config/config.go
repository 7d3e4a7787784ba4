package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/vango-dev/atoms/internal/errors"
	"github.com/vango-dev/atoms/pkg/atom"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "atomstore.json"

	// TOMLConfigFileName is the name of the TOML configuration file.
	TOMLConfigFileName = "atomstore.toml"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "text"

	// DefaultInspectorAddr is the default devtools listen address.
	DefaultInspectorAddr = "localhost:7070"

	// DefaultMetricsNamespace is the default Prometheus namespace.
	DefaultMetricsNamespace = "atom"

	// DefaultBenchStores is the default number of stores driven by bench.
	DefaultBenchStores = 8

	// DefaultBenchDepth is the default length of the bench derived chain.
	DefaultBenchDepth = 16

	// DefaultBenchWrites is the default number of writes per bench store.
	DefaultBenchWrites = 1000
)

// Config represents the complete atomstore configuration.
type Config struct {
	// Log contains logger settings.
	Log LogConfig `json:"log,omitempty" toml:"log"`

	// Inspector contains devtools server settings.
	Inspector InspectorConfig `json:"inspector,omitempty" toml:"inspector"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics,omitempty" toml:"metrics"`

	// Store contains settings applied to every store the CLI creates.
	Store StoreConfig `json:"store,omitempty" toml:"store"`

	// Bench contains defaults for the bench command.
	Bench BenchConfig `json:"bench,omitempty" toml:"bench"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level,omitempty" toml:"level"`

	// Format is one of text, json or pretty.
	Format string `json:"format,omitempty" toml:"format"`
}

// InspectorConfig contains devtools server settings.
type InspectorConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" toml:"addr"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled registers store metrics.
	Enabled bool `json:"enabled,omitempty" toml:"enabled"`

	// Namespace is the metric name prefix.
	Namespace string `json:"namespace,omitempty" toml:"namespace"`
}

// StoreConfig contains store settings.
type StoreConfig struct {
	// MaxFlushPasses bounds listener-triggered notification passes.
	MaxFlushPasses int `json:"maxFlushPasses,omitempty" toml:"max_flush_passes"`
}

// BenchConfig contains defaults for the bench command.
type BenchConfig struct {
	Stores int `json:"stores,omitempty" toml:"stores"`
	Depth  int `json:"depth,omitempty" toml:"depth"`
	Writes int `json:"writes,omitempty" toml:"writes"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads the configuration from the given directory. atomstore.json is
// preferred over atomstore.toml. A directory without either file yields the
// defaults.
func Load(dir string) (*Config, error) {
	for _, name := range []string{ConfigFileName, TOMLConfigFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return New(), nil
}

// LoadFile loads the configuration from a specific file path. The format is
// chosen by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("A120").
				WithDetail("No configuration file at " + path).
				WithSuggestion("Create atomstore.json or pass --config")
		}
		return nil, errors.New("A120").Wrap(err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			e := errors.New("A120").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid JSON")
			var syn *json.SyntaxError
			if stderrors.As(err, &syn) {
				e.WithLocation(path, lineAt(data, syn.Offset), 0)
			}
			return nil, e
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			e := errors.New("A120").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid TOML")
			var perr toml.ParseError
			if stderrors.As(err, &perr) {
				e.WithLocation(path, perr.Position.Line, 0)
			}
			return nil, e
		}
	default:
		return nil, errors.New("A124").
			WithDetail("Cannot load " + path)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// lineAt returns the 1-based line containing byte offset off.
func lineAt(data []byte, off int64) int {
	if off > int64(len(data)) {
		off = int64(len(data))
	}
	return bytes.Count(data[:off], []byte("\n")) + 1
}

// Save writes the configuration back to where it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path, as TOML when the extension is
// .toml and JSON otherwise.
func (c *Config) SaveTo(path string) error {
	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return errors.New("A120").Wrap(err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return errors.New("A120").Wrap(err)
		}
		// Add newline at end of file
		data = append(data, '\n')
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("A120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path the configuration was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the configuration file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in missing values.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Inspector.Addr == "" {
		c.Inspector.Addr = DefaultInspectorAddr
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
	if c.Store.MaxFlushPasses == 0 {
		c.Store.MaxFlushPasses = atom.DefaultMaxFlushPasses
	}
	if c.Bench.Stores == 0 {
		c.Bench.Stores = DefaultBenchStores
	}
	if c.Bench.Depth == 0 {
		c.Bench.Depth = DefaultBenchDepth
	}
	if c.Bench.Writes == 0 {
		c.Bench.Writes = DefaultBenchWrites
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("A121").
			WithDetail("Unknown log level " + `"` + c.Log.Level + `"`)
	}
	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		return errors.New("A122").
			WithDetail("Unknown log format " + `"` + c.Log.Format + `"`)
	}
	if c.Store.MaxFlushPasses < 0 {
		return errors.Newf(errors.CategoryConfig, "store.maxFlushPasses must not be negative")
	}
	if c.Bench.Stores < 0 || c.Bench.Depth < 0 || c.Bench.Writes < 0 {
		return errors.New("A123")
	}
	return nil
}

// SlogLevel returns the configured log level. Validate reports unknown levels;
// here they fall back to info.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// StoreOptions returns the atom store options implied by the configuration.
func (c *Config) StoreOptions() []atom.Option {
	return []atom.Option{atom.WithMaxFlushPasses(c.Store.MaxFlushPasses)}
}

// Exists checks if a configuration file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, TOMLConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up from startDir to the nearest directory holding a
// configuration file.
func FindProjectRoot(startDir string) (string, error) {
	dir := startDir
	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("A120").
				WithDetail("No atomstore.json or atomstore.toml found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the nearest configuration above the working
// directory, or the defaults when there is none.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return New(), nil
	}

	return Load(root)
}
