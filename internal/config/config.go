// Package config loads the service configuration.
//
// Precedence, lowest first: built-in defaults, the configuration file,
// HANDY_RULES_* environment variables, command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-user configuration directory under $HOME.
	DirName = ".handy-local-rules"

	// FileName is the configuration file looked up in the working
	// directory and in DirName.
	FileName = "config.json"

	// RulesFileName is the default rules file.
	RulesFileName = "rules.json"
)

// Defaults.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 61234
	DefaultLogLevel       = "info"
	DefaultMaxLogEntries  = 1000
	DefaultReloadDebounce = 200 * time.Millisecond
)

// ErrNotFound is returned when an explicitly named configuration file
// does not exist.
var ErrNotFound = errors.New("config file not found")

// Config is the service configuration.
type Config struct {
	Host             string        `yaml:"host" json:"host" env:"HANDY_RULES_HOST"`
	Port             int           `yaml:"port" json:"port" env:"HANDY_RULES_PORT"`
	RulesPaths       Paths         `yaml:"rules_paths" json:"rules_paths" env:"HANDY_RULES_RULES_PATHS" envSeparator:","`
	APIKey           string        `yaml:"api_key" json:"-" env:"HANDY_RULES_API_KEY"`
	LogLevel         string        `yaml:"log_level" json:"log_level" env:"HANDY_RULES_LOG_LEVEL"`
	MaxLogEntries    int           `yaml:"max_log_entries" json:"max_log_entries" env:"HANDY_RULES_MAX_LOG_ENTRIES"`
	CORSEnabled      bool          `yaml:"cors_enabled" json:"cors_enabled" env:"HANDY_RULES_CORS_ENABLED"`
	EnableShellRules bool          `yaml:"enable_shell_rules" json:"enable_shell_rules" env:"HANDY_RULES_ENABLE_SHELL"`
	ReloadDebounce   time.Duration `yaml:"reload_debounce" json:"reload_debounce" env:"HANDY_RULES_RELOAD_DEBOUNCE"`
	LogDB            string        `yaml:"log_db" json:"log_db" env:"HANDY_RULES_LOG_DB"`

	// Source is the file the configuration was read from, if any.
	Source string `yaml:"-" json:"source,omitempty" env:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		RulesPaths:     Paths{RulesFileName},
		LogLevel:       DefaultLogLevel,
		MaxLogEntries:  DefaultMaxLogEntries,
		CORSEnabled:    true,
		ReloadDebounce: DefaultReloadDebounce,
	}
}

// Paths is a list of rule sources. In a configuration file it may be
// written as a single string.
type Paths []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Paths) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*p = Paths{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil
	default:
		return fmt.Errorf("line %d: rules_paths must be a string or a list of strings", node.Line)
	}
}

// UnmarshalYAML accepts rules_path as an alias for rules_paths.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type plain Config
	if err := node.Decode((*plain)(c)); err != nil {
		return err
	}

	var alias struct {
		Paths Paths `yaml:"rules_paths"`
		Path  Paths `yaml:"rules_path"`
	}
	if err := node.Decode(&alias); err != nil {
		return err
	}
	if alias.Paths == nil && alias.Path != nil {
		c.RulesPaths = alias.Path
	}
	return nil
}

// Parse decodes a configuration document over the defaults. JSON and YAML
// are both accepted.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the configuration file at path (skipped when path is empty)
// and applies environment overrides from the process environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Source = path
	}

	if err := ApplyEnv(&cfg, nil); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides cfg with HANDY_RULES_* variables. A nil environ uses
// the process environment. Unset variables leave fields untouched.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, ok := levels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("unknown log_level %q (want trace, debug, info, warn or error)", c.LogLevel)
	}
	if c.MaxLogEntries < 0 {
		return fmt.Errorf("max_log_entries must not be negative")
	}
	if c.ReloadDebounce < 0 {
		return fmt.Errorf("reload_debounce must not be negative")
	}
	return nil
}

var levels = map[string]slog.Level{
	"trace":   slog.LevelDebug,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// SlogLevel maps log_level to a slog level. Unknown values map to info.
func (c Config) SlogLevel() slog.Level {
	if l, ok := levels[strings.ToLower(c.LogLevel)]; ok {
		return l
	}
	return slog.LevelInfo
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Overrides holds command-line values. Zero values are not applied.
type Overrides struct {
	Host     string
	Port     int
	Rules    []string
	APIKey   string
	LogLevel string
}

// Merge applies command-line overrides. Rules paths given on the command
// line are placed before the configured ones, and replace the built-in
// default rules.json when nothing else is configured.
func (c Config) Merge(o Overrides) Config {
	if o.Host != "" {
		c.Host = o.Host
	}
	if o.Port != 0 {
		c.Port = o.Port
	}
	if len(o.Rules) > 0 {
		configured := c.RulesPaths
		if len(configured) == 1 && configured[0] == RulesFileName {
			configured = nil
		}
		c.RulesPaths = append(append(Paths(nil), o.Rules...), configured...)
	}
	if o.APIKey != "" {
		c.APIKey = o.APIKey
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	return c
}
