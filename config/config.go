// Package config loads agent runtime settings from a TOML file and the
// environment.
//
// TOML keys use the same names as the Go struct fields. Environment
// variables override file values:
//
//	AGENTRT_REGISTRY     registry address
//	AGENTRT_PORT         listen port
//	AGENTRT_LOG_LEVEL    debug, info, warn or error
//	AGENTRT_MAX_WORKERS  analyzer worker pool size
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/naoina/toml"
)

// Environment variable names.
const (
	EnvRegistry   = "AGENTRT_REGISTRY"
	EnvPort       = "AGENTRT_PORT"
	EnvLogLevel   = "AGENTRT_LOG_LEVEL"
	EnvMaxWorkers = "AGENTRT_MAX_WORKERS"
)

// DefaultRegistry is the registry address used when none is configured.
const DefaultRegistry = "localhost:50051"

// Duration is a time.Duration written as a string ("30s") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(v)

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AgentConfig identifies the hosted agent.
type AgentConfig struct {
	ID           string
	Name         string
	Capabilities []string
	Expertise    float64
}

// ServerConfig controls the listener and worker pool.
type ServerConfig struct {
	Host           string
	Port           int
	MaxWorkers     int
	ExecuteTimeout Duration
	ShutdownGrace  Duration
}

// RegistryConfig controls registration.
type RegistryConfig struct {
	Endpoint string
	Disabled bool
}

// ConfidenceConfig controls result normalization.
type ConfidenceConfig struct {
	Strategy      string
	Default       float64
	MinConfidence float64 `toml:",omitempty"`
	Calibrate     bool
}

// CacheConfig enables result caching. RedisURL wins over the in-process
// LRU when both are set; Size 0 with no RedisURL disables caching.
type CacheConfig struct {
	Size     int
	TTL      Duration
	RedisURL string `toml:",omitempty"`
}

// EvaluationConfig selects where outcomes are stored. An empty SQLitePath
// keeps them in memory.
type EvaluationConfig struct {
	SQLitePath string `toml:",omitempty"`
}

// PolicyConfig enables admission control. An empty File with Enabled set
// uses the built-in policy.
type PolicyConfig struct {
	Enabled bool
	File    string `toml:",omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string
	Format string
}

// ModelConfig selects an LLM backend for the built-in model agent.
type ModelConfig struct {
	Provider string // "openai", "anthropic" or "mock"
	Name     string `toml:",omitempty"`
}

// Config is the complete runtime configuration.
type Config struct {
	Agent      AgentConfig
	Server     ServerConfig
	Registry   RegistryConfig
	Confidence ConfidenceConfig
	Cache      CacheConfig
	Evaluation EvaluationConfig
	Policy     PolicyConfig
	Log        LogConfig
	Model      ModelConfig
	Metrics    bool
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Agent: AgentConfig{
			ID:           "agent",
			Name:         "Analysis Agent",
			Capabilities: []string{"analysis"},
			Expertise:    0.5,
		},
		Server: ServerConfig{
			Port:          8080,
			MaxWorkers:    10,
			ShutdownGrace: Duration(30 * time.Second),
		},
		Registry: RegistryConfig{Endpoint: DefaultRegistry},
		Confidence: ConfidenceConfig{
			Strategy: "hybrid",
			Default:  0.5,
		},
		Cache: CacheConfig{TTL: Duration(5 * time.Minute)},
		Log:   LogConfig{Level: "info", Format: "text"},
		Model: ModelConfig{Provider: "mock"},
	}
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(_ reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(_ reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// LoadFile decodes the TOML file into cfg. Fields absent from the file keep
// their current values.
func LoadFile(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	var lerr *toml.LineError
	if errors.As(err, &lerr) {
		err = errors.New(file + ", " + err.Error())
	}

	return err
}

// ApplyEnv overrides cfg from environment variables read through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRegistry); ok && v != "" {
		cfg.Registry.Endpoint = v
	}

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}

	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}

		cfg.Server.Port = port
	}

	if v, ok := lookup(EnvMaxWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("%s: invalid worker count %q", EnvMaxWorkers, v)
		}

		cfg.Server.MaxWorkers = n
	}

	return nil
}

// Load returns Defaults overlaid with file (when non-empty) and the process
// environment.
func Load(file string) (Config, error) {
	cfg := Defaults()

	if file != "" {
		if err := LoadFile(file, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Marshal encodes cfg as TOML.
func Marshal(cfg Config) ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}
