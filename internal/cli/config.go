package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/roach88/storekit/internal/schema"
)

// Error codes (C100-C199).
const (
	ErrCodeGeneric        = "C100"
	ErrCodeConfigNotFound = "C101"
	ErrCodeConfigParse    = "C102"
	ErrCodeConfigInvalid  = "C103"
	ErrCodeSchema         = "C104"
	ErrCodeBackend        = "C105"
	ErrCodeInput          = "C106"
	ErrCodeValidation     = "C107"
	ErrCodeNotFound       = "C108"
	ErrCodeTestFailed     = "C109"
)

// Backend kinds.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config describes the backend and the known stores.
//
// Example:
//
//	backend:
//	  kind: sqlite
//	  path: ./state.db
//	stores:
//	  prefs:
//	    schema: ./prefs.cue
//	    path: "#Prefs"
type Config struct {
	Backend BackendConfig          `yaml:"backend"`
	Stores  map[string]StoreConfig `yaml:"stores"`
}

// BackendConfig selects the KV backend.
type BackendConfig struct {
	Kind   string `yaml:"kind"`
	Path   string `yaml:"path"`   // sqlite
	Addr   string `yaml:"addr"`   // redis
	DB     int    `yaml:"db"`     // redis
	Prefix string `yaml:"prefix"` // redis
}

// StoreConfig describes one durable store. Schema and CUE are exclusive.
type StoreConfig struct {
	Key    string `yaml:"key"`    // KV key; defaults to the store name
	Schema string `yaml:"schema"` // CUE file, relative to the config file
	CUE    string `yaml:"cue"`    // inline CUE source
	Path   string `yaml:"path"`   // CUE path of the store definition
}

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			Kind:   BackendSQLite,
			Path:   "storekit.db",
			Addr:   "localhost:6379",
			Prefix: "storekit:",
		},
	}
}

// ConfigError is a config or input problem with a CLI error code.
type ConfigError struct {
	Code    string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig reads the YAML config at path and fills unset fields from
// DefaultConfig. An empty path yields the defaults. Relative schema paths are
// resolved against the config file's directory.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{Code: ErrCodeConfigNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
		}
		if err != nil {
			return nil, &ConfigError{Code: ErrCodeConfigNotFound, Message: "reading config", Err: err}
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, &ConfigError{Code: ErrCodeConfigParse, Message: fmt.Sprintf("parsing %s", path), Err: err}
		}

		dir := filepath.Dir(path)
		for name, sc := range cfg.Stores {
			if sc.Schema != "" && !filepath.IsAbs(sc.Schema) {
				sc.Schema = filepath.Join(dir, sc.Schema)
				cfg.Stores[name] = sc
			}
		}
		if cfg.Backend.Path != "" && !filepath.IsAbs(cfg.Backend.Path) {
			cfg.Backend.Path = filepath.Join(dir, cfg.Backend.Path)
		}
	}

	if err := mergo.Merge(cfg, DefaultConfig()); err != nil {
		return nil, &ConfigError{Code: ErrCodeConfigInvalid, Message: "applying defaults", Err: err}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend.Kind {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return &ConfigError{
			Code:    ErrCodeConfigInvalid,
			Message: fmt.Sprintf("unknown backend %q: must be one of sqlite, redis, memory", c.Backend.Kind),
		}
	}
	for name, sc := range c.Stores {
		if sc.Schema != "" && sc.CUE != "" {
			return &ConfigError{
				Code:    ErrCodeConfigInvalid,
				Message: fmt.Sprintf("store %s: schema and cue are mutually exclusive", name),
			}
		}
	}
	return nil
}

// Store returns the configuration of store name. Unknown stores get an empty
// configuration: no schema, keyed by name.
func (c *Config) Store(name string) StoreConfig {
	return c.Stores[name]
}

// Validator builds the store's schema validator, or nil when it has none.
func (s StoreConfig) Validator(name string) (schema.Validator, error) {
	var (
		v   *schema.CUE
		err error
	)
	switch {
	case s.CUE != "":
		v, err = schema.CompileCUE(name, s.CUE, s.Path)
	case s.Schema != "":
		v, err = schema.LoadCUEFile(name, s.Schema, s.Path)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, &ConfigError{Code: ErrCodeSchema, Message: fmt.Sprintf("store %s schema", name), Err: err}
	}
	return v, nil
}
