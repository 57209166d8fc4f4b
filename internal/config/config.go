// Package config loads polycat configuration from YAML or TOML files.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/polycat/internal/document"
	"github.com/roach88/polycat/internal/ir"
)

// Config is the full polycat configuration.
type Config struct {
	// Database is the SQLite file holding catalog snapshots and the
	// physical tables of the adapter.
	Database string `yaml:"database" toml:"database"`

	// Schema is a CUE file or package directory declaring the logical schema.
	Schema string `yaml:"schema" toml:"schema"`

	Adapter  AdapterConfig  `yaml:"adapter" toml:"adapter"`
	Document DocumentConfig `yaml:"document" toml:"document"`
	Log      LogConfig      `yaml:"log" toml:"log"`
}

// AdapterConfig selects the adapter an invocation works on.
type AdapterConfig struct {
	ID       int64    `yaml:"id" toml:"id"`
	Native   []string `yaml:"native" toml:"native"`
	ReadOnly bool     `yaml:"read_only" toml:"read-only"`
}

// DocumentConfig controls document re-encoding.
type DocumentConfig struct {
	Codec string `yaml:"codec" toml:"codec"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" toml:"level"`
	Encoding    string `yaml:"encoding" toml:"encoding"`
	Development bool   `yaml:"development" toml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: "polycat.db",
		Adapter:  AdapterConfig{ID: 1},
		Document: DocumentConfig{Codec: "json"},
		Log:      LogConfig{Level: "info", Encoding: "console"},
	}
}

// Load reads a configuration file over the defaults. The format follows
// the extension: .yaml/.yml or .toml. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return Config{}, fmt.Errorf("config %s: unsupported format %q, want .yaml, .yml or .toml", path, ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be decoded wrong but can be set wrong.
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Adapter.ID <= 0 {
		return fmt.Errorf("adapter id must be positive, got %d", c.Adapter.ID)
	}
	if _, err := c.NativeModels(); err != nil {
		return err
	}
	if _, err := document.ByName(c.Document.Codec); err != nil {
		return err
	}
	switch c.Log.Encoding {
	case "", "console", "json":
	default:
		return fmt.Errorf("log encoding %q, want console or json", c.Log.Encoding)
	}
	return nil
}

// NativeModels parses Adapter.Native.
func (c Config) NativeModels() ([]ir.DataModel, error) {
	models := make([]ir.DataModel, 0, len(c.Adapter.Native))
	for _, name := range c.Adapter.Native {
		m := ir.DataModel(strings.ToLower(name))
		if !m.Valid() {
			return nil, fmt.Errorf("adapter native model %q is not relational, document or graph", name)
		}
		models = append(models, m)
	}
	return models, nil
}
