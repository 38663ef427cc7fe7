// Package config loads the engine configuration from YAML or TOML.
//
// A missing file yields the defaults. Method lists may contain the entry
// "inherit", which expands to the default list:
//
//	[rules]
//	null_check_methods = ["inherit", "Guard.NotNull"]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/gnoswap-labs/symex/internal/symex/engine"
	"github.com/gnoswap-labs/symex/internal/symex/rules"
)

const DefaultFile = ".symex.yaml"

var ErrUnknownFormat = errors.New("unknown configuration format")

type Config struct {
	Name      string         `yaml:"name" toml:"name"`
	MaxSteps  int            `yaml:"max_steps" toml:"max_steps"`
	MaxVisits int            `yaml:"max_visits" toml:"max_visits"`
	Rules     rules.Settings `yaml:"rules" toml:"rules"`
}

func Default() Config {
	return Config{
		Name:      "symex",
		MaxSteps:  engine.DefaultMaxSteps,
		MaxVisits: engine.DefaultMaxVisits,
		Rules:     rules.DefaultSettings(),
	}
}

// Options returns the engine options the configuration selects.
func (c Config) Options() []engine.Option {
	return []engine.Option{
		engine.WithMaxSteps(c.MaxSteps),
		engine.WithMaxVisits(c.MaxVisits),
		engine.WithSettings(c.Rules),
	}
}

func (c Config) Validate() error {
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps)
	}
	if c.MaxVisits < 0 {
		return fmt.Errorf("max_visits must not be negative, got %d", c.MaxVisits)
	}
	return nil
}

// Load reads the file at path. The format follows the extension.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	format, err := formatOf(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data, format)
}

// Parse decodes data in the given format ("yaml" or "toml") on top of
// the defaults.
func Parse(data []byte, format string) (Config, error) {
	c := Default()
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("decode yaml config: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(string(data), &c); err != nil {
			return Config{}, fmt.Errorf("decode toml config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}

	d := rules.DefaultSettings()
	c.Rules.NullCheckMethods = inherit(d.NullCheckMethods, c.Rules.NullCheckMethods)
	c.Rules.StringNullOrEmptyMethods = inherit(d.StringNullOrEmptyMethods, c.Rules.StringNullOrEmptyMethods)
	c.Rules.CollectionAddMethods = inherit(d.CollectionAddMethods, c.Rules.CollectionAddMethods)
	c.Rules.CollectionClearMethods = inherit(d.CollectionClearMethods, c.Rules.CollectionClearMethods)
	c.Rules.CollectionAnyMethods = inherit(d.CollectionAnyMethods, c.Rules.CollectionAnyMethods)
	c.Rules.CollectionCountMethods = inherit(d.CollectionCountMethods, c.Rules.CollectionCountMethods)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Write stores c at path in the format its extension selects.
func Write(path string, c Config) error {
	format, err := formatOf(path)
	if err != nil {
		return err
	}
	var d []byte
	switch format {
	case "yaml":
		if d, err = yaml.Marshal(c); err != nil {
			return fmt.Errorf("encode yaml config: %w", err)
		}
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("encode toml config: %w", err)
		}
		d = buf.Bytes()
	}
	if err := os.WriteFile(path, d, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

// inherit replaces every "inherit" entry of list with base.
func inherit(base, list []string) []string {
	out := make([]string, 0, len(base)+len(list))
	for _, el := range list {
		if el == "inherit" {
			out = append(out, base...)
		} else {
			out = append(out, el)
		}
	}
	return out
}
