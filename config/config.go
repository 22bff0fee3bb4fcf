package config

import (
	"fmt"
	"path/filepath"

	"github.com/kbukum/wirekit/decl"
	"github.com/kbukum/wirekit/emit"
	"github.com/kbukum/wirekit/logger"
	"github.com/kbukum/wirekit/observability"
	"github.com/kbukum/wirekit/server"
	"github.com/kbukum/wirekit/validation"
)

// DefaultCacheFile is the cache location relative to the scan root.
const DefaultCacheFile = ".wirekit/cache.json"

// Config is the complete wirekit configuration.
type Config struct {
	// Root is the directory scanned for providers.
	Root string `yaml:"root" mapstructure:"root" validate:"required"`
	// Cache is the fingerprint cache file. Relative paths are resolved
	// against Root. "off" disables the cache.
	Cache string `yaml:"cache" mapstructure:"cache"`
	// Workers bounds parallel unit parsing. Zero means one per CPU.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=0"`
	// Exclude lists slash-separated globs of units or directories to skip.
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`

	Wrappers  Wrappers             `yaml:"wrappers" mapstructure:"wrappers"`
	Generate  Generate             `yaml:"generate" mapstructure:"generate" validate:"-"`
	Logging   logger.Config        `yaml:"logging" mapstructure:"logging" validate:"-"`
	Server    server.Config        `yaml:"server" mapstructure:"server" validate:"-"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry" validate:"-"`
}

// Wrappers names the generic wrapper types that carry ownership.
type Wrappers struct {
	Shared    []string `yaml:"shared" mapstructure:"shared"`
	Exclusive []string `yaml:"exclusive" mapstructure:"exclusive"`
}

// Generate configures the injector emitted by "wirekit generate".
type Generate struct {
	emit.Options `yaml:",inline" mapstructure:",squash"`
	// Type and Qualifier name the root to build.
	Type      string `yaml:"type" mapstructure:"type"`
	Qualifier string `yaml:"qualifier" mapstructure:"qualifier"`
	// Output is the generated file path relative to Root.
	Output string `yaml:"output" mapstructure:"output"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Root == "" {
		c.Root = "."
	}
	if c.Cache == "" {
		c.Cache = DefaultCacheFile
	}
	if len(c.Wrappers.Shared) == 0 {
		c.Wrappers.Shared = append([]string(nil), decl.DefaultSharedWrappers...)
	}
	if len(c.Wrappers.Exclusive) == 0 {
		c.Wrappers.Exclusive = append([]string(nil), decl.DefaultExclusiveWrappers...)
	}
	if c.Generate.Func == "" {
		c.Generate.Func = "Initialize"
	}
	if c.Generate.Output == "" {
		c.Generate.Output = "wire_gen.go"
	}
	c.Logging.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// Validate checks the configuration. Generate settings are checked
// separately by ValidateGenerate since only "wirekit generate" needs them.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}

	v := validation.New()
	v.Distinct("wrappers.shared", c.Wrappers.Shared).
		Distinct("wrappers.exclusive", c.Wrappers.Exclusive)
	for _, name := range c.Wrappers.Shared {
		v.Identifier("wrappers.shared", name)
		for _, other := range c.Wrappers.Exclusive {
			v.Custom(name != other, "wrappers", fmt.Sprintf("%s is listed as both shared and exclusive", name))
		}
	}
	for _, name := range c.Wrappers.Exclusive {
		v.Identifier("wrappers.exclusive", name)
	}
	for _, glob := range c.Exclude {
		_, err := filepath.Match(glob, "")
		v.Custom(err == nil, "exclude", fmt.Sprintf("invalid glob %q", glob))
	}
	if err := v.Err(); err != nil {
		return err
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config.server: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("config.telemetry: %w", err)
	}
	return nil
}

// ValidateGenerate checks the settings "wirekit generate" needs.
func (c *Config) ValidateGenerate() error {
	if err := validation.Validate(c.Generate.Options); err != nil {
		return err
	}
	return validation.New().
		Required("generate.type", c.Generate.Type).
		Required("generate.output", c.Generate.Output).
		Identifier("generate.package", c.Generate.Package).
		Identifier("generate.func", c.Generate.Func).
		Err()
}

// CachePath returns the resolved cache file, or "" when caching is off.
func (c *Config) CachePath() string {
	switch {
	case c.Cache == "off" || c.Cache == "":
		return ""
	case filepath.IsAbs(c.Cache):
		return c.Cache
	default:
		return filepath.Join(c.Root, c.Cache)
	}
}

// OutputPath returns the resolved path of the generated file.
func (c *Config) OutputPath() string {
	if filepath.IsAbs(c.Generate.Output) {
		return c.Generate.Output
	}
	return filepath.Join(c.Root, c.Generate.Output)
}

// Classifier builds the wrapper classifier for the configured names.
func (c *Config) Classifier() *decl.Classifier {
	return decl.NewClassifier(c.Wrappers.Shared, c.Wrappers.Exclusive)
}
