package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable wirekit reads.
const EnvPrefix = "WIREKIT"

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver finds config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns explicit paths if provided, otherwise searches dir.
func (r *Resolver) ResolveFiles(dir string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = r.first(dir, "wirekit.yaml", "wirekit.yml", ".wirekit.yaml", filepath.Join("config", "wirekit.yaml"))
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = r.first(dir, ".env.wirekit", ".env")
	}
	return resolved
}

func (r *Resolver) first(dir string, names ...string) string {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if r.FileSystem.Exists(path) {
			return path
		}
	}
	return ""
}

// FlagBinding maps a command-line flag to a config key.
type FlagBinding struct {
	Flag string
	Key  string
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	Dir        string // Directory searched for config files (default ".")
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
	Flags      *pflag.FlagSet
	Bindings   []FlagBinding
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithDir sets the directory searched for config and env files.
func WithDir(dir string) LoaderOption {
	return func(lc *LoaderConfig) { lc.Dir = dir }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithFlags binds flags to config keys. Only flags the user set override
// file and environment values.
func WithFlags(fs *pflag.FlagSet, bindings ...FlagBinding) LoaderOption {
	return func(lc *LoaderConfig) {
		lc.Flags = fs
		lc.Bindings = append(lc.Bindings, bindings...)
	}
}

// Load resolves, layers, defaults and validates the configuration.
func Load(opts ...LoaderOption) (*Config, error) {
	lc := LoaderConfig{Dir: "."}
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(lc.Dir, lc)

	cfg := &Config{}
	if err := loadFromResolvedFiles(cfg, files, lc); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromResolvedFiles layers file, env and flags into cfg.
func loadFromResolvedFiles(cfg *Config, files ResolvedFiles, lc LoaderConfig) error {
	v := viper.New()

	// 1. Config file
	if files.ConfigFile != "" {
		if !lc.FileSystem.Exists(files.ConfigFile) {
			return fmt.Errorf("config file %s not found", files.ConfigFile)
		}
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", files.ConfigFile, err)
		}
	}

	// 2. .env file, then the environment it populated
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			return fmt.Errorf("loading env file %s: %w", files.EnvFile, err)
		}
	}
	bindEnv(v, os.Environ())

	// 3. Changed flags
	if lc.Flags != nil {
		for _, b := range lc.Bindings {
			f := lc.Flags.Lookup(b.Flag)
			if f == nil {
				return fmt.Errorf("unknown flag %q bound to %s", b.Flag, b.Key)
			}
			if f.Changed {
				if err := v.BindPFlag(b.Key, f); err != nil {
					return fmt.Errorf("binding flag %s: %w", b.Flag, err)
				}
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// bindEnv binds every WIREKIT_* variable to each key it may denote. Bound
// env values rank below changed flags and above the config file.
func bindEnv(v *viper.Viper, environ []string) {
	for _, env := range environ {
		key, _, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix+"_") {
			continue
		}
		for _, variant := range generateEnvKeyVariants(strings.TrimPrefix(key, EnvPrefix+"_")) {
			_ = v.BindEnv(variant, key)
		}
	}
}

// generateEnvKeyVariants creates the config keys an environment variable
// may bind to, since underscores separate both levels and words.
//
//	SERVER_PORT            -> [server_port, server.port]
//	LOGGING_NO_COLOR       -> [logging_no_color, logging.no.color, logging.no_color]
//	SERVER_SHUTDOWN_TIMEOUT -> [..., server.shutdown_timeout, ...]
func generateEnvKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")

	if len(parts) <= 1 {
		return []string{lowerKey}
	}

	variants := []string{
		lowerKey,
		strings.ReplaceAll(lowerKey, "_", "."),
	}
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		suffix := strings.Join(parts[i:], "_")
		variants = append(variants, prefix+"."+suffix)
	}

	return removeDuplicates(variants)
}

// removeDuplicates removes duplicate strings from a slice.
func removeDuplicates(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}
