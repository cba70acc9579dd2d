// Package config loads .cyphersql.yaml settings, walking up from a
// starting directory the way the teacher's config loader does, then
// layers environment-variable overrides on top via viper.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when no .cyphersql.yaml is found walking
// up from the starting directory. It is not an error to have no config
// file at all — callers fall back to Default().
var ErrConfigNotFound = errors.New("config: no .cyphersql.yaml found")

// DefaultConfigNames are the filenames searched for, in order.
var DefaultConfigNames = []string{".cyphersql.yaml", ".cyphersql.yml"}

// Config holds the settings read from .cyphersql.yaml plus CYPHERSQL_*
// environment overrides.
type Config struct {
	// MaxHops bounds variable-length relationship traversal depth, both
	// in the interpreter's BFS and in generated recursive CTEs.
	MaxHops int `yaml:"max_hops,omitempty" mapstructure:"max_hops"`

	// OutputFormat is the CLI's default result rendering: "table" or "json".
	OutputFormat string `yaml:"output_format,omitempty" mapstructure:"output_format"`

	// VerifySQL names an on-disk SQLite file for executing generated SQL
	// against. The field is parsed and env-overridable, but no CLI
	// command reads it or opens the file: modernc.org/sqlite stays scoped
	// to sqlgen's own tests.
	VerifySQL string `yaml:"verify_sql,omitempty" mapstructure:"verify_sql"`
}

// Default returns the configuration used when no .cyphersql.yaml is
// found and no environment overrides are set.
func Default() Config {
	return Config{
		MaxHops:      10,
		OutputFormat: "table",
	}
}

// FindConfig searches for a config file starting from dir and walking
// up to the filesystem root.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for d := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(d, name)

			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(d)
		if parent == d {
			return "", ErrConfigNotFound
		}

		d = parent
	}
}

// LoadConfigFile loads a config from a specific path with yaml.v3,
// without any environment-variable layering.
func LoadConfigFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Load finds the nearest .cyphersql.yaml walking up from dir, merges it
// under Default(), and overlays any CYPHERSQL_* environment variables
// via viper. A missing config file is not an error — only env overrides
// and defaults apply in that case.
func Load(dir string) (Config, error) {
	cfg := Default()

	path, err := FindConfig(dir)
	switch {
	case err == nil:
		cfg, err = LoadConfigFile(path)
		if err != nil {
			return cfg, err
		}
	case errors.Is(err, ErrConfigNotFound):
		// fall through with defaults
	default:
		return cfg, err
	}

	v := viper.New()
	v.SetEnvPrefix("cyphersql")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("max_hops", cfg.MaxHops)
	v.SetDefault("output_format", cfg.OutputFormat)
	v.SetDefault("verify_sql", cfg.VerifySQL)

	cfg.MaxHops = v.GetInt("max_hops")
	cfg.OutputFormat = v.GetString("output_format")
	cfg.VerifySQL = v.GetString("verify_sql")

	return cfg, nil
}
