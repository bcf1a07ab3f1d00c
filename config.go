package lattice

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-file form of the Engine options, used by the CLI.
type Config struct {
	// DBPath is where the SQLite index lives. Relative paths resolve
	// against the project root.
	DBPath string `yaml:"db_path"`

	// Root is the project root stored paths are made relative to.
	Root string `yaml:"root"`

	// Workers is the parallel indexing worker count. 0 means NumCPU.
	Workers int `yaml:"workers"`

	// Languages restricts indexing to the named primary languages.
	// Empty means all.
	Languages []string `yaml:"languages"`

	// Excludes are doublestar globs skipped during directory walks,
	// in addition to .gitignore.
	Excludes []string `yaml:"excludes"`

	// AnalyzerTimeout bounds a single analyzer invocation.
	AnalyzerTimeout time.Duration `yaml:"analyzer_timeout"`

	// ScriptsDir loads Risor analyzer scripts from disk instead of the
	// embedded set.
	ScriptsDir string `yaml:"scripts_dir"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		DBPath: ".lattice/index.db",
		Root:   ".",
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file is
// not an error; it returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Options converts the file config into Engine options.
func (c Config) Options() []Option {
	opts := []Option{WithRoot(c.Root)}
	if len(c.Languages) > 0 {
		opts = append(opts, WithLanguages(c.Languages...))
	}
	if len(c.Excludes) > 0 {
		opts = append(opts, WithExcludes(c.Excludes...))
	}
	if c.AnalyzerTimeout > 0 {
		opts = append(opts, WithAnalyzerTimeout(c.AnalyzerTimeout))
	}
	if c.Workers > 0 {
		opts = append(opts, WithWorkers(c.Workers))
	}
	return opts
}
