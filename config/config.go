// Package config loads tool configuration from a TOML file, falling back
// to defaults when no file exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"

	"tricoach/contextpack"
	"tricoach/importer"
)

// Config is the shared configuration for the import and coaching tools.
type Config struct {
	// APIBase is the coaching API root, e.g. http://127.0.0.1:8000.
	APIBase string `toml:"api_base"`
	// DBPath is the SQLite database file.
	DBPath string `toml:"db_path"`
	// MaxOutputChars caps the API reply length requested per chat turn.
	MaxOutputChars int `toml:"max_output_chars"`

	Pack   PackConfig   `toml:"pack"`
	Import ImportConfig `toml:"import"`
}

// PackConfig bounds context pack assembly.
type PackConfig struct {
	MaxMessageChars int `toml:"max_message_chars"`
	MaxTotalChars   int `toml:"max_total_chars"`
}

// ImportConfig bounds batch imports.
type ImportConfig struct {
	MaxFiles      int   `toml:"max_files"`
	MaxFileSizeMB int64 `toml:"max_file_size_mb"`
}

// Default returns the production defaults.
func Default() Config {
	budget := contextpack.DefaultBudget()
	limits := importer.DefaultBatchLimits()
	return Config{
		APIBase:        "http://127.0.0.1:8000",
		DBPath:         "tricoach.db",
		MaxOutputChars: 1200,
		Pack: PackConfig{
			MaxMessageChars: budget.MaxMessageChars,
			MaxTotalChars:   budget.MaxTotalChars,
		},
		Import: ImportConfig{
			MaxFiles:      limits.MaxFiles,
			MaxFileSizeMB: limits.MaxFileSize >> 20,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error; the
// defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Budget converts the pack settings to a contextpack budget.
func (c Config) Budget() contextpack.Budget {
	return contextpack.Budget{
		MaxMessageChars: c.Pack.MaxMessageChars,
		MaxTotalChars:   c.Pack.MaxTotalChars,
	}
}

// BatchLimits converts the import settings to batch limits.
func (c Config) BatchLimits() importer.BatchLimits {
	return importer.BatchLimits{
		MaxFiles:    c.Import.MaxFiles,
		MaxFileSize: c.Import.MaxFileSizeMB << 20,
	}
}
