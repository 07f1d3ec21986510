package store

import (
	"log/slog"

	"github.com/jacentio/arbor/cell"
)

// Config holds configuration for the Store.
type Config struct {
	// Logger receives debug events for writes and removals, and warnings for
	// cascade branches that could not be followed.
	// Default: slog.Default()
	Logger *slog.Logger

	// NewCell creates the cells that back reactive fields and entry
	// reference counts.
	// Default: cell.NewFactory() (cell.Signal)
	NewCell cell.Factory
}

// DefaultConfig returns a configuration using signal cells and the default logger.
func DefaultConfig() Config {
	return Config{
		Logger:  slog.Default(),
		NewCell: cell.NewFactory(),
	}
}

// validate fills unset fields with defaults.
func (c *Config) validate() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.NewCell == nil {
		c.NewCell = cell.NewFactory()
	}
}
