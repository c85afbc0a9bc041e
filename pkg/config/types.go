// pkg/config/types.go
package config

import "time"

// Config is the root configuration structure for songledger.
type Config struct {
	Log       LogConfig       `description:"Logging configuration" koanf:"log"`
	Store     StoreConfig     `description:"Database configuration" koanf:"store"`
	Buffer    BufferConfig    `description:"Live buffer configuration" koanf:"buffer"`
	Import    ImportConfig    `description:"Seed import configuration" koanf:"import"`
	Workspace WorkspaceConfig `description:"Workspace configuration" koanf:"workspace"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level" koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `description:"Log format: json | text" koanf:"format" validate:"oneof=json text"`
	File   string `description:"Log file path" koanf:"file"` // empty logs to stderr
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	// Path is relative to the workspace data directory unless absolute.
	Path string `description:"Database file" koanf:"path" validate:"required"`
	Lock bool   `description:"Hold a lock file while the database is open" koanf:"lock"`
}

// BufferConfig tunes the keyed live buffers.
type BufferConfig struct {
	MaxHistory  int               `description:"Cached filter results per table" koanf:"max_history" validate:"min=1,max=1000"`
	ColumnKinds map[string]string `description:"Comparison kind per column name" koanf:"column_kinds" validate:"dive,oneof=text integer duration date"`
	// DefaultSort is "column[:asc|desc]"; empty keeps natural order.
	DefaultSort string `description:"Initial sort for every table" koanf:"default_sort"`
}

// ImportConfig controls seed imports.
type ImportConfig struct {
	Debounce time.Duration `description:"Delay before re-importing a changed seed" koanf:"debounce" validate:"min=0"`
}

// WorkspaceConfig locates the on-disk workspace.
type WorkspaceConfig struct {
	Dir string `description:"Workspace root directory" koanf:"dir"`
}
