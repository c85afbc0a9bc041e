// pkg/config/config.go
package config

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

var validate = validator.New()

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a manager with an empty koanf instance.
func NewManager() *Manager {
	return &Manager{koanfInstance: koanf.New(".")}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Path: "songledger.db",
			Lock: true,
		},
		Buffer: BufferConfig{
			MaxHistory:  10,
			ColumnKinds: map[string]string{},
		},
		Import: ImportConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// DefaultConfigAsMap flattens DefaultConfig for koanf's confmap provider so
// koanf knows every key.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"store.path": def.Store.Path,
		"store.lock": def.Store.Lock,

		"buffer.max_history":  def.Buffer.MaxHistory,
		"buffer.column_kinds": map[string]interface{}{},
		"buffer.default_sort": def.Buffer.DefaultSort,

		"import.debounce": def.Import.Debounce,

		"workspace.dir": def.Workspace.Dir,
	}
}

// Load merges defaults, the config file, environment and flags, then
// validates the result. An explicitly passed --config file must exist.
func (m *Manager) Load(flags *pflag.FlagSet, configFile string) error {
	var debug, explicit bool
	if flags != nil {
		debug, _ = flags.GetBool("debug")
		explicit = flags.Changed("config")
	}
	return m.LoadSources(DefaultSources(configFile, explicit, flags, debug)...)
}

// LoadSources applies sources lowest priority first. The manager keeps its
// previous state when any source or validation fails.
func (m *Manager) LoadSources(sources ...Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sorted := slices.Clone(sources)
	slices.SortStableFunc(sorted, func(a, b Source) int { return a.Priority() - b.Priority() })

	k := koanf.New(".")
	for _, src := range sorted {
		if err := src.Load(k); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := k.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return err
	}

	m.koanfInstance = k
	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.currentConfig
	cfg.Buffer.ColumnKinds = make(map[string]string, len(m.currentConfig.Buffer.ColumnKinds))
	for k, v := range m.currentConfig.Buffer.ColumnKinds {
		cfg.Buffer.ColumnKinds[k] = v
	}
	return cfg
}

// Koanf exposes the merged key space, mainly for `config show`-style output.
func (m *Manager) Koanf() *koanf.Koanf {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"log-file":      "log.file",
	"store":         "store.path",
	"no-lock":       "",
	"max-history":   "buffer.max_history",
	"workspace-dir": "workspace.dir",
}

// BindFlags defines the global flags that override configuration values.
func BindFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()

	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "Log format (text, json)")
	flags.String("log-file", "", "Write logs to this file instead of stderr")
	flags.String("store", defaults.Store.Path, "Database file")
	flags.Int("max-history", defaults.Buffer.MaxHistory, "Cached filter results per table")
}
