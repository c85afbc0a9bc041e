// pkg/config/source.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by EnvSource.
const EnvPrefix = "SONGLEDGER_"

// Load priorities of the built-in sources. Higher values override lower ones.
const (
	PriorityDefaults = 10
	PriorityFile     = 20
	PriorityEnv      = 30
	PriorityFlags    = 40
)

// Source feeds values into a koanf instance. Manager.LoadSources applies
// sources in ascending Priority order.
type Source interface {
	Name() string
	Priority() int
	Load(k *koanf.Koanf) error
}

// DefaultSource loads DefaultConfig so every known key exists.
type DefaultSource struct{}

func (DefaultSource) Name() string  { return "defaults" }
func (DefaultSource) Priority() int { return PriorityDefaults }

func (DefaultSource) Load(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil)
}

// FileSource reads a YAML file. A missing file is ignored unless Required.
type FileSource struct {
	Path     string
	Required bool
}

func (s FileSource) Name() string  { return "file:" + s.Path }
func (s FileSource) Priority() int { return PriorityFile }

func (s FileSource) Load(k *koanf.Koanf) error {
	if s.Path == "" {
		return nil
	}
	err := k.Load(file.Provider(s.Path), yaml.Parser())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist) && !s.Required:
		return nil
	default:
		return fmt.Errorf("read %s: %w", s.Path, err)
	}
}

// EnvSource maps PREFIX_SECTION_KEY variables to section.key:
//
//	SONGLEDGER_LOG_LEVEL          -> log.level
//	SONGLEDGER_BUFFER_MAX_HISTORY -> buffer.max_history
type EnvSource struct {
	Prefix string // EnvPrefix when empty
}

func (EnvSource) Name() string  { return "env" }
func (EnvSource) Priority() int { return PriorityEnv }

func (s EnvSource) Load(k *koanf.Koanf) error {
	prefix := s.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	return k.Load(env.Provider(prefix, ".", func(name string) string {
		return envKey(prefix, name)
	}), nil)
}

// envKey returns the config key for an environment variable, or "" when
// the variable names no section (SONGLEDGER_WORKSPACE belongs to the
// workspace package, not to config).
func envKey(prefix, name string) string {
	section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, prefix)), "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

// FlagSource copies changed command-line flags listed in flagKeys.
type FlagSource struct {
	Flags *pflag.FlagSet
	Debug bool // forces log.level=debug
}

func (FlagSource) Name() string  { return "flags" }
func (FlagSource) Priority() int { return PriorityFlags }

func (s FlagSource) Load(k *koanf.Koanf) error {
	if s.Flags != nil {
		provider := posflag.ProviderWithFlag(s.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(s.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return err
		}
		if noLock, _ := s.Flags.GetBool("no-lock"); noLock {
			if err := k.Set("store.lock", false); err != nil {
				return err
			}
		}
	}
	if s.Debug {
		return k.Set("log.level", "debug")
	}
	return nil
}

// DefaultSources returns defaults, file, env and flags. The file must
// exist when requireFile is set.
func DefaultSources(path string, requireFile bool, flags *pflag.FlagSet, debug bool) []Source {
	return []Source{
		DefaultSource{},
		FileSource{Path: path, Required: requireFile},
		EnvSource{Prefix: EnvPrefix},
		FlagSource{Flags: flags, Debug: debug},
	}
}
