package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigFileName is looked up in ConfigDir when no --config is given.
const ConfigFileName = "config.yaml"

// ConfigDir returns the configuration directory.
// Order: XDG_CONFIG_HOME/songledger, platform-specific fallback.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "songledger")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "SongLedger")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "songledger")
}

// ConfigFile returns the default configuration file path. The file need not
// exist; a missing file is skipped when loading.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}
