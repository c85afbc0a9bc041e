package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// EnvVar overrides the default workspace root.
const EnvVar = "SONGLEDGER_WORKSPACE"

// Dir names a subdirectory of the workspace root.
type Dir string

const (
	Data    Dir = "data"    // database files
	Imports Dir = "imports" // seed files looked up by name
	Logs    Dir = "logs"    // relative log.file paths
)

var layout = []Dir{Data, Imports, Logs}

var (
	userHomeDir = os.UserHomeDir
	getGOOS     = func() string { return runtime.GOOS }
)

// Prepare creates root (or the platform default when empty) and its
// subdirectories, returning the absolute root.
func Prepare(root string) (string, error) {
	if root == "" {
		def, err := defaultRoot()
		if err != nil {
			return "", err
		}
		root = def
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace path: %w", err)
	}
	for _, d := range layout {
		if err := os.MkdirAll(filepath.Join(abs, string(d)), 0o750); err != nil {
			return "", fmt.Errorf("create workspace dir %s: %w", d, err)
		}
	}
	return abs, nil
}

// Resolve places a relative path inside dir. Absolute paths are returned
// unchanged.
func Resolve(root string, dir Dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, string(dir), path)
}

// StorePath resolves a database path against the data directory.
func StorePath(root, path string) string {
	return Resolve(root, Data, path)
}

// FindImport returns path when it exists as given, otherwise its location
// under the imports directory.
func FindImport(root, path string) string {
	if _, err := os.Stat(path); err == nil || filepath.IsAbs(path) {
		return path
	}
	return Resolve(root, Imports, path)
}

// Subdirectories lists the directories Prepare creates.
func Subdirectories() []string {
	out := make([]string, 0, len(layout))
	for _, d := range layout {
		out = append(out, string(d))
	}
	return out
}

type rootKey struct{}

// WithContext stores the prepared workspace root on ctx.
func WithContext(ctx context.Context, root string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, rootKey{}, root)
}

// FromContext returns the root stored by WithContext.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	root, ok := ctx.Value(rootKey{}).(string)
	return root, ok && root != ""
}

func defaultRoot() (string, error) {
	if dir := os.Getenv(EnvVar); dir != "" {
		return dir, nil
	}
	switch getGOOS() {
	case "darwin":
		return underHome("Library", "Application Support", "SongLedger")
	case "windows":
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "SongLedger"), nil
		}
		return underHome("AppData", "Roaming", "SongLedger")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "songledger"), nil
		}
		return underHome(".local", "share", "songledger")
	}
}

func underHome(elem ...string) (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if home == "" {
		return "", errors.New("cannot determine workspace directory: empty home")
	}
	return filepath.Join(append([]string{home}, elem...)...), nil
}
