// Package paths resolves the strata configuration and data directories.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appDir is the directory name strata uses under platform base directories.
const appDir = "strata"

// Project-local directory names, used when a project keeps its own data.
const (
	LocalConfigDirName = ".strata"
	LocalDataDirName   = ".strata-db"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "STRATA_CONFIG_DIR"
	EnvDataDir   = "STRATA_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/strata (fallback ~/.config/strata)
// macOS:   ~/Library/Application Support/strata
// Windows: %APPDATA%/strata
func DefaultConfigDir() (string, error) {
	return platformBase("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/strata (fallback ~/.local/share/strata)
// macOS:   ~/Library/Application Support/strata
// Windows: %APPDATA%/strata
func DefaultDataDir() (string, error) {
	return platformBase("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// platformBase applies the XDG rules on Linux and os.UserConfigDir elsewhere.
func platformBase(xdgVar, homeFallback string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appDir), nil
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeFallback, appDir), nil
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > STRATA_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > STRATA_DATA_DIR env > configValue (data_dir in config.yaml) >
// DefaultDataDir(). Relative values are made absolute.
func ResolveDataDir(flag, configValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	return DefaultDataDir()
}

// LocalConfigDir returns the project-local configuration directory under dir.
func LocalConfigDir(dir string) (string, error) {
	return filepath.Abs(filepath.Join(dir, LocalConfigDirName))
}

// LocalDataDir returns the project-local data directory under dir.
func LocalDataDir(dir string) (string, error) {
	return filepath.Abs(filepath.Join(dir, LocalDataDirName))
}
