package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/canfiles/canfiles/internal/constants"
)

// DefaultPath returns <XDG config home>/canfiles/config.ini.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, constants.AppName, constants.ConfigFileName)
}

// DefaultDownloadDir returns the user's download directory.
func DefaultDownloadDir() string {
	if xdg.UserDirs.Download != "" {
		return xdg.UserDirs.Download
	}
	return filepath.Join(xdg.Home, "Downloads")
}

// LogDirectory returns the directory relative log file names resolve in:
// <XDG state home>/canfiles, which is %LOCALAPPDATA%\canfiles on Windows.
func LogDirectory() string {
	return filepath.Join(xdg.StateHome, constants.AppName)
}

// resolveLogFile expands ~ and places bare relative names under
// LogDirectory. Empty stays empty.
func resolveLogFile(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = ExpandHome(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(LogDirectory(), p)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
