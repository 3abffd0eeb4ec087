package paths

import (
	"os"
	"path/filepath"
)

// GetConfigDir returns the directory holding config.yaml.
//
// If the home directory cannot be determined, it falls back to a directory
// under the system temporary directory.
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".gencommit-config"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".config", "gencommit"))
}

// GetDataDir returns the directory for debug logs.
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".gencommit"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".gencommit"))
}

// DebugLogFile is the default --log-file.
func DebugLogFile() string {
	return filepath.Join(GetDataDir(), "gencommit.debug.log")
}
