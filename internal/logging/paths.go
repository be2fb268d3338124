package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.docrag/logs, or a directory under os.TempDir when
// the home directory cannot be resolved.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docrag", "logs")
	}
	return filepath.Join(home, ".docrag", "logs")
}

// DefaultLogPath returns the log file used by --debug.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "docrag.log")
}

// EnsureLogDir creates the parent directory of path.
func EnsureLogDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
