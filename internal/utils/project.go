package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// UserStateDir returns ~/.blockext, creating it if needed.
func UserStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".blockext")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// NormalizeProjectRoot resolves rootPath to a clean absolute path, following
// symlinks when possible so that the same project always gets one ID.
func NormalizeProjectRoot(rootPath string) (string, error) {
	rootPath = strings.TrimSpace(rootPath)
	if rootPath == "" {
		rootPath = "."
	}
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs), nil
}

// ComputeProjectID fingerprints a normalized project root.
func ComputeProjectID(normalizedRoot string) (string, error) {
	root, err := NormalizeProjectRoot(normalizedRoot)
	if err != nil {
		return "", err
	}
	key := filepath.ToSlash(root)
	if runtime.GOOS == "windows" {
		key = strings.ToLower(key)
	}
	return HashContent(key), nil
}
