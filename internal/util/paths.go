package util

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeDir returns the user's home directory
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// ExpandPath expands a leading ~ to the home directory and resolves relative
// paths against baseDir. An empty baseDir leaves relative paths untouched.
func ExpandPath(p, baseDir string) string {
	if p == "" {
		return ""
	}
	if p == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(HomeDir(), p[2:])
	}
	if baseDir != "" && !filepath.IsAbs(p) {
		return filepath.Join(baseDir, p)
	}
	return filepath.Clean(p)
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
