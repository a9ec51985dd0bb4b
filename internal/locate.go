package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	AppName        = "gitsync"
	RepoConfigFile = "gitsync.yaml"
)

// FindRepoRoot walks up from dir to the first directory holding a .git
// directory and returns that working tree root.
func FindRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	for {
		info, err := os.Stat(filepath.Join(dir, ".git"))
		if err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", newError(CodeReferenceNotFound, "find repository", "not a git repository (no .git found)")
		}
		dir = parent
	}
}

// UserConfigPath is $XDG_CONFIG_HOME/gitsync/config.yaml.
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// RepoConfigPath lives in the git dir so it never shows up as a working tree
// change.
func RepoConfigPath(root string) string {
	return filepath.Join(root, ".git", RepoConfigFile)
}

// ConfigPaths lists config files from lowest to highest precedence.
func ConfigPaths(root string, extra ...string) []string {
	paths := []string{UserConfigPath()}
	if root != "" {
		paths = append(paths, RepoConfigPath(root))
	}
	return append(paths, extra...)
}
