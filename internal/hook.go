package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	HookMarker     = "# gitsync: managed hook"
	PostCommitHook = "post-commit"
)

// HookScript returns the shell shim for hookType. The shim publishes after
// every local commit and never fails the commit itself.
func HookScript(hookType string) string {
	return fmt.Sprintf("#!/bin/sh\n%s (%s)\n%s publish --quiet || true\n", HookMarker, hookType, AppName)
}

// IsManagedHook checks if the given script content was written by gitsync.
func IsManagedHook(content string) bool {
	return strings.Contains(content, HookMarker)
}

func hookPath(gitDir, hookType string) string {
	return filepath.Join(gitDir, "hooks", hookType)
}

// InstallHook writes the managed hook into gitDir. A foreign hook is only
// replaced with force, and is then kept next to it as <hook>.bak.
func InstallHook(gitDir, hookType string, force bool) error {
	path := hookPath(gitDir, hookType)

	existing, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return wrapError(CodeIOFailure, "read hook", err)
	case IsManagedHook(string(existing)):
	case !force:
		return newError(CodeInvariantViolation, "install hook", "%s hook already exists (use force to replace it)", hookType)
	default:
		if err := os.WriteFile(path+".bak", existing, 0755); err != nil {
			return wrapError(CodeIOFailure, "back up hook", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return wrapError(CodeIOFailure, "create hooks dir", err)
	}
	if err := os.WriteFile(path, []byte(HookScript(hookType)), 0755); err != nil {
		return wrapError(CodeIOFailure, "write hook", err)
	}
	return nil
}

// UninstallHook removes the managed hook and restores a backed-up original.
// Foreign hooks are left alone.
func UninstallHook(gitDir, hookType string) error {
	path := hookPath(gitDir, hookType)

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return wrapError(CodeIOFailure, "read hook", err)
	}
	if !IsManagedHook(string(content)) {
		return newError(CodeInvariantViolation, "uninstall hook", "%s hook is not managed by %s", hookType, AppName)
	}
	if err := os.Remove(path); err != nil {
		return wrapError(CodeIOFailure, "remove hook", err)
	}

	backup := path + ".bak"
	if _, err := os.Stat(backup); err == nil {
		if err := os.Rename(backup, path); err != nil {
			return wrapError(CodeIOFailure, "restore hook", err)
		}
	}
	return nil
}
