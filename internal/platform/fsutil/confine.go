// Package fsutil keeps resolved paths inside the recordings root.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

var (
	// ErrOutsideRoot is returned when a path would resolve outside root,
	// lexically or through a symlink.
	ErrOutsideRoot = errors.New("path escapes root")

	// ErrNotRegular is returned by RegularFile for directories, devices and
	// other non-regular entries.
	ErrNotRegular = errors.New("not a regular file")
)

// HasTraversal reports whether s contains the parent-directory token.
// Any occurrence counts, including inside a longer name.
func HasTraversal(s string) bool {
	return strings.Contains(s, "..")
}

// IsMissing reports whether err means the path does not exist, including
// the case where a regular file sits where a directory is expected.
func IsMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// Confine joins root and the relative target and returns the resolved path.
// The result must lie underneath the symlink-resolved root.
func Confine(root, rel string) (string, error) {
	if strings.Contains(rel, "\\") {
		return "", fmt.Errorf("%w: backslash in %q", ErrOutsideRoot, rel)
	}
	cleanRel := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleanRel) {
		return "", fmt.Errorf("%w: %q is absolute", ErrOutsideRoot, rel)
	}
	if cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root %q: %w", root, err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		if !IsMissing(err) {
			return "", fmt.Errorf("resolve root: %w", err)
		}
		realRoot = absRoot
	}

	full := filepath.Join(realRoot, cleanRel)
	realPath, err := filepath.EvalSymlinks(full)
	if err != nil {
		if !IsMissing(err) {
			return "", fmt.Errorf("resolve %q: %w", rel, err)
		}
		// Missing targets are reported by the caller's existence check.
		realPath = full
	}

	inside, err := filepath.Rel(realRoot, realPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutsideRoot, err)
	}
	if inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q resolves to %s", ErrOutsideRoot, rel, realPath)
	}
	return realPath, nil
}

// RegularFile stats path and requires a regular file.
func RegularFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	return info, nil
}
