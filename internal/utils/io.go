// Package utils provides internal helpers shared by the writers and sinks.
//
// SecurePath confines user-supplied file paths to a base directory so that log files and
// record files cannot be redirected outside of it.
package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hyp3rd/ewrap"
)

// SecurePath resolves path inside base and returns the absolute result. An empty base means
// the system temporary directory. Relative paths are joined to base; absolute paths are
// accepted only when they already lie inside base. Paths containing traversal sequences, or
// whose existing symlinks resolve outside base, are rejected.
func SecurePath(base, path string) (string, error) {
	if path == "" {
		return "", ewrap.New("path cannot be empty")
	}

	if base == "" {
		base = os.TempDir()
	}

	base, err := filepath.Abs(filepath.Clean(base))
	if err != nil {
		return "", ewrap.Wrap(err, "resolving base directory").WithMetadata("base", base)
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return "", ewrap.New("invalid path contains directory traversal sequence").
			WithMetadata("path", path)
	}

	fullPath := cleanPath
	if !filepath.IsAbs(cleanPath) {
		fullPath = filepath.Join(base, cleanPath)
	}

	if !within(base, fullPath) {
		return "", ewrap.New("path is outside of the base directory").
			WithMetadata("path", path).
			WithMetadata("base", base)
	}

	// Only existing paths can be resolved.
	resolvedPath, err := filepath.EvalSymlinks(fullPath)
	if err == nil {
		resolvedBase, baseErr := filepath.EvalSymlinks(base)
		if baseErr != nil {
			resolvedBase = base
		}

		if !within(resolvedBase, resolvedPath) {
			return "", ewrap.New("path resolves to location outside of the base directory").
				WithMetadata("path", path)
		}
	}

	return fullPath, nil
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}

	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
