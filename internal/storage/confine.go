// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// confine joins root and rel and ensures the result stays physically under
// root after symlink resolution. rel must be relative.
func confine(root, rel string) (string, error) {
	if strings.Contains(rel, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", rel)
	}
	cleanRel := filepath.Clean(rel)
	if filepath.IsAbs(cleanRel) {
		return "", fmt.Errorf("path must be relative: %s", rel)
	}
	if cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt: %s", rel)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}

	full := filepath.Join(realRoot, cleanRel)
	real := full
	if _, err := os.Lstat(full); err == nil {
		if real, err = filepath.EvalSymlinks(full); err != nil {
			return "", fmt.Errorf("resolve path: %w", err)
		}
	}

	r, err := filepath.Rel(realRoot, real)
	if err != nil {
		return "", fmt.Errorf("rel: %w", err)
	}
	if r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root: %s", real)
	}
	return real, nil
}
