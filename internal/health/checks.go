// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

type checkerFunc struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func (c checkerFunc) Name() string                          { return c.name }
func (c checkerFunc) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// CheckerFunc adapts fn to a Checker.
func CheckerFunc(name string, fn func(ctx context.Context) CheckResult) Checker {
	return checkerFunc{name: name, fn: fn}
}

// WritableDir checks that dir exists and accepts new files.
func WritableDir(name, dir string) Checker {
	return CheckerFunc(name, func(context.Context) CheckResult {
		info, err := os.Stat(dir)
		if err != nil {
			return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
		}
		if !info.IsDir() {
			return CheckResult{Status: StatusUnhealthy, Error: "not a directory", Message: dir}
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return CheckResult{Status: StatusUnhealthy, Error: "directory is not writable: " + err.Error()}
		}
		_ = f.Close()
		_ = os.Remove(f.Name())
		return CheckResult{Status: StatusHealthy}
	})
}

// Executable checks that the program named by bin resolves on PATH.
// bin is read on every check so reloaded settings apply.
func Executable(name string, bin func() string) Checker {
	return CheckerFunc(name, func(context.Context) CheckResult {
		path, err := exec.LookPath(bin())
		if err != nil {
			return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		return CheckResult{Status: StatusHealthy, Message: path}
	})
}
