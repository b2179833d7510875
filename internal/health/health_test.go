// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(name string, s Status) Checker {
	return CheckerFunc(name, func(context.Context) CheckResult { return CheckResult{Status: s} })
}

func TestReadyAggregation(t *testing.T) {
	tests := []struct {
		name      string
		checks    []Checker
		wantReady bool
		want      Status
	}{
		{"no checks", nil, true, StatusHealthy},
		{"all healthy", []Checker{fixed("a", StatusHealthy), fixed("b", StatusHealthy)}, true, StatusHealthy},
		{"degraded", []Checker{fixed("a", StatusHealthy), fixed("b", StatusDegraded)}, true, StatusDegraded},
		{"unhealthy wins", []Checker{fixed("a", StatusUnhealthy), fixed("b", StatusDegraded)}, false, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1")
			for _, c := range tt.checks {
				m.Register(c)
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))
		})
	}
}

func TestServeReady(t *testing.T) {
	m := NewManager("v1")
	m.Register(fixed("disk", StatusUnhealthy))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Equal(t, "v1", body.Version)
	assert.Equal(t, StatusUnhealthy, body.Checks["disk"].Status)
}

func TestWritableDir(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, StatusHealthy, WritableDir("d", dir).Check(context.Background()).Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file removed")

	missing := WritableDir("d", filepath.Join(dir, "nope")).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, missing.Status)

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.Equal(t, StatusUnhealthy, WritableDir("d", file).Check(context.Background()).Status)
}

func TestExecutable(t *testing.T) {
	missing := Executable("ffmpeg", func() string { return "definitely-not-a-real-binary-xyz" })
	assert.Equal(t, StatusUnhealthy, missing.Check(context.Background()).Status)
	assert.Equal(t, "ffmpeg", missing.Name())

	bin, err := os.Executable()
	require.NoError(t, err)
	found := Executable("self", func() string { return bin })
	assert.Equal(t, StatusHealthy, found.Check(context.Background()).Status)
}
