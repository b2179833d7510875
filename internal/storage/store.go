// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package storage places uploads and converted files on disk and resolves
// download tokens.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ManuGH/oggconv/internal/ffmpeg"
	"github.com/ManuGH/oggconv/internal/log"
)

var (
	// ErrNotFound is returned when a download token names no file.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidToken is returned for tokens that are not output file names.
	ErrInvalidToken = errors.New("invalid download token")
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*\.ogg$`)

// Store owns the upload and output directories.
type Store struct {
	uploadDir string
	outputDir string
}

// New creates both directories if needed.
func New(uploadDir, outputDir string) (*Store, error) {
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &Store{uploadDir: uploadDir, outputDir: outputDir}, nil
}

func (s *Store) UploadDir() string { return s.uploadDir }
func (s *Store) OutputDir() string { return s.outputDir }

// SaveUpload writes r into the upload directory under a fresh random name and
// returns the path. The file only appears once fully written; on error
// nothing is left behind.
func (s *Store) SaveUpload(ctx context.Context, r io.Reader) (string, int64, error) {
	path := filepath.Join(s.uploadDir, uuid.NewString())
	n, err := writeAtomic(ctx, path, r)
	if err != nil {
		return "", n, err
	}
	log.FromContext(ctx).Debug().
		Str(log.FieldPath, path).
		Int64("bytes", n).
		Str(log.FieldEvent, "upload.stored").
		Msg("upload stored")
	return path, n, nil
}

// Resolve maps a download token to a file inside the output directory.
func (s *Store) Resolve(token string) (string, error) {
	if !tokenPattern.MatchString(token) {
		return "", fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	path, err := confine(s.outputDir, token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, token)
		}
		return "", fmt.Errorf("stat %s: %w", token, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, token)
	}
	return path, nil
}

// Token returns the download token of an output path.
func Token(outputPath string) string {
	return filepath.Base(outputPath)
}

// DisplayName derives the download name from the client's original file
// name: same stem, .ogg extension.
func DisplayName(original string) string {
	base := original[lastSlash(original)+1:]
	stem := base[:len(base)-len(filepath.Ext(base))]
	if strings.TrimSpace(stem) == "" || stem == "." || stem == ".." {
		stem = "converted"
	}
	return stem + ffmpeg.OutputExt
}

// lastSlash returns the index of the last slash or backslash in s, or -1. Browsers on
// Windows may send full client paths.
func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\\' || s[i] == '/' {
			return i
		}
	}
	return -1
}
