// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !windows

package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/oggconv/internal/log"
)

// writeAtomic streams r into path through a renameio pending file: data is
// fsynced and renamed into place only after the copy succeeded.
func writeAtomic(ctx context.Context, path string, r io.Reader) (int64, error) {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return 0, fmt.Errorf("create pending upload: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			log.FromContext(ctx).Debug().Err(err).Msg("cleanup pending upload")
		}
	}()

	n, err := io.Copy(pending, r)
	if err != nil {
		return n, fmt.Errorf("write upload: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return n, fmt.Errorf("commit upload: %w", err)
	}
	return n, nil
}
