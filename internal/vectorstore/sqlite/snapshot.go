// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package sqlite

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/inkstone-dev/inkstone/internal/vectorstore"
)

// snapshotDir resolves the directory for a named snapshot, a sibling
// of the persist directory so a restore can wipe the live collection
// without touching its own source.
func (b *Backend) snapshotDir(name string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(b.cfg.PersistDir)), "snapshots", name)
}

// CreateSnapshot copies the persist directory into the snapshot tree,
// replacing any previous snapshot with the same name.
func (b *Backend) CreateSnapshot(name string) error {
	if b.db == nil {
		return errNotInitialized
	}

	// Fold the WAL into the main database file so the copy is a
	// complete, self-contained collection.
	if _, err := b.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("checkpointing wal: %w", err)
	}

	target := b.snapshotDir(name)
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("clearing previous snapshot: %w", err)
	}
	if err := copyDir(b.cfg.PersistDir, target, ""); err != nil {
		return fmt.Errorf("copying collection to snapshot: %w", err)
	}
	return nil
}

// RestoreSnapshot replaces the live collection with the named
// snapshot's contents and reopens the database on the restored files.
func (b *Backend) RestoreSnapshot(name string) error {
	source := b.snapshotDir(name)
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("restoring snapshot %q: %w", name, vectorstore.ErrSnapshotNotFound)
		}
		return fmt.Errorf("reading snapshot %q: %w", name, err)
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return fmt.Errorf("closing live collection: %w", err)
		}
		b.db = nil
	}

	if err := os.RemoveAll(b.cfg.PersistDir); err != nil {
		return fmt.Errorf("clearing live collection: %w", err)
	}
	if err := copyDir(source, b.cfg.PersistDir, vectorstore.ManifestFile); err != nil {
		return fmt.Errorf("copying snapshot to collection: %w", err)
	}

	if err := b.Initialize(b.cfg); err != nil {
		return fmt.Errorf("reopening restored collection: %w", err)
	}
	return nil
}

// copyDir copies src into dst recursively, skipping files whose base
// name matches skip.
func copyDir(src, dst, skip string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if skip != "" && d.Name() == skip {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
