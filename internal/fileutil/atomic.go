// Package fileutil writes the config file and the sealed mnemonic without
// ever leaving a partially written file behind.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrEmptyPath indicates an empty file path was provided.
	ErrEmptyPath = errors.New("path is empty")

	// ErrExists indicates the target exists and overwriting was not requested.
	ErrExists = errors.New("file already exists")
)

// Options controls WriteFile.
type Options struct {
	// Perm is the final file mode. Zero means 0o600.
	Perm os.FileMode
	// DirPerm is used when the parent directory has to be created. Zero means 0o700.
	DirPerm os.FileMode
	// Overwrite replaces an existing file. Without it an existing target
	// yields ErrExists and is left untouched.
	Overwrite bool
}

// WriteFile creates the parent directory if needed and writes data to path
// atomically.
func WriteFile(path string, data []byte, opts Options) error {
	if path == "" {
		return ErrEmptyPath
	}
	if opts.Perm == 0 {
		opts.Perm = 0o600
	}
	if opts.DirPerm == 0 {
		opts.DirPerm = 0o700
	}

	if !opts.Overwrite {
		if _, err := os.Lstat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), opts.DirPerm); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	return WriteAtomic(path, data, opts.Perm)
}

// WriteAtomic writes data to path atomically with the provided permissions.
// It writes to a temp file in the same directory, fsyncs, then renames.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return ErrEmptyPath
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return fmt.Errorf("setting temp file permissions: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil { //nolint:gosec // G703: path comes from config, not remote input
		_ = os.Remove(tmpPath)
		committed = true
		return fmt.Errorf("renaming temp file: %w", err)
	}
	committed = true

	// Best effort directory sync for rename durability.
	if dirFile, err := os.Open(dir); err == nil { //nolint:gosec // G304: dir is derived from path
		_ = dirFile.Sync()
		_ = dirFile.Close()
	}

	return nil
}
