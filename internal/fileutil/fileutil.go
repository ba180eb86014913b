package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temp file beside path, verifies the
// bytes on disk by SHA256, and renames it over path. A failed write leaves
// the previous file untouched.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := verify(tmp, data); err != nil {
		cleanup()
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func verify(f *os.File, want []byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	hasher := sha256.New()
	written, err := io.Copy(hasher, f)
	if err != nil {
		return err
	}
	if written != int64(len(want)) {
		return fmt.Errorf("size mismatch: wrote %d bytes, read back %d", len(want), written)
	}
	sum := sha256.Sum256(want)
	if !bytes.Equal(hasher.Sum(nil), sum[:]) {
		return fmt.Errorf("hash mismatch: file corrupted during write")
	}
	return nil
}
