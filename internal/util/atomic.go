// Package util provides file helpers shared by the bcf commands.
package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// PendingFile is a temporary file that replaces its target on Commit.
// Readers of the target never see a partially written archive.
type PendingFile struct {
	*os.File
	target string
	perm   os.FileMode
	done   bool
}

// CreatePending opens a temporary file next to path, creating missing
// directories.
func CreatePending(path string, perm os.FileMode) (*PendingFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	// Same directory, so the final rename stays on one filesystem.
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &PendingFile{File: f, target: path, perm: perm}, nil
}

// Commit syncs the temporary file and renames it over the target.
func (p *PendingFile) Commit() error {
	if p.done {
		return fmt.Errorf("%s already committed or aborted", p.target)
	}
	p.done = true
	tmp := p.Name()
	if err := p.Sync(); err != nil {
		_ = p.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := p.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp, p.perm); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp, p.target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp to final: %w", err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit, so it can
// be deferred.
func (p *PendingFile) Abort() {
	if p.done {
		return
	}
	p.done = true
	_ = p.Close()
	_ = os.Remove(p.Name())
}

// AtomicWriteFile writes data to path through a PendingFile.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	p, err := CreatePending(path, perm)
	if err != nil {
		return err
	}
	defer p.Abort()
	if _, err := p.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	return p.Commit()
}
