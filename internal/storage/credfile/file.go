package credfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yndnr/sigmesh/internal/core/domain"
)

// Options describes how a credential file is encoded.
type Options struct {
	Format     Format
	Encryption Encryption
	Keys       Keys
}

// Load reads, decrypts and parses the credential file at path.
func Load(path string, opts Options) ([]*domain.ClientCredential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("credfile: read %s: %w", path, err)
	}

	plaintext, err := Decrypt(data, opts.Encryption, opts.Keys)
	if err != nil {
		return nil, err
	}

	format := opts.Format
	if format == "" {
		format = FormatFromPath(path)
	}
	return Parse(plaintext, format)
}

// Save encodes records and atomically replaces the file at path.
// The file is created with mode 0600.
func Save(path string, records []*domain.ClientCredential, opts Options) error {
	format := opts.Format
	if format == "" {
		format = FormatFromPath(path)
	}

	plaintext, err := Marshal(records, format)
	if err != nil {
		return err
	}
	data, err := Encrypt(plaintext, opts.Encryption, opts.Keys)
	if err != nil {
		return err
	}
	return WriteAtomic(path, data)
}

// WriteAtomic writes data to a temporary file next to path and renames it
// into place.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("credfile: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credfile: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("credfile: rename: %w", err)
	}
	return nil
}
