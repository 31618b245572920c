package invoice

import (
	"fmt"
	"os"
	"path/filepath"
)

// Archive defines the interface for durable storage of original documents
type Archive interface {
	// Save stores data under name and returns the durable reference
	Save(name string, data []byte) (string, error)

	// Get retrieves a document by reference
	Get(ref string) ([]byte, error)

	// Delete removes a document
	Delete(ref string) error
}

// LocalArchive implements the Archive interface on the local filesystem
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates a new LocalArchive rooted at basePath
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	return &LocalArchive{
		basePath: basePath,
	}, nil
}

// path maps a reference to a file inside the archive. References are plain
// generated file names; anything that could escape the directory is refused.
func (l *LocalArchive) path(ref string) (string, error) {
	if ref == "" || ref == "." || ref == ".." || filepath.Base(ref) != ref {
		return "", fmt.Errorf("invalid archive reference %q", ref)
	}
	return filepath.Join(l.basePath, ref), nil
}

// Save writes a document. Existing files are never overwritten.
func (l *LocalArchive) Save(name string, data []byte) (string, error) {
	path, err := l.path(name)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("syncing file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing file: %w", err)
	}
	return name, nil
}

// Get reads a document from the archive
func (l *LocalArchive) Get(ref string) ([]byte, error) {
	path, err := l.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a document from the archive
func (l *LocalArchive) Delete(ref string) error {
	path, err := l.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
