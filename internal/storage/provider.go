// Package storage defines the ADR folder file-system abstraction.
package storage

import "github.com/starford/adrkb/internal/models"

// Provider is the interface for ADR folder file operations. Paths are
// relative to the provider root.
type Provider interface {
	// Root returns the absolute folder the provider serves.
	Root() string
	// List returns metadata for every .md file directly inside dir.
	List(dir string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Exists reports whether a file is present at path.
	Exists(path string) (bool, error)
	// Write atomically writes content to path, replacing any existing file.
	Write(path string, content []byte) error
	// Create writes content to path only if nothing exists there yet. It
	// returns apperr.ErrAlreadyExists when another writer got there first.
	Create(path string, content []byte) error
}

// Opener returns a Provider rooted at an ADR folder.
type Opener func(root string) (Provider, error)

// OpenFS is the Opener for the local file system.
func OpenFS(root string) (Provider, error) {
	fs, err := NewFS(root)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

var _ Provider = (*FS)(nil)
