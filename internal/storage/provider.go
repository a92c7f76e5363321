// Package storage defines the project file-system abstraction.
package storage

import (
	"errors"

	"github.com/starford/codex/internal/models"
)

// ErrOutsideRoot is returned for paths that leave the project root.
var ErrOutsideRoot = errors.New("storage: path outside project root")

// Provider is the interface for project file operations. Paths are
// slash-separated and relative to the project root.
type Provider interface {
	// List returns the files directly under dir whose extension is one of
	// exts, sorted by name. An empty exts matches every file.
	List(dir string, exts []string) ([]models.FileMetadata, error)
	Read(path string) ([]byte, error)
	// Write replaces path atomically, creating parent directories.
	Write(path string, content []byte) error
	Delete(path string) error
}
