package index

import "github.com/starford/codex/internal/models"

// RecordIndex defines the interface for record indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type RecordIndex interface {
	Upsert(rec models.Record) error
	Delete(collection, id string) error
	GetChecksum(collection, id string) (string, error)
	Checksums(collection string) (map[string]string, error)
	Count(collection string) (int, error)
	Search(q Query) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies RecordIndex at compile time.
var _ RecordIndex = (*DB)(nil)
