package rhema

import (
	"fmt"
	"path/filepath"
)

// Definition is a stored named definition: the name, its source text,
// and a sequence number giving replay order.
type Definition struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Seq    int64  `json:"seq"`
}

// Store persists definitions across sessions. Implementations must
// return definitions from ListDefinitions in ascending Seq order;
// a session replays them in that order, so later definitions may
// reference earlier ones.
type Store interface {
	// SaveDefinition records a definition. Saving an existing name
	// assigns a fresh sequence number, moving it to the end of the
	// replay order.
	SaveDefinition(name, source string) error
	// DeleteDefinition removes a definition by name. Deleting a name
	// that is not stored is not an error.
	DeleteDefinition(name string) error
	// ListDefinitions returns all definitions in ascending Seq order.
	ListDefinitions() ([]Definition, error)
	// Close releases the backing resources. Further calls return
	// ErrStoreClosed.
	Close() error
}

// OpenStore opens the configured store backend rooted at dir.
func OpenStore(backend, dir string) (Store, error) {
	switch backend {
	case "", "sqlite":
		return OpenSQLiteStore(filepath.Join(dir, "rhema.db"))
	case "bolt":
		return OpenBoltStore(filepath.Join(dir, "rhema.boltdb"))
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
