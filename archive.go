package rhema

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

const archiveVersion = 1

type archiveDoc struct {
	Version     int          `json:"version"`
	Definitions []Definition `json:"definitions"`
}

// ExportArchive writes all stored definitions as a gzipped JSON
// document, in replay order.
func ExportArchive(store Store, w io.Writer) error {
	defs, err := store.ListDefinitions()
	if err != nil {
		return fmt.Errorf("list definitions: %w", err)
	}

	zw := gzip.NewWriter(w)
	doc := archiveDoc{Version: archiveVersion, Definitions: defs}
	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		zw.Close()
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// ImportArchive defines every definition from an archive into the
// session, in the archive's order. Returns the number imported.
// Existing names are redefined.
func ImportArchive(s *Session, r io.Reader) (int, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	var doc archiveDoc
	if err := json.NewDecoder(zr).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode archive: %w", err)
	}
	if doc.Version != archiveVersion {
		return 0, fmt.Errorf("%w: version %d", ErrBadArchive, doc.Version)
	}

	for i, def := range doc.Definitions {
		if err := s.Define(def.Name, def.Source); err != nil {
			return i, fmt.Errorf("import %s: %w", def.Name, err)
		}
	}
	return len(doc.Definitions), nil
}
