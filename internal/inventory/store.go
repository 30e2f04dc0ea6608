package inventory

import (
	"context"
	"errors"
)

// Common errors returned by document stores
var (
	// ErrVersionConflict means another writer updated the document
	// after our fetch; the write was refused, nothing was overwritten.
	ErrVersionConflict = errors.New("inventory document version conflict")

	ErrDocumentNotFound = errors.New("inventory document not found")
)

// DocumentStore is the port to the remotely persisted inventory
// document. Consumers define this interface, not the GitHub
// implementation.
type DocumentStore interface {
	// Fetch returns the current document and its opaque version token.
	Fetch(ctx context.Context) (*Document, string, error)

	// Update writes the document back, conditioned on version still
	// being current. A concurrent write is ErrVersionConflict, never a
	// silent overwrite.
	Update(ctx context.Context, doc *Document, version string) error
}
