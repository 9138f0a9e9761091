package state

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrEntityNotFound is returned when an action names an entity that is
	// not in the document.
	ErrEntityNotFound = errors.New("state: entity not found")

	// ErrNotDrawable is returned when an object action targets an entity
	// kind that holds no objects.
	ErrNotDrawable = errors.New("state: entity is not drawable")

	// ErrDuplicateID is returned when an entity would take an id that is
	// already in the document.
	ErrDuplicateID = errors.New("state: duplicate entity id")

	// ErrInvalidKind is returned for an unknown entity kind.
	ErrInvalidKind = errors.New("state: invalid entity kind")

	// ErrNoStagedImage is returned when accepting or discarding with
	// nothing selected.
	ErrNoStagedImage = errors.New("state: no staged image selected")
)

// NewID returns a unique identifier with the given prefix, e.g.
// "raster_layer:1b4e28ba-2fa1-11d2-883f-0016d3cca427".
func NewID(prefix string) string {
	return prefix + ":" + uuid.NewString()
}
