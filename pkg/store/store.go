// Package store persists learned element templates: immutable cropped PNG
// artifacts plus a YAML index mapping element keys to their metadata. A
// re-learn never mutates an artifact in place; it writes a new one and
// swaps the index row, leaving the old file orphaned until Vacuum.
package store

import (
	"context"
	"errors"
	"image"
	"strings"
	"time"

	"github.com/entrhq/pinpoint/pkg/geometry"
)

// ErrNotFound indicates the requested element key has no cached record.
var ErrNotFound = errors.New("store: element not found")

// ErrStorage indicates the cache could not be read or written. It is kept
// distinct from ErrNotFound so callers never confuse a disk problem with a
// genuinely unlearned element.
var ErrStorage = errors.New("store: storage failure")

// Record is the cached metadata for one learned element. The pixel content
// behind ImageRef is immutable once written.
type Record struct {
	// Key is the normalized element description this record belongs to.
	Key string `yaml:"key"`
	// ImageRef names the PNG artifact holding the cropped template.
	ImageRef string `yaml:"image"`
	// SourceBox is the capture-time screen geometry, kept for diagnostics
	// only; matching never trusts it.
	SourceBox geometry.BoxPixels `yaml:"source_box"`
	// CreatedAt is when the template was learned.
	CreatedAt time.Time `yaml:"created_at"`
}

// Store is the persistence contract for learned templates. At most one
// record exists per key; Put replaces atomically.
type Store interface {
	// Put learns (or re-learns) a template for key, returning the stored
	// record. The previous artifact for the key, if any, is orphaned.
	Put(ctx context.Context, key string, sourceBox geometry.BoxPixels, img image.Image) (Record, error)

	// Get returns the record for key, or ErrNotFound.
	Get(ctx context.Context, key string) (Record, error)

	// LoadImage decodes the artifact a record points at.
	LoadImage(ctx context.Context, rec Record) (image.Image, error)

	// List returns all known keys in insertion order.
	List(ctx context.Context) ([]string, error)

	// Delete removes the record for key, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error

	// Clear removes every record.
	Clear(ctx context.Context) error
}

// NormalizeKey folds an arbitrary element description into its canonical
// cache key: lower-cased with runs of whitespace collapsed to single
// spaces.
func NormalizeKey(description string) string {
	return strings.ToLower(strings.Join(strings.Fields(description), " "))
}
