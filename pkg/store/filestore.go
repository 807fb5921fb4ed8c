package store

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/pinpoint/pkg/geometry"
)

const indexFileName = "elements.yaml"

// index is the on-disk shape of the metadata table. Records are kept as an
// ordered sequence so the file stays pleasant to inspect by hand.
type index struct {
	Version  int      `yaml:"version"`
	Elements []Record `yaml:"elements"`
}

// FileStore is the file-system implementation of Store. All index writes go
// through a temporary file followed by an atomic rename, so readers never
// observe a partially written table.
type FileStore struct {
	root      string
	indexPath string

	mu      sync.RWMutex
	records []Record
	byKey   map[string]int
}

// NewFileStore opens (creating if needed) a template cache rooted at root.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("%w: init cache root %s: %v", ErrStorage, root, err)
	}
	fs := &FileStore{
		root:      root,
		indexPath: filepath.Join(root, indexFileName),
		byKey:     make(map[string]int),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Root returns the cache root directory.
func (fs *FileStore) Root() string {
	return fs.root
}

func (fs *FileStore) load() error {
	b, err := os.ReadFile(fs.indexPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read index: %v", ErrStorage, err)
	}
	var idx index
	if err := yaml.Unmarshal(b, &idx); err != nil {
		return fmt.Errorf("%w: decode index %s: %v", ErrStorage, fs.indexPath, err)
	}
	for _, rec := range idx.Elements {
		if rec.Key == "" || rec.ImageRef == "" {
			slog.Debug("store: skipping malformed index row", "key", rec.Key)
			continue
		}
		if _, dup := fs.byKey[rec.Key]; dup {
			slog.Debug("store: skipping duplicate index row", "key", rec.Key)
			continue
		}
		fs.byKey[rec.Key] = len(fs.records)
		fs.records = append(fs.records, rec)
	}
	return nil
}

// writeIndex persists the given record set atomically. The in-memory state
// is only swapped in by the caller after this succeeds.
func (fs *FileStore) writeIndex(records []Record) error {
	b, err := yaml.Marshal(index{Version: 1, Elements: records})
	if err != nil {
		return fmt.Errorf("%w: encode index: %v", ErrStorage, err)
	}
	tmp := fs.indexPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("%w: write index temp file: %v", ErrStorage, err)
	}
	if err := os.Rename(tmp, fs.indexPath); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("%w: atomic rename %s: %v", ErrStorage, fs.indexPath, err)
	}
	return nil
}

// Put writes the cropped template as a new immutable artifact, then swaps
// the index row for key. A failure on either step leaves the previous state
// intact.
func (fs *FileStore) Put(ctx context.Context, key string, sourceBox geometry.BoxPixels, img image.Image) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if key == "" {
		return Record{}, fmt.Errorf("%w: empty key", ErrStorage)
	}
	if img == nil || img.Bounds().Dx() < 1 || img.Bounds().Dy() < 1 {
		return Record{}, fmt.Errorf("%w: refusing to store empty template for %q", ErrStorage, key)
	}

	now := time.Now().UTC()
	ref := artifactName(key, now)
	path, err := fs.artifactPath(ref)
	if err != nil {
		return Record{}, err
	}
	if err := writePNG(path, img); err != nil {
		return Record{}, fmt.Errorf("%w: write artifact for %q: %v", ErrStorage, key, err)
	}

	rec := Record{Key: key, ImageRef: ref, SourceBox: sourceBox, CreatedAt: now}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	next := make([]Record, len(fs.records))
	copy(next, fs.records)
	pos, exists := fs.byKey[key]
	if exists {
		next[pos] = rec
	} else {
		next = append(next, rec)
	}
	if err := fs.writeIndex(next); err != nil {
		_ = os.Remove(path)
		return Record{}, err
	}
	fs.records = next
	if !exists {
		fs.byKey[key] = len(next) - 1
	}
	return rec, nil
}

// Get returns the record for key.
func (fs *FileStore) Get(ctx context.Context, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	pos, ok := fs.byKey[key]
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return fs.records[pos], nil
}

// LoadImage decodes the PNG artifact behind a record.
func (fs *FileStore) LoadImage(ctx context.Context, rec Record) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := fs.artifactPath(rec.ImageRef)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open artifact %s: %v", ErrStorage, rec.ImageRef, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode artifact %s: %v", ErrStorage, rec.ImageRef, err)
	}
	return img, nil
}

// List returns known keys in insertion order.
func (fs *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	keys := make([]string, len(fs.records))
	for i, rec := range fs.records {
		keys[i] = rec.Key
	}
	return keys, nil
}

// Delete removes the record for key and best-effort removes its artifact.
func (fs *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	pos, ok := fs.byKey[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	removed := fs.records[pos]
	next := make([]Record, 0, len(fs.records)-1)
	next = append(next, fs.records[:pos]...)
	next = append(next, fs.records[pos+1:]...)
	if err := fs.writeIndex(next); err != nil {
		return err
	}
	fs.records = next
	delete(fs.byKey, key)
	for i, rec := range next {
		fs.byKey[rec.Key] = i
	}
	fs.removeArtifact(removed.ImageRef)
	return nil
}

// Clear removes every record and best-effort removes their artifacts.
func (fs *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.writeIndex(nil); err != nil {
		return err
	}
	for _, rec := range fs.records {
		fs.removeArtifact(rec.ImageRef)
	}
	fs.records = nil
	fs.byKey = make(map[string]int)
	return nil
}

// Vacuum deletes artifact files no record references, typically left behind
// by re-learns, and reports how many it removed.
func (fs *FileStore) Vacuum(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	live := make(map[string]bool, len(fs.records))
	for _, rec := range fs.records {
		live[rec.ImageRef] = true
	}
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		return 0, fmt.Errorf("%w: list cache root: %v", ErrStorage, err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".png" || live[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(fs.root, e.Name())); err != nil {
			slog.Debug("store: vacuum could not remove orphan", "artifact", e.Name(), "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (fs *FileStore) removeArtifact(ref string) {
	path, err := fs.artifactPath(ref)
	if err != nil {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("store: could not remove artifact", "artifact", ref, "err", err)
	}
}

// artifactPath resolves an image ref inside the cache root, rejecting refs
// that would escape it.
func (fs *FileStore) artifactPath(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("%w: empty image ref", ErrStorage)
	}
	if strings.ContainsAny(ref, "/\\") {
		return "", fmt.Errorf("%w: invalid image ref %q (contains path separator)", ErrStorage, ref)
	}
	root, err := filepath.Abs(fs.root)
	if err != nil {
		return "", fmt.Errorf("%w: abs cache root: %v", ErrStorage, err)
	}
	resolved := filepath.Join(root, ref)
	if !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal detected for ref %q", ErrStorage, ref)
	}
	return resolved, nil
}

// artifactName builds a collision-free file name embedding the key and the
// creation time, plus a short random suffix so two learns within the same
// second never collide.
func artifactName(key string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.png",
		sanitizeKey(key),
		at.Format("20060102_150405"),
		uuid.New().String()[:8])
}

// sanitizeKey reduces a key to a safe file-name fragment: alphanumerics
// kept, spaces and dashes become underscores, everything else dropped.
func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == ' ', r == '-', r == '_':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "element"
	}
	return b.String()
}

func writePNG(path string, img image.Image) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
