// Package element resolves natural-language UI element descriptions to
// clickable screen coordinates.
//
// A resolve first tries the fast path: re-locating a previously learned
// template on the current screen by image matching. On a cache miss, or
// when the cached template is no longer visible, it falls back to the
// bootstrap path: asking the vision oracle for a percentage-space estimate,
// converting it to pixels, cropping the screen, and caching the crop as the
// template for next time.
package element

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"time"

	"github.com/entrhq/pinpoint/pkg/geometry"
	"github.com/entrhq/pinpoint/pkg/match"
	"github.com/entrhq/pinpoint/pkg/store"
	"github.com/entrhq/pinpoint/pkg/vision"
)

// ErrNotFound indicates neither a cached template matched nor the bootstrap
// path could establish a region for the description. It is terminal for
// that resolve call; the caller may retry, re-describe, or invalidate.
var ErrNotFound = errors.New("element: not found")

// DefaultMinMatchScore is the template match threshold used when no
// override is configured.
const DefaultMinMatchScore = 0.8

// ResolutionPath records which flow produced a resolution.
type ResolutionPath string

const (
	// PathCached means a learned template was re-located by image matching;
	// the oracle was not consulted.
	PathCached ResolutionPath = "cached"
	// PathLearned means the bootstrap path ran and a new template was
	// stored.
	PathLearned ResolutionPath = "learned"
)

// Resolution is the outcome of a successful resolve.
type Resolution struct {
	// Point is the clickable center of the element.
	Point geometry.Point
	// Region is the element's bounding box on the current screen.
	Region geometry.BoxPixels
	// Path tells whether the result came from the cache or a fresh learn.
	Path ResolutionPath
	// Score is the match score for PathCached results; zero for learns.
	Score float64
	// Confidence is the oracle's advisory label for PathLearned results.
	Confidence vision.Confidence
}

// Resolver is the element resolution engine. It is safe for concurrent use;
// resolves for different keys proceed in parallel, while writes for the
// same key are serialized with last-writer-wins semantics.
type Resolver struct {
	store            store.Store
	estimator        vision.Estimator
	minScore         float64
	estimatorTimeout time.Duration
	logger           *slog.Logger
	locks            *keyedMutex
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMinMatchScore sets the threshold in [0,1] below which template
// matches are discarded.
func WithMinMatchScore(score float64) Option {
	return func(r *Resolver) {
		r.minScore = score
	}
}

// WithEstimatorTimeout bounds each vision oracle call. Zero means no bound
// beyond the caller's context.
func WithEstimatorTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.estimatorTimeout = d
	}
}

// WithLogger overrides the resolver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver builds a resolution engine over the given template store and
// vision estimator.
func NewResolver(st store.Store, estimator vision.Estimator, opts ...Option) (*Resolver, error) {
	if st == nil {
		return nil, errors.New("element: store is required")
	}
	if estimator == nil {
		return nil, errors.New("element: estimator is required")
	}
	r := &Resolver{
		store:     st,
		estimator: estimator,
		minScore:  DefaultMinMatchScore,
		logger:    slog.Default(),
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.minScore < 0 || r.minScore > 1 {
		return nil, fmt.Errorf("element: min match score %v outside [0,1]", r.minScore)
	}
	if r.estimatorTimeout < 0 {
		return nil, fmt.Errorf("element: negative estimator timeout %v", r.estimatorTimeout)
	}
	return r, nil
}

// Resolve returns a clickable point for the described element on the given
// screen. Storage failures propagate as store.ErrStorage and are never
// reported as ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, description string, screen image.Image) (Resolution, error) {
	if screen == nil || screen.Bounds().Dx() < 1 || screen.Bounds().Dy() < 1 {
		return Resolution{}, errors.New("element: resolve requires a non-empty screen image")
	}
	key := store.NormalizeKey(description)
	if key == "" {
		return Resolution{}, errors.New("element: resolve requires a non-empty description")
	}

	rec, err := r.store.Get(ctx, key)
	switch {
	case err == nil:
		tpl, err := r.store.LoadImage(ctx, rec)
		if err != nil {
			return Resolution{}, fmt.Errorf("element: load template for %q: %w", key, err)
		}
		if res, ok := match.Locate(tpl, screen, r.minScore); ok {
			r.logger.Debug("element: fast path hit", "key", key, "score", res.Score, "at", res.Center)
			return Resolution{Point: res.Center, Region: res.Region, Path: PathCached, Score: res.Score}, nil
		}
		// Template exists but is not currently visible. The stale record is
		// kept; only an explicit Invalidate removes it.
		r.logger.Debug("element: fast path miss, bootstrapping", "key", key)
	case errors.Is(err, store.ErrNotFound):
		r.logger.Debug("element: no cached template, bootstrapping", "key", key)
	default:
		return Resolution{}, fmt.Errorf("element: lookup %q: %w", key, err)
	}

	return r.bootstrap(ctx, key, description, screen)
}

// bootstrap runs the learning flow: oracle estimate, pixel conversion,
// crop, and persist. Nothing is committed if any step fails or the context
// is cancelled.
func (r *Resolver) bootstrap(ctx context.Context, key, description string, screen image.Image) (Resolution, error) {
	ectx := ctx
	if r.estimatorTimeout > 0 {
		var cancel context.CancelFunc
		ectx, cancel = context.WithTimeout(ctx, r.estimatorTimeout)
		defer cancel()
	}
	est, err := r.estimator.EstimateRegion(ectx, screen, description)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: estimate for %q: %w", ErrNotFound, key, err)
	}

	b := screen.Bounds()
	box, err := geometry.ToPixels(est.Box, b.Dx(), b.Dy())
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: normalize estimate for %q: %w", ErrNotFound, key, err)
	}

	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}

	unlock := r.locks.lock(key)
	defer unlock()

	cropped := cropScreen(screen, box)
	if _, err := r.store.Put(ctx, key, box, cropped); err != nil {
		return Resolution{}, fmt.Errorf("element: persist template for %q: %w", key, err)
	}
	r.logger.Debug("element: learned template", "key", key, "box", box, "confidence", est.Confidence.String())

	return Resolution{Point: box.Center(), Region: box, Path: PathLearned, Confidence: est.Confidence}, nil
}

// Invalidate removes the cached template for one description. Removing an
// element that was never learned reports store.ErrNotFound.
func (r *Resolver) Invalidate(ctx context.Context, description string) error {
	key := store.NormalizeKey(description)
	if key == "" {
		return errors.New("element: invalidate requires a non-empty description")
	}
	unlock := r.locks.lock(key)
	defer unlock()
	if err := r.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("element: invalidate %q: %w", key, err)
	}
	r.logger.Debug("element: invalidated", "key", key)
	return nil
}

// InvalidateAll removes every cached template.
func (r *Resolver) InvalidateAll(ctx context.Context) error {
	unlock := r.locks.lockAll()
	defer unlock()
	if err := r.store.Clear(ctx); err != nil {
		return fmt.Errorf("element: invalidate all: %w", err)
	}
	r.logger.Debug("element: cache cleared")
	return nil
}

// List returns the learned element keys in insertion order.
func (r *Resolver) List(ctx context.Context) ([]string, error) {
	keys, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("element: list: %w", err)
	}
	return keys, nil
}

// cropScreen copies the boxed region of the screen into a fresh image. The
// box is guaranteed in-bounds by geometry.ToPixels.
func cropScreen(screen image.Image, box geometry.BoxPixels) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, box.Width, box.Height))
	src := box.Rect().Add(screen.Bounds().Min)
	draw.Draw(out, out.Bounds(), screen, src.Min, draw.Src)
	return out
}
