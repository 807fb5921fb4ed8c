// Package vision defines the contract to the external vision oracle that
// estimates where a described UI element sits on a screen, and provides an
// OpenAI-backed implementation of it.
//
// The oracle is slow, non-deterministic, and allowed to fail; callers treat
// its output as an estimate to be refined, never as ground truth.
package vision

import (
	"context"
	"errors"
	"image"

	"github.com/entrhq/pinpoint/pkg/geometry"
)

// ErrUnavailable indicates the oracle call failed, timed out, or returned a
// response that could not be understood. The engine never retries
// internally; retry policy belongs to the caller.
var ErrUnavailable = errors.New("vision: estimation unavailable")

// Confidence is the oracle's advisory quality signal for an estimate. It is
// ordered but non-binding: the engine records it and leaves any rejection
// policy to the caller.
type Confidence int

const (
	ConfidenceUnknown Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseConfidence maps the oracle's free-text label onto the ordered set.
// Unrecognized labels come back as ConfidenceUnknown.
func ParseConfidence(s string) Confidence {
	switch s {
	case "low":
		return ConfidenceLow
	case "medium":
		return ConfidenceMedium
	case "high":
		return ConfidenceHigh
	default:
		return ConfidenceUnknown
	}
}

// Estimate is the oracle's percentage-space guess for one element.
type Estimate struct {
	// Box is resolution-independent; convert with geometry.ToPixels before
	// any pixel work.
	Box geometry.BoxPercent
	// Confidence is the oracle's advisory label.
	Confidence Confidence
	// Element is the name the oracle gave the thing it found.
	Element string
}

// Estimator locates a described element on a screen image. Implementations
// wrap whatever vision model is in use; tests substitute a deterministic
// stub.
type Estimator interface {
	EstimateRegion(ctx context.Context, img image.Image, description string) (Estimate, error)
}
