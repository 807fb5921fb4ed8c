// Package match locates a template image inside a larger screen capture
// using grayscale normalized cross-correlation. A miss is an expected
// outcome, not an error: callers get an ok flag, never a failure, when the
// template is simply not on screen.
package match

import (
	"image"
	"math"

	"github.com/entrhq/pinpoint/pkg/geometry"
)

// Result describes the best match found for a template on a screen.
type Result struct {
	// Center is the pixel at the geometric center of the matched region,
	// suitable for clicking.
	Center geometry.Point
	// Region is the matched area in screen coordinates.
	Region geometry.BoxPixels
	// Score is the normalized correlation score in [0,1]; 1 means a
	// pixel-identical match.
	Score float64
}

// refineCandidates is how many coarse-pass positions are re-scored with the
// full template before picking a winner.
const refineCandidates = 16

// Locate slides template over screen and returns the position with the
// highest normalized correlation score. It returns ok=false when the best
// score falls below minScore, when either image is empty, or when the
// template cannot be made to fit the screen — none of these are errors.
//
// A template larger than the screen on either axis (typically because the
// display resolution changed since capture) is scaled down to fit before
// matching; the score then reflects the degraded comparison.
func Locate(template, screen image.Image, minScore float64) (Result, bool) {
	if template == nil || screen == nil {
		return Result{}, false
	}
	scr := grayPlane(screen)
	tpl := grayPlane(template)
	if scr.w == 0 || scr.h == 0 || tpl.w == 0 || tpl.h == 0 {
		return Result{}, false
	}
	if tpl.w > scr.w || tpl.h > scr.h {
		scaled := fitTemplate(template, scr.w, scr.h)
		if scaled == nil {
			return Result{}, false
		}
		tpl = grayPlane(scaled)
		if tpl.w == 0 || tpl.h == 0 {
			return Result{}, false
		}
	}

	best := scan(scr, tpl)
	if best.score < minScore {
		return Result{}, false
	}
	region := geometry.BoxPixels{Left: best.x, Top: best.y, Width: tpl.w, Height: tpl.h}
	return Result{Center: region.Center(), Region: region, Score: best.score}, true
}

type candidate struct {
	x, y  int
	score float64
}

// scan runs a coarse pass scoring every position against a sparse sample of
// template pixels, then re-scores the strongest candidates with the full
// template. Sampling keeps full-screen scans tractable while an exact match
// still scores 1.0 in the coarse pass, so the true peak is never skipped.
func scan(scr, tpl *plane) candidate {
	sample := tpl.minDim() / 16
	if sample < 1 {
		sample = 1
	}

	top := make([]candidate, 0, refineCandidates)
	for y := 0; y+tpl.h <= scr.h; y++ {
		for x := 0; x+tpl.w <= scr.w; x++ {
			s := ncc(scr, tpl, x, y, sample)
			top = insertCandidate(top, candidate{x: x, y: y, score: s})
		}
	}

	best := candidate{score: -1}
	for _, c := range top {
		s := c.score
		if sample > 1 {
			s = ncc(scr, tpl, c.x, c.y, 1)
		}
		if s > best.score {
			best = candidate{x: c.x, y: c.y, score: s}
		}
	}
	if best.score < 0 {
		best.score = 0
	}
	return best
}

// insertCandidate keeps top sorted descending by score, capped at
// refineCandidates entries.
func insertCandidate(top []candidate, c candidate) []candidate {
	if len(top) == cap(top) && c.score <= top[len(top)-1].score {
		return top
	}
	i := len(top)
	if len(top) < cap(top) {
		top = append(top, c)
	} else {
		i = len(top) - 1
	}
	for i > 0 && top[i-1].score < c.score {
		top[i] = top[i-1]
		i--
	}
	top[i] = c
	return top
}

// ncc computes zero-mean normalized cross-correlation between the template
// and the screen window at (ox,oy), visiting every sample-th pixel on both
// axes. Negative correlation is clamped to zero so scores live in [0,1].
func ncc(scr, tpl *plane, ox, oy, sample int) float64 {
	var sumT, sumW, n float64
	for y := 0; y < tpl.h; y += sample {
		trow := tpl.pix[y*tpl.w:]
		srow := scr.pix[(oy+y)*scr.w+ox:]
		for x := 0; x < tpl.w; x += sample {
			sumT += trow[x]
			sumW += srow[x]
			n++
		}
	}
	meanT := sumT / n
	meanW := sumW / n

	var num, varT, varW float64
	for y := 0; y < tpl.h; y += sample {
		trow := tpl.pix[y*tpl.w:]
		srow := scr.pix[(oy+y)*scr.w+ox:]
		for x := 0; x < tpl.w; x += sample {
			dt := trow[x] - meanT
			dw := srow[x] - meanW
			num += dt * dw
			varT += dt * dt
			varW += dw * dw
		}
	}

	const eps = 1e-9
	if varT < eps || varW < eps {
		// Flat regions carry no correlation signal; treat two equally flat
		// patches with the same brightness as a perfect match.
		if varT < eps && varW < eps && math.Abs(meanT-meanW) < 0.5 {
			return 1
		}
		return 0
	}
	s := num / math.Sqrt(varT*varW)
	if s < 0 {
		return 0
	}
	// Snap rounding noise so a pixel-identical window scores exactly 1.
	if s > 1-1e-9 {
		return 1
	}
	return s
}
