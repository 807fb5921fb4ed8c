package match

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// plane is a grayscale pixel buffer in row-major order with values in
// [0,255].
type plane struct {
	pix []float64
	w   int
	h   int
}

func (p *plane) minDim() int {
	if p.w < p.h {
		return p.w
	}
	return p.h
}

// grayPlane flattens an image to grayscale using the Rec. 601 luma weights.
func grayPlane(img image.Image) *plane {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	p := &plane{pix: make([]float64, w*h), w: w, h: h}

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			row := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride:]
			for x := 0; x < w; x++ {
				o := (x + b.Min.X - rgba.Rect.Min.X) * 4
				p.pix[y*w+x] = 0.299*float64(row[o]) + 0.587*float64(row[o+1]) + 0.114*float64(row[o+2])
			}
		}
		return p
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			p.pix[y*w+x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257.0
		}
	}
	return p
}

// fitTemplate scales a template down so it fits within maxW x maxH,
// preserving aspect ratio. Returns nil when no usable scale exists.
func fitTemplate(tpl image.Image, maxW, maxH int) image.Image {
	b := tpl.Bounds()
	tw, th := b.Dx(), b.Dy()
	if tw == 0 || th == 0 {
		return nil
	}
	scale := float64(maxW) / float64(tw)
	if s := float64(maxH) / float64(th); s < scale {
		scale = s
	}
	if scale >= 1 {
		return tpl
	}
	nw := int(float64(tw) * scale)
	nh := int(float64(th) * scale)
	if nw < 1 || nh < 1 {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), tpl, b, xdraw.Src, nil)
	return dst
}
