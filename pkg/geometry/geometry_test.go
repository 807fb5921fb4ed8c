package geometry

import (
	"errors"
	"testing"
)

func TestToPixels(t *testing.T) {
	tests := []struct {
		name    string
		box     BoxPercent
		w, h    int
		want    BoxPixels
		wantErr bool
	}{
		{
			name: "login button on 1920x1080",
			box:  BoxPercent{Left: 0.70, Top: 0.15, Width: 0.10, Height: 0.05},
			w:    1920, h: 1080,
			want: BoxPixels{Left: 1344, Top: 162, Width: 192, Height: 54},
		},
		{
			name: "full screen",
			box:  BoxPercent{Left: 0, Top: 0, Width: 1, Height: 1},
			w:    800, h: 600,
			want: BoxPixels{Left: 0, Top: 0, Width: 800, Height: 600},
		},
		{
			name: "zero area coerced to 1x1",
			box:  BoxPercent{Left: 0.5, Top: 0.5, Width: 0, Height: 0},
			w:    100, h: 100,
			want: BoxPixels{Left: 50, Top: 50, Width: 1, Height: 1},
		},
		{
			name: "box overflowing right edge is clamped",
			box:  BoxPercent{Left: 0.95, Top: 0.95, Width: 0.2, Height: 0.2},
			w:    100, h: 100,
			want: BoxPixels{Left: 95, Top: 95, Width: 5, Height: 5},
		},
		{
			name: "left at exactly 1.0 clamps inside screen",
			box:  BoxPercent{Left: 1.0, Top: 0, Width: 0.1, Height: 0.1},
			w:    100, h: 100,
			want: BoxPixels{Left: 99, Top: 0, Width: 1, Height: 10},
		},
		{
			name: "negative field rejected",
			box:  BoxPercent{Left: -0.1, Top: 0, Width: 0.5, Height: 0.5},
			w:    100, h: 100,
			wantErr: true,
		},
		{
			name: "field above one rejected",
			box:  BoxPercent{Left: 0, Top: 0, Width: 1.5, Height: 0.5},
			w:    100, h: 100,
			wantErr: true,
		},
		{
			name: "non-positive screen rejected",
			box:  BoxPercent{Left: 0.1, Top: 0.1, Width: 0.1, Height: 0.1},
			w:    0, h: 100,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToPixels(tt.box, tt.w, tt.h)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ToPixels(%+v) expected error, got %+v", tt.box, got)
				}
				if !errors.Is(err, ErrInvalidEstimate) {
					t.Errorf("expected ErrInvalidEstimate, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToPixels failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ToPixels(%+v) = %+v, want %+v", tt.box, got, tt.want)
			}
		})
	}
}

func TestToPixelsContainment(t *testing.T) {
	sizes := []struct{ w, h int }{{1, 1}, {3, 7}, {800, 600}, {1920, 1080}, {2560, 1440}}
	boxes := []BoxPercent{
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{0.333, 0.667, 0.5, 0.5},
		{0.999, 0.001, 0.002, 0.998},
	}
	for _, s := range sizes {
		for _, b := range boxes {
			got, err := ToPixels(b, s.w, s.h)
			if err != nil {
				t.Fatalf("ToPixels(%+v, %dx%d) failed: %v", b, s.w, s.h, err)
			}
			if got.Left < 0 || got.Top < 0 || got.Width < 1 || got.Height < 1 {
				t.Errorf("degenerate box %+v for %+v on %dx%d", got, b, s.w, s.h)
			}
			if got.Left+got.Width > s.w || got.Top+got.Height > s.h {
				t.Errorf("box %+v exceeds %dx%d screen", got, s.w, s.h)
			}
		}
	}
}

func TestToPixelsIdempotent(t *testing.T) {
	// Converting an already-clamped box (re-expressed as percentages of the
	// same screen) must not move it.
	const w, h = 1920, 1080
	first, err := ToPixels(BoxPercent{Left: 0.70, Top: 0.15, Width: 0.10, Height: 0.05}, w, h)
	if err != nil {
		t.Fatalf("ToPixels failed: %v", err)
	}
	back := BoxPercent{
		Left:   float64(first.Left) / w,
		Top:    float64(first.Top) / h,
		Width:  float64(first.Width) / w,
		Height: float64(first.Height) / h,
	}
	second, err := ToPixels(back, w, h)
	if err != nil {
		t.Fatalf("ToPixels round trip failed: %v", err)
	}
	if first != second {
		t.Errorf("conversion not idempotent: %+v then %+v", first, second)
	}
}

func TestCenter(t *testing.T) {
	b := BoxPixels{Left: 1344, Top: 162, Width: 192, Height: 54}
	if got := b.Center(); got != (Point{X: 1440, Y: 189}) {
		t.Errorf("Center() = %+v, want {1440 189}", got)
	}
}

func TestRect(t *testing.T) {
	b := BoxPixels{Left: 10, Top: 20, Width: 30, Height: 40}
	r := b.Rect()
	if r.Min.X != 10 || r.Min.Y != 20 || r.Max.X != 40 || r.Max.Y != 60 {
		t.Errorf("Rect() = %v", r)
	}
}
