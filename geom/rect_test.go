package geom

import (
	"image"
	"testing"
)

func TestRectPixel(t *testing.T) {
	tests := []struct {
		name string
		r    Rect
		want image.Rectangle
	}{
		{"integral", NewRect(0, 0, 10, 20), image.Rect(0, 0, 10, 20)},
		{"fractional", NewRect(0.5, 1.25, 2, 2), image.Rect(0, 1, 3, 4)},
		{"negative", NewRect(-3.5, -1, 1, 1), image.Rect(-4, -1, -2, 0)},
		{"empty", NewRect(5, 5, 0, 3), image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Pixel(); got != tt.want {
				t.Errorf("Pixel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnion(t *testing.T) {
	got := Union(NewRect(0, 0, 10, 10), Rect{}, NewRect(20, -5, 5, 5))
	want := NewRect(0, -5, 25, 15)
	if got != want {
		t.Errorf("Union() = %+v, want %+v", got, want)
	}
	if got := Union(); got != (Rect{}) {
		t.Errorf("Union() of nothing = %+v, want zero", got)
	}
	if got := Union(Rect{}, NewRect(1, 1, 0, 0)); !got.IsEmpty() {
		t.Errorf("Union() of empty rects = %+v, want empty", got)
	}
}

func TestIntersect(t *testing.T) {
	a := NewRect(0, 0, 10, 10)
	if got, want := a.Intersect(NewRect(5, 5, 10, 10)), NewRect(5, 5, 5, 5); got != want {
		t.Errorf("Intersect() = %+v, want %+v", got, want)
	}
	if got := a.Intersect(NewRect(10, 0, 5, 5)); !got.IsEmpty() {
		t.Errorf("touching rects should not intersect, got %+v", got)
	}
}

func TestBounds(t *testing.T) {
	got := Bounds([]float64{10, 10, 20, 5, 15, 30}, 2)
	want := NewRect(8, 3, 14, 29)
	if got != want {
		t.Errorf("Bounds() = %+v, want %+v", got, want)
	}
	if got := Bounds([]float64{1}, 3); got != (Rect{}) {
		t.Errorf("Bounds() of short list = %+v, want zero", got)
	}
}

func TestCoordRoundFloor(t *testing.T) {
	c := Coord{X: 1.5, Y: -1.5}
	if got := c.Floor(); got != (Coord{X: 1, Y: -2}) {
		t.Errorf("Floor() = %+v", got)
	}
	if got := c.Round(); got != (Coord{X: 2, Y: -2}) {
		t.Errorf("Round() = %+v", got)
	}
}
