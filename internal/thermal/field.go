// Package thermal holds calibrated temperature fields and extracts
// forehead samples and their statistics from them.
package thermal

import (
	"fmt"
	"image"
	"math"
)

// Field is a row-major 2-D array of calibrated temperatures in °C. A
// sub-field returned by Sample shares Pix with its parent.
//
// At, Set and Sample all take coordinates relative to the field's own
// top-left corner, whether it is a root field or a sub-field. Rect is the
// field's position inside the root field it was cut from.
type Field struct {
	Pix    []float64
	Stride int
	Rect   image.Rectangle
}

// NewField allocates a zeroed w×h field.
func NewField(w, h int) *Field {
	return &Field{Pix: make([]float64, w*h), Stride: w, Rect: image.Rect(0, 0, w, h)}
}

// FromRows copies a slice of rows into a new field. All rows must have the
// same length.
func FromRows(rows [][]float64) (*Field, error) {
	if len(rows) == 0 {
		return NewField(0, 0), nil
	}
	w := len(rows[0])
	f := NewField(w, len(rows))
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("row %d has %d columns, want %d", y, len(row), w)
		}
		copy(f.Pix[y*w:], row)
	}
	return f, nil
}

// Fill sets every element of the field to v.
func (f *Field) Fill(v float64) {
	for y := f.Rect.Min.Y; y < f.Rect.Max.Y; y++ {
		i := f.offset(f.Rect.Min.X, y)
		row := f.Pix[i : i+f.Rect.Dx()]
		for x := range row {
			row[x] = v
		}
	}
}

// Bounds returns the field extent in root field coordinates.
func (f *Field) Bounds() image.Rectangle {
	return f.Rect
}

// Width is the number of columns.
func (f *Field) Width() int { return f.Rect.Dx() }

// Height is the number of rows.
func (f *Field) Height() int { return f.Rect.Dy() }

// At returns the temperature at (x, y). It panics when out of bounds.
func (f *Field) At(x, y int) float64 {
	return f.Pix[f.index(x, y)]
}

// Set stores v at (x, y). It panics when out of bounds.
func (f *Field) Set(x, y int, v float64) {
	f.Pix[f.index(x, y)] = v
}

// index maps field-relative coordinates to Pix.
func (f *Field) index(x, y int) int {
	if x < 0 || y < 0 || x >= f.Width() || y >= f.Height() {
		panic(fmt.Sprintf("thermal: (%d,%d) outside %dx%d field", x, y, f.Width(), f.Height()))
	}
	return y*f.Stride + x
}

// offset maps root field coordinates to Pix.
func (f *Field) offset(x, y int) int {
	return (y-f.Rect.Min.Y)*f.Stride + (x - f.Rect.Min.X)
}

// Values copies every element into a new slice, row by row.
func (f *Field) Values() []float64 {
	out := make([]float64, 0, f.Rect.Dx()*f.Rect.Dy())
	for y := f.Rect.Min.Y; y < f.Rect.Max.Y; y++ {
		i := f.offset(f.Rect.Min.X, y)
		out = append(out, f.Pix[i:i+f.Rect.Dx()]...)
	}
	return out
}

// MinMax returns the coldest and hottest values. An empty field returns
// (+Inf, -Inf).
func (f *Field) MinMax() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for y := f.Rect.Min.Y; y < f.Rect.Max.Y; y++ {
		i := f.offset(f.Rect.Min.X, y)
		for _, v := range f.Pix[i : i+f.Rect.Dx()] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}

// Gray maps the field linearly onto 0..255, coldest to hottest. A flat
// field maps to mid-gray.
func (f *Field) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, f.Width(), f.Height()))
	lo, hi := f.MinMax()
	span := hi - lo
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			v := uint8(128)
			if span > 0 {
				v = uint8(math.Round((f.At(x, y) - lo) / span * 255))
			}
			g.Pix[y*g.Stride+x] = v
		}
	}
	return g
}
