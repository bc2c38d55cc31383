package thermal

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/andresmejia3/thermosentinel/internal/types"
)

var (
	// ErrEmptyRegion is returned for a region (or sub-field) without area.
	ErrEmptyRegion = errors.New("empty region")
	// ErrOutOfBounds is returned when part of a region lies outside the field.
	ErrOutOfBounds = errors.New("region out of bounds")
)

// Sample returns the sub-field covered by region. The region must lie
// completely inside the field; it is never clipped. The returned field
// shares storage with f.
func Sample(f *Field, region types.Rect) (*Field, error) {
	if region.Empty() {
		return nil, fmt.Errorf("sample %v: %w", region, ErrEmptyRegion)
	}
	r := region.Image().Add(f.Rect.Min)
	if !r.In(f.Rect) {
		return nil, fmt.Errorf("sample %v in %dx%d field: %w", region, f.Width(), f.Height(), ErrOutOfBounds)
	}
	return f.sub(r), nil
}

// Clamp intersects region with the field extent. It returns ErrEmptyRegion
// when nothing of the region remains. Callers opt into it explicitly; the
// default measurement path uses Sample alone.
func Clamp(f *Field, region types.Rect) (types.Rect, error) {
	if region.Empty() {
		return types.Rect{}, fmt.Errorf("clamp %v: %w", region, ErrEmptyRegion)
	}
	full := image.Rect(0, 0, f.Width(), f.Height())
	r := region.Image().Intersect(full)
	if r.Empty() {
		return types.Rect{}, fmt.Errorf("clamp %v to %dx%d: %w", region, f.Width(), f.Height(), ErrEmptyRegion)
	}
	return types.FromImage(r), nil
}

func (f *Field) sub(r image.Rectangle) *Field {
	i := f.offset(r.Min.X, r.Min.Y)
	return &Field{Pix: f.Pix[i:], Stride: f.Stride, Rect: r}
}

// Statistics computes max, min, mean and median over every element of sub.
// The median of an even count is the mean of the two middle values.
func Statistics(sub *Field) (types.Stats, error) {
	if sub == nil || sub.Rect.Empty() {
		return types.Stats{}, ErrEmptyRegion
	}
	vals := sub.Values()
	sort.Float64s(vals)

	var sum float64
	for _, v := range vals {
		sum += v
	}
	n := len(vals)
	median := vals[n/2]
	if n%2 == 0 {
		median = (vals[n/2-1] + vals[n/2]) / 2
	}
	return types.Stats{
		Max:    vals[n-1],
		Min:    vals[0],
		Mean:   sum / float64(n),
		Median: median,
	}, nil
}

// Primary selects the statistic reported as the face temperature.
type Primary string

const (
	PrimaryMedian Primary = "median"
	PrimaryMean   Primary = "mean"
)

// Pick returns the statistic named by p. Unknown values fall back to the
// median.
func (p Primary) Pick(s types.Stats) float64 {
	if p == PrimaryMean {
		return s.Mean
	}
	return s.Median
}
