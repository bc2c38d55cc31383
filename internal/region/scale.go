package region

import "github.com/andresmejia3/thermosentinel/internal/types"

// ToDisplaySpace projects a detection-resolution rectangle into display
// space by exact integer multiplication.
func ToDisplaySpace(r types.Rect, s types.ScaleFactor) types.Rect {
	k := int(s)
	return types.Rect{X: r.X * k, Y: r.Y * k, W: r.W * k, H: r.H * k}
}

// ToDetectionSpace brings a display-space rectangle down to detection
// resolution with truncating integer division. This step is lossy:
// ToDisplaySpace(ToDetectionSpace(r, s), s) == r only when every
// component of r is a multiple of s.
func ToDetectionSpace(r types.Rect, s types.ScaleFactor) types.Rect {
	k := int(s)
	return types.Rect{X: r.X / k, Y: r.Y / k, W: r.W / k, H: r.H / k}
}

// ToDetectionSpaceAll converts a list of boxes in place and returns it.
func ToDetectionSpaceAll(rs []types.Rect, s types.ScaleFactor) []types.Rect {
	for i := range rs {
		rs[i] = ToDetectionSpace(rs[i], s)
	}
	return rs
}
