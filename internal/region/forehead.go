// Package region maps detected face boxes to the forehead region of
// interest and converts rectangles between the detection-resolution and
// display coordinate spaces.
package region

import "github.com/andresmejia3/thermosentinel/internal/types"

// Forehead proportions, as fractions of the face box.
const (
	insetX      = 0.10 // horizontal inset on each side
	offsetY     = 0.05 // vertical offset from the top of the face
	widthRatio  = 0.80
	heightRatio = 0.20
)

// DeriveForehead returns the forehead sub-rectangle of a face box. Every
// product is truncated toward zero, so the result always lies inside face.
// It is not checked against any image bounds.
//
// face must have W>0 and H>0; detectors never return anything else.
func DeriveForehead(face types.Rect) types.Rect {
	return types.Rect{
		X: face.X + int(float64(face.W)*insetX),
		Y: face.Y + int(float64(face.H)*offsetY),
		W: int(float64(face.W) * widthRatio),
		H: int(float64(face.H) * heightRatio),
	}
}
