package types

import (
	"fmt"
	"image"
)

// Rect is an axis-aligned rectangle (top-left corner plus extent) in some
// image coordinate space. Which space is decided by the caller.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Image converts to the image package's Min/Max representation.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// FromImage converts an image.Rectangle (as returned by detectors) to a Rect.
func FromImage(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// ScaleFactor relates detection-resolution coordinates to the full
// resolution display space. It is fixed for a session and only used for
// coordinate conversion.
type ScaleFactor int

// Stats are the summary statistics of a forehead sample, in °C.
type Stats struct {
	Max    float64 `json:"max"`
	Min    float64 `json:"min"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// FaceStats is the measurement of a single detected face in one frame.
type FaceStats struct {
	Stats
	Face            Rect `json:"face"`             // detection space
	Forehead        Rect `json:"forehead"`         // detection space
	FaceDisplay     Rect `json:"face_display"`     // Face × scale
	ForeheadDisplay Rect `json:"forehead_display"` // Forehead × scale
}

// DetectOptions tune a face detector.
type DetectOptions struct {
	// ScaleFactor is the image pyramid step of the cascade (> 1).
	ScaleFactor float64 `yaml:"scale_factor" json:"scale_factor"`
	// MinNeighbors is how many overlapping hits a face needs to be kept.
	MinNeighbors int `yaml:"min_neighbors" json:"min_neighbors"`
	// MinSize is the smallest face side, in pixels of the searched image.
	MinSize int `yaml:"min_size" json:"min_size"`
}

// DefaultDetectOptions are the usual Haar cascade settings for frontal faces.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{ScaleFactor: 1.1, MinNeighbors: 5, MinSize: 30}
}

// FrameTask represents a single encoded frame sent to a detector worker.
// Index counts the frames that worker has been sent, from 1.
type FrameTask struct {
	Index int
	Data  []byte
}

// FaceResult matches the JSON structure coming back from the Python detector.
type FaceResult struct {
	Box []int `json:"box"` // [x, y, w, h]
}

// Rect converts the box; ok is false when it is malformed.
func (f FaceResult) Rect() (Rect, bool) {
	if len(f.Box) != 4 {
		return Rect{}, false
	}
	return Rect{X: f.Box[0], Y: f.Box[1], W: f.Box[2], H: f.Box[3]}, true
}

// ErrorResult captures the error object returned by Python on failure
type ErrorResult struct {
	Error string `json:"error"`
}
