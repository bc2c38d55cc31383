package capture

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/andresmejia3/thermosentinel/internal/thermal"
	"github.com/andresmejia3/thermosentinel/internal/types"
	"github.com/google/uuid"
)

var (
	// ErrAcquisition means the camera could not deliver a frame within the
	// retry budget. It ends the loop.
	ErrAcquisition = errors.New("acquisition failed")
	// ErrDecode means the thermal snapshot could not be turned into a
	// temperature field. Measurement is skipped for that cycle.
	ErrDecode = errors.New("thermal decode failed")
	// ErrRender wraps presentation failures. They are logged only.
	ErrRender = errors.New("render failed")
)

// Frame is one acquisition: a visible image and the thermal field taken
// right after it.
type Frame struct {
	ID          uuid.UUID
	Time        time.Time
	VisiblePath string
	ThermalPath string
	Visible     image.Image
	Thermal     *thermal.Field
}

// Result is what a cycle hands to the presentation sinks.
type Result struct {
	Cycle   int
	Frame   *Frame
	Scale   types.ScaleFactor
	Primary thermal.Primary
	// Faces holds one entry per measured face, in detection order.
	Faces []types.FaceStats
	// Skipped counts faces whose forehead could not be sampled.
	Skipped int
	// Err is set when the frame could not be measured (ErrDecode or a
	// detector failure). Faces is then empty.
	Err error
}

// Temperature is the primary statistic of face i.
func (r *Result) Temperature(i int) float64 {
	return r.Primary.Pick(r.Faces[i].Stats)
}

// Decoder turns a thermal snapshot file into a calibrated field.
type Decoder interface {
	Decode(ctx context.Context, path string) (*thermal.Field, error)
}

// Detector finds faces in a visible image. Boxes are in the coordinates of
// the image it is given.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]types.Rect, error)
}

// Sink presents a result. It must not keep references to the frame's
// image or field past the call without copying them.
type Sink interface {
	Render(ctx context.Context, res *Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res *Result) error

func (f SinkFunc) Render(ctx context.Context, res *Result) error { return f(ctx, res) }
