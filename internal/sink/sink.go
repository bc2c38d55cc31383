// Package sink holds the presentation side of the capture loop: console
// output, MQTT publishing and the rolling temperature series.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/thermosentinel/internal/capture"
	"github.com/andresmejia3/thermosentinel/internal/metrics"
	"github.com/andresmejia3/thermosentinel/internal/series"
	"github.com/andresmejia3/thermosentinel/internal/types"
)

// Named is a sink with a name used in logs and metrics.
type Named struct {
	Name string
	capture.Sink
}

// Multi calls every sink in order. A failing sink does not stop the ones
// after it; all failures are joined.
type Multi []Named

func (m Multi) Render(ctx context.Context, res *capture.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Render(ctx, res); err != nil {
			metrics.RecordRenderError(s.Name)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Series appends the primary temperature of every measured face to a
// rolling window.
type Series struct {
	S *series.Series[float64]
}

func (s Series) Render(ctx context.Context, res *capture.Result) error {
	t := time.Now()
	if res.Frame != nil && !res.Frame.Time.IsZero() {
		t = res.Frame.Time
	}
	for i := range res.Faces {
		s.S.Append(t, res.Temperature(i))
	}
	return nil
}

// Measurement is the wire form of one face.
type Measurement struct {
	Face        int         `json:"face"`
	Temperature float64     `json:"temperature"`
	Stats       types.Stats `json:"stats"`
	Forehead    types.Rect  `json:"forehead"`
	FaceBox     types.Rect  `json:"face_box"`
}

// Report is the wire form of a cycle, shared by MQTT and the web view.
type Report struct {
	Frame   string        `json:"frame"`
	Cycle   int           `json:"cycle"`
	Time    time.Time     `json:"time"`
	Primary string        `json:"primary"`
	Faces   []Measurement `json:"faces"`
	Skipped int           `json:"skipped"`
	Error   string        `json:"error,omitempty"`
}

// NewReport flattens a result. Rectangles are in display space.
func NewReport(res *capture.Result) Report {
	r := Report{
		Cycle:   res.Cycle,
		Primary: string(res.Primary),
		Faces:   make([]Measurement, 0, len(res.Faces)),
		Skipped: res.Skipped,
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	if res.Frame != nil {
		r.Frame = res.Frame.ID.String()
		r.Time = res.Frame.Time
	}
	for i, f := range res.Faces {
		r.Faces = append(r.Faces, Measurement{
			Face:        i + 1,
			Temperature: res.Temperature(i),
			Stats:       f.Stats,
			Forehead:    f.ForeheadDisplay,
			FaceBox:     f.FaceDisplay,
		})
	}
	return r
}
