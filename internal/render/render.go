// Package render draws each cycle as one JPEG: the visible frame with face
// and forehead boxes next to the colour-mapped thermal field.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/andresmejia3/thermosentinel/internal/capture"
	"github.com/andresmejia3/thermosentinel/internal/types"
	"gocv.io/x/gocv"
)

var (
	faceColor     = color.RGBA{G: 255}
	foreheadColor = color.RGBA{B: 255}
	textColor     = color.RGBA{R: 255, G: 255, B: 255}
)

// Annotator is a capture.Sink producing the side-by-side composite.
type Annotator struct {
	// Dir receives frame_<cycle>.jpg when non-empty.
	Dir string
	// Publish is handed every encoded composite, e.g. the web hub's SetStill.
	Publish func(jpg []byte)
	// Quality of the JPEG encoding, 1..100. Zero keeps the OpenCV default.
	Quality int
}

// Render implements capture.Sink.
func (a *Annotator) Render(ctx context.Context, res *capture.Result) error {
	if res.Frame == nil || res.Frame.Visible == nil {
		return nil
	}
	jpg, err := a.Compose(res)
	if err != nil {
		return err
	}
	if a.Dir != "" {
		path := filepath.Join(a.Dir, fmt.Sprintf("frame_%06d.jpg", res.Cycle))
		if err := os.WriteFile(path, jpg, 0o644); err != nil {
			return err
		}
		slog.Debug("annotated frame written", "path", path)
	}
	if a.Publish != nil {
		a.Publish(jpg)
	}
	return nil
}

// Compose draws the result and returns the encoded JPEG.
func (a *Annotator) Compose(res *capture.Result) ([]byte, error) {
	vis, err := gocv.ImageToMatRGB(res.Frame.Visible)
	if err != nil {
		return nil, fmt.Errorf("convert visible: %w", err)
	}
	defer vis.Close()

	for i, f := range res.Faces {
		gocv.Rectangle(&vis, f.FaceDisplay.Image(), faceColor, 2)
		gocv.Rectangle(&vis, f.ForeheadDisplay.Image(), foreheadColor, 2)
		label := fmt.Sprintf("%.1f C", res.Temperature(i))
		org := image.Pt(f.FaceDisplay.X, max(f.FaceDisplay.Y-8, 16))
		gocv.PutText(&vis, label, org, gocv.FontHersheySimplex, 0.8, textColor, 2)
	}

	out := vis
	if res.Frame.Thermal != nil {
		heat, err := a.heatmap(res, vis.Cols(), vis.Rows())
		if err != nil {
			return nil, err
		}
		defer heat.Close()

		out = gocv.NewMat()
		defer out.Close()
		gocv.Hconcat(vis, heat, &out)
	}

	var buf *gocv.NativeByteBuffer
	if a.Quality > 0 {
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, out, []int{gocv.IMWriteJpegQuality, a.Quality})
	} else {
		buf, err = gocv.IMEncode(gocv.JPEGFileExt, out)
	}
	if err != nil {
		return nil, fmt.Errorf("encode composite: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// heatmap colour-maps the field, stretches it to w×h and outlines the
// sampled foreheads.
func (a *Annotator) heatmap(res *capture.Result, w, h int) (gocv.Mat, error) {
	field := res.Frame.Thermal
	gray, err := gocv.ImageGrayToMatGray(field.Gray())
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert thermal: %w", err)
	}
	defer gray.Close()

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(gray, &colored, gocv.ColormapHot)

	heat := gocv.NewMat()
	gocv.Resize(colored, &heat, image.Pt(w, h), 0, 0, gocv.InterpolationNearestNeighbor)

	sx := float64(w) / float64(field.Width())
	sy := float64(h) / float64(field.Height())
	for _, f := range res.Faces {
		gocv.Rectangle(&heat, stretch(f.Forehead, sx, sy), foreheadColor, 2)
	}
	return heat, nil
}

// stretch maps a detection-space rectangle onto the resized heatmap.
func stretch(r types.Rect, sx, sy float64) image.Rectangle {
	return image.Rect(
		int(float64(r.X)*sx), int(float64(r.Y)*sy),
		int(float64(r.X+r.W)*sx), int(float64(r.Y+r.H)*sy),
	)
}
