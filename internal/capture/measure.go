package capture

import (
	"errors"
	"image"
	"log/slog"

	"github.com/andresmejia3/thermosentinel/internal/metrics"
	"github.com/andresmejia3/thermosentinel/internal/region"
	"github.com/andresmejia3/thermosentinel/internal/thermal"
	"github.com/andresmejia3/thermosentinel/internal/types"
	"golang.org/x/image/draw"
)

// MeasureOptions control how faces are turned into forehead statistics.
type MeasureOptions struct {
	Scale types.ScaleFactor
	// MaxFaces bounds how many faces are measured, in detection order.
	// Zero measures all of them.
	MaxFaces int
	// ClampToField trims foreheads that stick out of the thermal field
	// instead of skipping them.
	ClampToField bool
}

// Measure derives the forehead of every face (in detection space) and
// computes its statistics over field. Faces whose forehead cannot be
// sampled are skipped and counted.
func Measure(field *thermal.Field, faces []types.Rect, opts MeasureOptions, log *slog.Logger) (stats []types.FaceStats, skipped int) {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxFaces > 0 && len(faces) > opts.MaxFaces {
		faces = faces[:opts.MaxFaces]
	}
	stats = make([]types.FaceStats, 0, len(faces))
	for i, face := range faces {
		forehead := region.DeriveForehead(face)
		st, err := sampleForehead(field, forehead, opts.ClampToField)
		if err != nil {
			status := metrics.FaceEmpty
			if errors.Is(err, thermal.ErrOutOfBounds) {
				status = metrics.FaceOutOfBounds
			}
			metrics.RecordFace(status)
			log.Warn("skipping face", "index", i, "face", face, "forehead", forehead, "error", err)
			skipped++
			continue
		}
		metrics.RecordFace(metrics.FaceMeasured)
		stats = append(stats, types.FaceStats{
			Stats:           st,
			Face:            face,
			Forehead:        forehead,
			FaceDisplay:     region.ToDisplaySpace(face, opts.Scale),
			ForeheadDisplay: region.ToDisplaySpace(forehead, opts.Scale),
		})
	}
	return stats, skipped
}

func sampleForehead(field *thermal.Field, forehead types.Rect, clamp bool) (types.Stats, error) {
	r := forehead
	if clamp {
		var err error
		if r, err = thermal.Clamp(field, forehead); err != nil {
			return types.Stats{}, err
		}
	}
	sub, err := thermal.Sample(field, r)
	if err != nil {
		return types.Stats{}, err
	}
	return thermal.Statistics(sub)
}

// Downscale shrinks img by s in both dimensions, so that detections on the
// result are already in detection space.
func Downscale(img image.Image, s types.ScaleFactor) image.Image {
	if s <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()/int(s), b.Dy()/int(s)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
