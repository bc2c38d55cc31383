// Package vision detects faces with an OpenCV Haar cascade.
package vision

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/andresmejia3/thermosentinel/internal/types"
	"gocv.io/x/gocv"
)

// DefaultCascade is the frontal face model shipped with OpenCV.
const DefaultCascade = "haarcascade_frontalface_default.xml"

// cascadeDirs are searched when the configured cascade is a bare file name.
var cascadeDirs = []string{
	".",
	"./models/haarcascades",
	"/usr/local/share/opencv4/haarcascades",
	"/usr/share/opencv4/haarcascades",
	"/opt/homebrew/share/opencv4/haarcascades",
}

// Cascade is a face detector. A CascadeClassifier is not safe for
// concurrent use, so calls are serialized.
type Cascade struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	opts       types.DetectOptions
}

// NewCascade loads a cascade model. path may be absolute, relative, or a
// bare file name looked up in the usual OpenCV install locations (and in
// $OPENCV_CASCADE_PATH).
func NewCascade(path string, opts types.DetectOptions) (*Cascade, error) {
	if path == "" {
		path = DefaultCascade
	}
	c := gocv.NewCascadeClassifier()
	for _, candidate := range candidates(path) {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if c.Load(candidate) {
			return &Cascade{classifier: c, opts: opts}, nil
		}
	}
	c.Close()
	return nil, fmt.Errorf("failed to load face cascade %s", path)
}

func candidates(path string) []string {
	if filepath.IsAbs(path) || filepath.Base(path) != path {
		return []string{path}
	}
	dirs := cascadeDirs
	if env := os.Getenv("OPENCV_CASCADE_PATH"); env != "" {
		dirs = append([]string{env}, dirs...)
	}
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, filepath.Join(d, path))
	}
	return out
}

// Detect returns face boxes in the coordinates of img.
func (c *Cascade) Detect(ctx context.Context, img image.Image) ([]types.Rect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	minSize := image.Pt(c.opts.MinSize, c.opts.MinSize)

	c.mu.Lock()
	found := c.classifier.DetectMultiScaleWithParams(gray, c.opts.ScaleFactor, c.opts.MinNeighbors, 0, minSize, image.Pt(0, 0))
	c.mu.Unlock()

	// Translate back if the source image does not start at the origin.
	origin := img.Bounds().Min
	faces := make([]types.Rect, 0, len(found))
	for _, r := range found {
		faces = append(faces, types.FromImage(r.Add(origin)))
	}
	return faces, nil
}

func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifier.Close()
}
