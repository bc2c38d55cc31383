package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sync"

	"github.com/andresmejia3/thermosentinel/internal/thermal"
)

// Fake is an in-process Camera. Visible snapshots are JPEGs of a flat
// scene with a bright oval; infrared snapshots are .npy temperature maps
// with a warm spot under the oval. It is meant for demos and tests.
type Fake struct {
	// Thermal is the infrared resolution; the visible image is Scale
	// times larger in each dimension.
	Thermal image.Point
	Scale   int
	// Ambient and Skin are the temperatures of the background and the
	// warm spot, in °C.
	Ambient, Skin float64

	mu       sync.Mutex
	loggedIn bool
	ir       bool
	shots    int
}

// NewFake returns a fake with an 80x60 thermal sensor and 8x visible
// resolution.
func NewFake() *Fake {
	return &Fake{Thermal: image.Pt(80, 60), Scale: 8, Ambient: 22, Skin: 36.5}
}

func (f *Fake) Login(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = true
	return nil
}

func (f *Fake) SetVisualMode(ctx context.Context) error { return f.mode(false) }

func (f *Fake) SetIRMode(ctx context.Context) error { return f.mode(true) }

func (f *Fake) mode(ir bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loggedIn {
		return ErrNotLoggedIn
	}
	f.ir = ir
	return nil
}

func (f *Fake) ShowOverlay(ctx context.Context, show bool) error { return f.check() }

func (f *Fake) SetAutoTemperatureRange(ctx context.Context) error { return f.check() }

func (f *Fake) check() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loggedIn {
		return ErrNotLoggedIn
	}
	return nil
}

// Shots is the number of snapshots taken so far.
func (f *Fake) Shots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shots
}

func (f *Fake) Snapshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if !f.loggedIn {
		f.mu.Unlock()
		return ErrNotLoggedIn
	}
	ir := f.ir
	f.shots++
	f.mu.Unlock()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if ir {
		err = thermal.WriteNPY(out, f.field())
	} else {
		err = jpeg.Encode(out, f.visible(), &jpeg.Options{Quality: 90})
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("fake snapshot: %w", err)
	}
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = false
	return nil
}

// spot is the oval in thermal coordinates.
func (f *Fake) spot() image.Rectangle {
	w, h := f.Thermal.X, f.Thermal.Y
	return image.Rect(w*3/8, h/5, w*5/8, h*3/5)
}

func inOval(p image.Point, r image.Rectangle) bool {
	cx, cy := float64(r.Min.X+r.Max.X)/2, float64(r.Min.Y+r.Max.Y)/2
	rx, ry := float64(r.Dx())/2, float64(r.Dy())/2
	if rx == 0 || ry == 0 {
		return false
	}
	dx, dy := (float64(p.X)+0.5-cx)/rx, (float64(p.Y)+0.5-cy)/ry
	return dx*dx+dy*dy <= 1
}

func (f *Fake) field() *thermal.Field {
	fl := thermal.NewField(f.Thermal.X, f.Thermal.Y)
	spot := f.spot()
	for y := 0; y < f.Thermal.Y; y++ {
		for x := 0; x < f.Thermal.X; x++ {
			v := f.Ambient
			if inOval(image.Pt(x, y), spot) {
				v = f.Skin
			}
			fl.Set(x, y, v)
		}
	}
	return fl
}

func (f *Fake) visible() image.Image {
	s := f.Scale
	if s < 1 {
		s = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Thermal.X*s, f.Thermal.Y*s))
	spot := f.spot()
	spot = image.Rect(spot.Min.X*s, spot.Min.Y*s, spot.Max.X*s, spot.Max.Y*s)
	bg := color.RGBA{60, 60, 70, 255}
	skin := color.RGBA{224, 172, 140, 255}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if inOval(image.Pt(x, y), spot) {
				img.SetRGBA(x, y, skin)
			} else {
				img.SetRGBA(x, y, bg)
			}
		}
	}
	return img
}
