// Package camera talks to a dual-sensor (visible + thermal) FLIR camera
// over its HTTP interface.
package camera

import (
	"context"
	"errors"
)

// ErrNotLoggedIn is returned by calls that need a session before Login.
var ErrNotLoggedIn = errors.New("camera: not logged in")

// Camera is a session with a camera that can switch between its visible and
// infrared sensors and save a snapshot of the active one.
type Camera interface {
	Login(ctx context.Context) error
	SetVisualMode(ctx context.Context) error
	SetIRMode(ctx context.Context) error
	// ShowOverlay toggles the on-image graphics (spot meters, scale bar).
	ShowOverlay(ctx context.Context, show bool) error
	SetAutoTemperatureRange(ctx context.Context) error
	// Snapshot writes the active sensor's current image to path.
	Snapshot(ctx context.Context, path string) error
	Close() error
}
