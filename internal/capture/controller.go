package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // visible snapshots
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/andresmejia3/thermosentinel/internal/camera"
	"github.com/andresmejia3/thermosentinel/internal/metrics"
	"github.com/andresmejia3/thermosentinel/internal/region"
	"github.com/andresmejia3/thermosentinel/internal/thermal"
	"github.com/andresmejia3/thermosentinel/internal/types"
	"github.com/andresmejia3/thermosentinel/internal/utils"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// Cadence decides how the idle wait between cycles is computed.
type Cadence string

const (
	// FixedDelay waits the full interval after each cycle ends.
	FixedDelay Cadence = "fixed-delay"
	// FixedRate starts cycles an interval apart; a cycle that overruns is
	// followed immediately by the next one.
	FixedRate Cadence = "fixed-rate"
)

// Options configure a Controller.
type Options struct {
	Interval time.Duration
	Cadence  Cadence
	// AcquireRetries is how many times a failed acquisition is retried
	// before the loop gives up.
	AcquireRetries int
	RetryBackoff   time.Duration
	// WorkDir receives the per-cycle snapshot files.
	WorkDir       string
	KeepSnapshots bool

	Measure          MeasureOptions
	Primary          thermal.Primary
	DetectDownscaled bool

	ShowOverlay bool
	AutoRange   bool
}

// DefaultOptions mirror the reference rig: an 8x visible/thermal ratio and
// a two second pause between cycles.
func DefaultOptions() Options {
	return Options{
		Interval:       2 * time.Second,
		Cadence:        FixedDelay,
		AcquireRetries: 3,
		RetryBackoff:   500 * time.Millisecond,
		WorkDir:        os.TempDir(),
		Measure:        MeasureOptions{Scale: 8},
		Primary:        thermal.PrimaryMedian,
		AutoRange:      true,
	}
}

// Controller runs the capture cycle: acquire, detect, measure, render,
// clean up, wait. It is driven by a single goroutine.
type Controller struct {
	cam  camera.Camera
	dec  Decoder
	det  Detector
	sink Sink
	opts Options
	log  *slog.Logger

	state  atomic.Int32
	cycles int

	now     func() time.Time
	observe func(State)
}

// New validates opts and wires the collaborators. The camera must already
// be logged in.
func New(cam camera.Camera, dec Decoder, det Detector, sink Sink, opts Options) (*Controller, error) {
	if cam == nil || dec == nil || det == nil {
		return nil, errors.New("capture: camera, decoder and detector are required")
	}
	if opts.Measure.Scale < 1 {
		return nil, fmt.Errorf("capture: scale factor must be >= 1, got %d", opts.Measure.Scale)
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("capture: negative interval %v", opts.Interval)
	}
	if opts.AcquireRetries < 0 {
		return nil, fmt.Errorf("capture: negative retry budget %d", opts.AcquireRetries)
	}
	switch opts.Cadence {
	case "":
		opts.Cadence = FixedDelay
	case FixedDelay, FixedRate:
	default:
		return nil, fmt.Errorf("capture: unknown cadence %q", opts.Cadence)
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if sink == nil {
		sink = SinkFunc(func(context.Context, *Result) error { return nil })
	}
	return &Controller{
		cam:  cam,
		dec:  dec,
		det:  det,
		sink: sink,
		opts: opts,
		log:  slog.Default().With("component", "capture"),
		now:  time.Now,
	}, nil
}

// State reports the current phase. It is safe to call from any goroutine.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	if c.observe != nil {
		c.observe(s)
	}
}

// Run loops until ctx is cancelled or acquisition fails for good. A
// cancelled context returns ctx.Err() after the in-flight cleanup.
func (c *Controller) Run(ctx context.Context) error {
	defer c.setState(Stopped)

	for {
		start := c.now()
		_, err := c.RunOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrAcquisition):
			return err
		case err != nil:
			c.log.Warn("cycle failed", "cycle", c.cycles, "error", err)
		}

		c.setState(Idle)
		timer := time.NewTimer(c.wait(c.now().Sub(start)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Controller) wait(elapsed time.Duration) time.Duration {
	if c.opts.Cadence != FixedRate {
		return c.opts.Interval
	}
	return max(c.opts.Interval-elapsed, 0)
}

// RunOnce performs a single cycle. The snapshot files are removed before it
// returns, whatever happened. Errors wrapping ErrAcquisition are fatal for
// the loop; the others only cost this cycle. Once a frame is acquired it is
// always rendered: a decode or detect failure is returned together with
// the unmeasured result that was handed to the sinks.
func (c *Controller) RunOnce(ctx context.Context) (res *Result, err error) {
	c.cycles++
	start := c.now()
	id := uuid.New()
	frame := &Frame{
		ID:          id,
		VisiblePath: filepath.Join(c.opts.WorkDir, "vis_"+id.String()+".jpg"),
		ThermalPath: filepath.Join(c.opts.WorkDir, "thermal_"+id.String()+".jpg"),
	}
	log := c.log.With("cycle", c.cycles, "frame", id)

	status := metrics.CycleMeasured
	defer func() {
		c.setState(Cleanup)
		if !c.opts.KeepSnapshots {
			if rerr := utils.RemoveFiles(frame.VisiblePath, frame.ThermalPath); rerr != nil {
				log.Warn("cleanup failed", "error", rerr)
			}
		}
		if ctx.Err() != nil {
			status = metrics.CycleCancelled
		}
		metrics.RecordCycle(status, c.now().Sub(start).Seconds())
	}()

	c.setState(Capturing)
	if err := c.acquire(ctx, frame, log); err != nil {
		status = metrics.CycleAcquisition
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}

	res = &Result{
		Cycle:   c.cycles,
		Frame:   frame,
		Scale:   c.opts.Measure.Scale,
		Primary: c.opts.Primary,
	}

	field, err := c.dec.Decode(ctx, frame.ThermalPath)
	if err != nil {
		status = metrics.CycleDecodeError
		res.Err = fmt.Errorf("%w: %s: %w", ErrDecode, frame.ThermalPath, err)
		c.render(ctx, res, log)
		return res, res.Err
	}
	frame.Thermal = field

	c.setState(Detecting)
	faces, err := c.detect(ctx, frame.Visible)
	if err != nil {
		status = metrics.CycleDetectError
		res.Err = fmt.Errorf("detect: %w", err)
		c.render(ctx, res, log)
		return res, res.Err
	}

	c.setState(Measuring)
	if len(faces) > 0 {
		res.Faces, res.Skipped = Measure(field, faces, c.opts.Measure, log)
	}
	if len(res.Faces) == 0 {
		status = metrics.CycleNoFaces
	} else {
		metrics.RecordTemperature(res.Temperature(0))
	}
	log.Debug("measured", "faces", len(faces), "measured", len(res.Faces), "skipped", res.Skipped)

	c.render(ctx, res, log)
	return res, nil
}

// render hands res to the sinks. Failures are logged only.
func (c *Controller) render(ctx context.Context, res *Result, log *slog.Logger) {
	c.setState(Rendering)
	if err := c.sink.Render(ctx, res); err != nil {
		log.Error("render", "error", fmt.Errorf("%w: %w", ErrRender, err))
	}
}

// detect returns boxes in detection space.
func (c *Controller) detect(ctx context.Context, img image.Image) ([]types.Rect, error) {
	s := c.opts.Measure.Scale
	if c.opts.DetectDownscaled {
		return c.det.Detect(ctx, Downscale(img, s))
	}
	faces, err := c.det.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	return region.ToDetectionSpaceAll(faces, s), nil
}

// acquire takes both snapshots, retrying the whole sequence with backoff.
func (c *Controller) acquire(ctx context.Context, frame *Frame, log *slog.Logger) error {
	b := backoff.NewExponentialBackOff()
	if c.opts.RetryBackoff > 0 {
		b.InitialInterval = c.opts.RetryBackoff
	}
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 {
			metrics.RecordRetry()
		}
		err := c.snapshots(ctx, frame)
		if err != nil && ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.opts.AcquireRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("acquisition failed, retrying", "attempt", attempt, "in", next, "error", err)
		}),
	)
	return err
}

func (c *Controller) snapshots(ctx context.Context, frame *Frame) error {
	if err := c.cam.ShowOverlay(ctx, c.opts.ShowOverlay); err != nil {
		return err
	}
	if c.opts.AutoRange {
		if err := c.cam.SetAutoTemperatureRange(ctx); err != nil {
			return err
		}
	}
	if err := c.cam.SetVisualMode(ctx); err != nil {
		return err
	}
	frame.Time = c.now()
	if err := c.cam.Snapshot(ctx, frame.VisiblePath); err != nil {
		return err
	}
	img, err := decodeImage(frame.VisiblePath)
	if err != nil {
		return err
	}
	frame.Visible = img

	if err := c.cam.SetIRMode(ctx); err != nil {
		return err
	}
	return c.cam.Snapshot(ctx, frame.ThermalPath)
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
