package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/andresmejia3/thermosentinel/internal/camera"
	"github.com/andresmejia3/thermosentinel/internal/capture"
	"github.com/andresmejia3/thermosentinel/internal/config"
	"github.com/andresmejia3/thermosentinel/internal/metrics"
	"github.com/andresmejia3/thermosentinel/internal/radiometry"
	"github.com/andresmejia3/thermosentinel/internal/render"
	"github.com/andresmejia3/thermosentinel/internal/series"
	"github.com/andresmejia3/thermosentinel/internal/sink"
	"github.com/andresmejia3/thermosentinel/internal/thermal"
	"github.com/andresmejia3/thermosentinel/internal/types"
	"github.com/andresmejia3/thermosentinel/internal/utils"
	"github.com/andresmejia3/thermosentinel/internal/vision"
	"github.com/andresmejia3/thermosentinel/internal/web"
	"github.com/andresmejia3/thermosentinel/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runOpts Options

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Measure forehead temperatures from the camera until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		if err := applyOptions(cmd, Cfg, runOpts); err != nil {
			utils.Die("Invalid options", err, nil)
		}
		// Die exits without running deferred calls, so it only happens
		// once runLoop has closed the camera, detector and broker.
		if err := runLoop(cmd.Context(), Cfg); err != nil {
			utils.Die("Capture loop stopped", err, nil)
		}
	},
}

func init() {
	bindMeasureFlags(runCmd, &runOpts)
	runCmd.Flags().BoolVar(&runOpts.Fake, "fake", false, "Use the built-in synthetic camera instead of the FLIR")
	runCmd.Flags().StringVarP(&runOpts.Interval, "interval", "i", "2s", "Pause between cycles")
	runCmd.Flags().StringVar(&runOpts.Cadence, "cadence", "fixed-delay", "fixed-delay (pause after each cycle) or fixed-rate (cycles start an interval apart)")
	runCmd.Flags().StringVarP(&runOpts.Listen, "listen", "l", "", "Serve the live view and /metrics on this address (e.g. :8080)")
	runCmd.Flags().StringVar(&runOpts.Broker, "mqtt", "", "Publish measurements to this MQTT broker (e.g. tcp://localhost:1883)")
	rootCmd.AddCommand(runCmd)
}

// bindMeasureFlags registers the flags run and measure share.
func bindMeasureFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().IntVarP(&opts.Scale, "scale", "s", 8, "Visible pixels per thermal pixel")
	cmd.Flags().IntVarP(&opts.MaxFaces, "max-faces", "m", 0, "Measure at most this many faces per frame (0 = all)")
	cmd.Flags().StringVarP(&opts.Primary, "primary", "p", "median", "Reported statistic: median or mean")
	cmd.Flags().StringVarP(&opts.Backend, "detector", "d", "opencv", "Face detector: opencv or python")
	cmd.Flags().BoolVar(&opts.Clamp, "clamp", false, "Trim foreheads to the thermal field instead of skipping them")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "Write annotated frames to this directory")
}

// applyOptions copies the flags the user actually set over cfg and
// validates the result.
func applyOptions(cmd *cobra.Command, cfg *config.Config, opts Options) error {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("fake") {
		cfg.Camera.Fake = opts.Fake
	}
	if changed("interval") {
		d, err := time.ParseDuration(opts.Interval)
		if err != nil {
			return fmt.Errorf("invalid interval format (use '2s', '500ms'): %w", err)
		}
		cfg.Capture.Interval = d
	}
	if changed("cadence") {
		cfg.Capture.Cadence = opts.Cadence
	}
	if changed("scale") {
		cfg.Measure.Scale = opts.Scale
	}
	if changed("max-faces") {
		cfg.Measure.MaxFaces = opts.MaxFaces
	}
	if changed("primary") {
		cfg.Measure.Primary = opts.Primary
	}
	if changed("detector") {
		cfg.Detector.Backend = opts.Backend
	}
	if changed("clamp") {
		cfg.Measure.ClampToField = opts.Clamp
	}
	if changed("output") {
		cfg.Output.Dir = opts.OutputDir
	}
	if changed("listen") {
		cfg.Web.Listen = opts.Listen
	}
	if changed("mqtt") {
		cfg.MQTT.Broker = opts.Broker
	}
	return config.Validate(cfg)
}

// controllerOptions translates the configuration into capture options.
func controllerOptions(cfg *config.Config) capture.Options {
	return capture.Options{
		Interval:       cfg.Capture.Interval,
		Cadence:        capture.Cadence(cfg.Capture.Cadence),
		AcquireRetries: cfg.Capture.AcquireRetries,
		RetryBackoff:   cfg.Capture.RetryBackoff,
		WorkDir:        cfg.Capture.WorkDir,
		KeepSnapshots:  cfg.Capture.KeepSnapshots,
		Measure: capture.MeasureOptions{
			Scale:        types.ScaleFactor(cfg.Measure.Scale),
			MaxFaces:     cfg.Measure.MaxFaces,
			ClampToField: cfg.Measure.ClampToField,
		},
		Primary:          thermal.Primary(cfg.Measure.Primary),
		DetectDownscaled: cfg.Detector.DetectDownscaled,
		ShowOverlay:      cfg.Camera.Overlay,
		AutoRange:        cfg.Camera.AutoRange,
	}
}

func newCamera(cfg *config.Config) (camera.Camera, error) {
	if cfg.Camera.Fake {
		return camera.NewFake(), nil
	}
	return camera.NewFLIR(camera.Config{
		BaseURL:  cfg.Camera.URL,
		User:     cfg.Camera.User,
		Password: cfg.Camera.Password,
		Timeout:  cfg.Camera.Timeout,
	})
}

type detector interface {
	capture.Detector
	Close() error
}

func newDetector(ctx context.Context, cfg *config.Config) (detector, error) {
	switch cfg.Detector.Backend {
	case "python":
		return worker.NewPythonWorker(ctx, 0, cfg.Detector.Script, cfg.Detector.Options)
	default:
		return vision.NewCascade(cfg.Detector.Cascade, cfg.Detector.Options)
	}
}

// newAnnotator returns nil when annotated frames are neither written nor
// served.
func newAnnotator(cfg *config.Config, hub *web.Hub) (*render.Annotator, error) {
	if cfg.Output.Dir == "" && hub == nil {
		return nil, nil
	}
	a := &render.Annotator{Dir: cfg.Output.Dir, Quality: 85}
	if cfg.Output.Dir != "" {
		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return nil, err
		}
	}
	if hub != nil {
		a.Publish = hub.SetStill
	}
	return a, nil
}

// loopError drops the cancellation that ends every interrupted run.
func loopError(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runLoop wires the camera, decoder, detector and sinks into a controller
// and runs it (and the live view, if enabled) until interrupted. Every
// resource it opened is closed before it returns.
func runLoop(ctx context.Context, cfg *config.Config) error {
	cam, err := newCamera(cfg)
	if err != nil {
		return fmt.Errorf("invalid camera settings: %w", err)
	}
	defer cam.Close()

	if cfg.Camera.Fake {
		fmt.Fprintf(os.Stderr, "🧪 Using the synthetic camera\n")
	} else {
		fmt.Fprintf(os.Stderr, "📷 Logging in to %s...\n", cfg.Camera.URL)
	}
	if err := cam.Login(ctx); err != nil {
		return fmt.Errorf("camera login failed: %w", err)
	}

	if !cfg.Camera.Fake {
		if _, err := utils.LookTool(cfg.Decoder.ExifTool); err != nil {
			return fmt.Errorf("exiftool is required to decode radiometric snapshots: %w", err)
		}
	}

	det, err := newDetector(ctx, cfg)
	if err != nil {
		return fmt.Errorf("face detector startup failed: %w", err)
	}
	defer det.Close()

	readings := series.New[float64](cfg.Series.Capacity)
	reg := metrics.NewRegistry()

	var hub *web.Hub
	if cfg.Web.Listen != "" {
		hub = web.NewHub(readings)
	}
	annotator, err := newAnnotator(cfg, hub)
	if err != nil {
		return fmt.Errorf("failed to prepare output directory: %w", err)
	}

	sinks := sink.Multi{
		{Name: "console", Sink: sink.Console{W: os.Stdout, Table: verbose}},
		{Name: "series", Sink: sink.Series{S: readings}},
	}
	if annotator != nil {
		sinks = append(sinks, sink.Named{Name: "render", Sink: annotator})
	}
	if hub != nil {
		sinks = append(sinks, sink.Named{Name: "web", Sink: hub})
	}
	if cfg.MQTT.Broker != "" {
		pub := sink.NewMQTT(sink.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			QoS:      cfg.MQTT.QoS,
		})
		if err := pub.Connect(ctx); err != nil {
			return fmt.Errorf("mqtt connection failed: %w", err)
		}
		defer func() {
			published, failed := pub.Stats()
			pub.Disconnect()
			slog.Info("mqtt publisher closed", "published", published, "errors", failed)
		}()
		sinks = append(sinks, sink.Named{Name: "mqtt", Sink: pub})
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("🌡️  ThermoSentinel measuring"),
		progressbar.OptionSetWriter(os.Stderr), // Write spinner to Stderr
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
	)
	cycles := 0
	sinks = append(sinks, sink.Named{Name: "progress", Sink: capture.SinkFunc(func(context.Context, *capture.Result) error {
		cycles++
		return bar.Add(1)
	})})

	ctrl, err := capture.New(cam, radiometry.NewDecoder(cfg.Decoder.ExifTool), det, sinks, controllerOptions(cfg))
	if err != nil {
		return fmt.Errorf("invalid capture settings: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	if hub != nil {
		fmt.Fprintf(os.Stderr, "🌐 Live view on http://%s/\n", cfg.Web.Listen)
		g.Go(func() error { return web.Serve(gctx, cfg.Web.Listen, hub.Handler(reg)) })
	}
	err = loopError(g.Wait())
	bar.Finish()
	if err != nil {
		return err
	}
	slog.Debug("capture loop stopped", "cycles", cycles)

	fmt.Fprintf(os.Stderr, "\n🏁 Stopped after %d cycles.", cycles)
	if last, ok := readings.Last(); ok {
		fmt.Fprintf(os.Stderr, " Last reading: %.1f°C at %s", last.Value, last.Time.Local().Format("15:04:05"))
	}
	fmt.Fprintln(os.Stderr)
	return nil
}
