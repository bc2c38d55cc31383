package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/thermosentinel/internal/camera"
	"github.com/andresmejia3/thermosentinel/internal/capture"
	"github.com/andresmejia3/thermosentinel/internal/config"
	"github.com/andresmejia3/thermosentinel/internal/thermal"
	"github.com/spf13/cobra"
)

// newFlagCmd registers the same flags as run on a throwaway command.
func newFlagCmd(opts *Options) *cobra.Command {
	c := &cobra.Command{Use: "test"}
	bindMeasureFlags(c, opts)
	c.Flags().BoolVar(&opts.Fake, "fake", false, "")
	c.Flags().StringVarP(&opts.Interval, "interval", "i", "2s", "")
	c.Flags().StringVar(&opts.Cadence, "cadence", "fixed-delay", "")
	c.Flags().StringVarP(&opts.Listen, "listen", "l", "", "")
	c.Flags().StringVar(&opts.Broker, "mqtt", "", "")
	return c
}

func TestApplyOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(cfg *config.Config) bool
		wantErr bool
	}{
		{
			name:  "No flags keeps configuration",
			args:  nil,
			check: func(cfg *config.Config) bool { return cfg.Measure.Scale == 8 && cfg.Capture.Interval == 2*time.Second },
		},
		{
			name: "Overrides",
			args: []string{"--scale", "4", "-m", "1", "--primary", "mean", "--interval", "500ms", "--cadence", "fixed-rate", "--clamp", "--fake"},
			check: func(cfg *config.Config) bool {
				return cfg.Measure.Scale == 4 && cfg.Measure.MaxFaces == 1 && cfg.Measure.Primary == "mean" &&
					cfg.Capture.Interval == 500*time.Millisecond && cfg.Capture.Cadence == "fixed-rate" &&
					cfg.Measure.ClampToField && cfg.Camera.Fake
			},
		},
		{
			name:  "Sinks",
			args:  []string{"-o", "/tmp/out", "-l", ":8080", "--mqtt", "tcp://broker:1883"},
			check: func(cfg *config.Config) bool { return cfg.Output.Dir == "/tmp/out" && cfg.Web.Listen == ":8080" && cfg.MQTT.Broker == "tcp://broker:1883" },
		},
		{name: "Invalid interval", args: []string{"--interval", "soon"}, wantErr: true},
		{name: "Invalid scale", args: []string{"--scale", "0"}, wantErr: true},
		{name: "Invalid primary", args: []string{"--primary", "mode"}, wantErr: true},
		{name: "Invalid detector", args: []string{"--detector", "dlib"}, wantErr: true},
		{name: "Invalid cadence", args: []string{"--cadence", "sometimes"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts Options
			c := newFlagCmd(&opts)
			if err := c.Flags().Parse(tt.args); err != nil {
				t.Fatal(err)
			}
			cfg := config.Default()
			err := applyOptions(c, cfg, opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("applyOptions() produced unexpected config: %+v", cfg)
			}
		})
	}
}

func TestControllerOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Measure.Primary = "mean"
	cfg.Measure.MaxFaces = 1
	cfg.Detector.DetectDownscaled = true

	opts := controllerOptions(cfg)
	if opts.Measure.Scale != 8 || opts.Measure.MaxFaces != 1 {
		t.Errorf("measure options = %+v", opts.Measure)
	}
	if opts.Primary != thermal.PrimaryMean {
		t.Errorf("Primary = %q, want mean", opts.Primary)
	}
	if opts.Cadence != capture.FixedDelay || opts.Interval != 2*time.Second {
		t.Errorf("cadence = %q every %v", opts.Cadence, opts.Interval)
	}
	if !opts.DetectDownscaled || !opts.AutoRange || opts.ShowOverlay {
		t.Errorf("flags = %+v", opts)
	}
	if _, err := capture.New(camera.NewFake(), nil, nil, nil, opts); err == nil {
		t.Error("capture.New accepted missing collaborators")
	}
}

func TestValidateMeasureFlags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "face.jpg")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		paths   []string
		wantErr bool
	}{
		{"Valid file", []string{file}, false},
		{"Missing file", []string{file, filepath.Join(dir, "nope.npy")}, true},
		{"Directory", []string{dir}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateMeasureFlags(tt.paths...); (err != nil) != tt.wantErr {
				t.Errorf("validateMeasureFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshotFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"vis_a.jpg", "thermal_a.jpg", "frame_000001.jpg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if got := snapshotFiles(dir); len(got) != 2 {
		t.Errorf("snapshotFiles() = %v, want the two snapshots", got)
	}
	if got := outputFiles(dir); len(got) != 1 || filepath.Base(got[0]) != "frame_000001.jpg" {
		t.Errorf("outputFiles() = %v", got)
	}

	removeAll(snapshotFiles(dir))
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
	if got := snapshotFiles(dir); len(got) != 0 {
		t.Errorf("snapshots left behind: %v", got)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	// Prompts go to stdout; keep the test output clean.
	oldStdout := os.Stdout
	devNull, _ := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	os.Stdout = devNull
	defer func() {
		os.Stdout = oldStdout
		devNull.Close()
	}()

	for _, tt := range tests {
		if got := confirm(bufio.NewReader(strings.NewReader(tt.input)), "sure?"); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLoopError(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"Clean exit", nil, nil},
		{"Interrupted", context.Canceled, nil},
		{"Wrapped interrupt", fmt.Errorf("capture: %w", context.Canceled), nil},
		{"Failure", boom, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loopError(tt.in); got != tt.want {
				t.Errorf("loopError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// A startup failure after the camera was opened must come back as an error
// so the deferred Close calls still run.
func TestRunLoopReturnsStartupError(t *testing.T) {
	cfg := config.Default()
	cfg.Camera.Fake = true
	cfg.Detector.Backend = "opencv"
	cfg.Detector.Cascade = filepath.Join(t.TempDir(), "missing.xml")

	err := runLoop(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "face detector startup failed") {
		t.Fatalf("runLoop() error = %v, want detector startup failure", err)
	}
}
