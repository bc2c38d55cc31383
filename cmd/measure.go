package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/andresmejia3/thermosentinel/internal/camera"
	"github.com/andresmejia3/thermosentinel/internal/capture"
	"github.com/andresmejia3/thermosentinel/internal/config"
	"github.com/andresmejia3/thermosentinel/internal/radiometry"
	"github.com/andresmejia3/thermosentinel/internal/sink"
	"github.com/andresmejia3/thermosentinel/internal/utils"
	"github.com/spf13/cobra"
)

var (
	measureOpts    Options
	measureImage   string
	measureThermal string
	measureJSON    bool
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Measure one visible image against a thermal file (.npy map or radiometric JPEG)",
	Run: func(cmd *cobra.Command, args []string) {
		if err := validateMeasureFlags(measureImage, measureThermal); err != nil {
			utils.Die("Invalid input", err, nil)
		}
		if err := applyOptions(cmd, Cfg, measureOpts); err != nil {
			utils.Die("Invalid options", err, nil)
		}
		if err := runMeasure(cmd.Context(), Cfg, measureImage, measureThermal); err != nil {
			utils.Die("Measurement failed", err, nil)
		}
	},
}

func init() {
	bindMeasureFlags(measureCmd, &measureOpts)
	measureCmd.Flags().StringVar(&measureImage, "image", "", "Visible image (JPEG or PNG)")
	measureCmd.Flags().StringVar(&measureThermal, "thermal", "", "Thermal file: .npy temperature map or FLIR radiometric JPEG")
	measureCmd.Flags().BoolVar(&measureJSON, "json", false, "Print the report as JSON instead of a table")

	measureCmd.MarkFlagRequired("image")
	measureCmd.MarkFlagRequired("thermal")
	rootCmd.AddCommand(measureCmd)
}

// validateMeasureFlags ensures both inputs are readable files before the
// detector is started.
func validateMeasureFlags(paths ...string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("input file %s does not exist", p)
			}
			return fmt.Errorf("unable to access input file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("input path %s is a directory, expected a file", p)
		}
	}
	return nil
}

// runMeasure replays the two files through a single capture cycle, so the
// offline result goes through exactly the same mapping and sampling as the
// live loop.
func runMeasure(ctx context.Context, cfg *config.Config, imagePath, thermalPath string) error {
	cam := &camera.Files{Visible: imagePath, Thermal: thermalPath}
	if err := cam.Login(ctx); err != nil {
		return err
	}

	det, err := newDetector(ctx, cfg)
	if err != nil {
		return fmt.Errorf("face detector startup failed: %w", err)
	}
	defer det.Close()

	annotator, err := newAnnotator(cfg, nil)
	if err != nil {
		return err
	}

	var out sink.Multi
	if measureJSON {
		out = append(out, sink.Named{Name: "json", Sink: capture.SinkFunc(printJSON)})
	} else {
		out = append(out, sink.Named{Name: "console", Sink: sink.Console{W: os.Stdout, Table: true}})
	}
	if annotator != nil {
		out = append(out, sink.Named{Name: "render", Sink: annotator})
	}

	opts := controllerOptions(cfg)
	opts.AcquireRetries = 0
	opts.ShowOverlay, opts.AutoRange = false, false

	ctrl, err := capture.New(cam, radiometry.NewDecoder(cfg.Decoder.ExifTool), det, out, opts)
	if err != nil {
		return err
	}
	_, err = ctrl.RunOnce(ctx)
	return err
}

func printJSON(ctx context.Context, res *capture.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sink.NewReport(res))
}
