package sink

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/andresmejia3/thermosentinel/internal/capture"
)

// Console prints one line per cycle and, with Table set, a row per face.
type Console struct {
	W     io.Writer
	Table bool
}

func (c Console) Render(ctx context.Context, res *capture.Result) error {
	ts := ""
	if res.Frame != nil {
		ts = res.Frame.Time.Local().Format("15:04:05")
	}
	switch {
	case res.Err != nil:
		fmt.Fprintf(c.W, "❌ [%s] cycle %d: not measured: %v\n", ts, res.Cycle, res.Err)
		return nil
	case len(res.Faces) == 0 && res.Skipped > 0:
		fmt.Fprintf(c.W, "⚠️  [%s] cycle %d: %d face(s) outside the thermal field\n", ts, res.Cycle, res.Skipped)
		return nil
	case len(res.Faces) == 0:
		fmt.Fprintf(c.W, "👀 [%s] cycle %d: no faces\n", ts, res.Cycle)
		return nil
	}

	fmt.Fprintf(c.W, "🌡️  [%s] cycle %d:", ts, res.Cycle)
	for i := range res.Faces {
		fmt.Fprintf(c.W, " face %d %.1f°C", i+1, res.Temperature(i))
	}
	fmt.Fprintln(c.W)
	if !c.Table {
		return nil
	}

	w := tabwriter.NewWriter(c.W, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FACE\tMAX\tMIN\tMEAN\tMEDIAN\tFOREHEAD")
	fmt.Fprintln(w, "----\t---\t---\t----\t------\t--------")
	for i, f := range res.Faces {
		fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n", i+1, f.Max, f.Min, f.Mean, f.Median, f.ForeheadDisplay)
	}
	return w.Flush()
}
