package camera

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Files replays a visible image and a thermal file as if they came from a
// camera. Every snapshot copies the file of the active mode, so the
// originals survive the capture cycle's cleanup.
type Files struct {
	Visible string
	Thermal string

	mu sync.Mutex
	ir bool
}

func (f *Files) Login(ctx context.Context) error {
	for _, p := range []string{f.Visible, f.Thermal} {
		if _, err := os.Stat(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *Files) SetVisualMode(ctx context.Context) error { return f.mode(false) }

func (f *Files) SetIRMode(ctx context.Context) error { return f.mode(true) }

func (f *Files) mode(ir bool) error {
	f.mu.Lock()
	f.ir = ir
	f.mu.Unlock()
	return nil
}

func (f *Files) ShowOverlay(ctx context.Context, show bool) error { return nil }

func (f *Files) SetAutoTemperatureRange(ctx context.Context) error { return nil }

func (f *Files) Snapshot(ctx context.Context, path string) error {
	f.mu.Lock()
	src := f.Visible
	if f.ir {
		src = f.Thermal
	}
	f.mu.Unlock()
	if err := copyFile(ctx, src, path); err != nil {
		os.Remove(path)
		return fmt.Errorf("replay %s: %w", src, err)
	}
	return nil
}

func (f *Files) Close() error { return nil }

func copyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
