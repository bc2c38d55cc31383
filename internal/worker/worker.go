package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/andresmejia3/thermosentinel/internal/types"
	"github.com/andresmejia3/thermosentinel/internal/utils" // Using the SafeCommand wrapper
)

// DefaultScript is the detector run by NewPythonWorker.
const DefaultScript = "python/detector.py"

// Response status bytes.
const (
	statusOK    = 0
	statusError = 1
)

// PythonWorker runs a face detector in a Python process. Frames go in on
// stdin and results come back on a dedicated pipe (FD 3), both framed as
// [uint32 big-endian length][payload].
type PythonWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	mu     sync.Mutex
	buf    bytes.Buffer
	frames int // Index of the last FrameTask sent
}

// NewPythonWorker starts script with the detector options on its command
// line. The process is killed when ctx is done.
func NewPythonWorker(ctx context.Context, id int, script string, opts types.DetectOptions) (*PythonWorker, error) {
	if script == "" {
		script = DefaultScript
	}
	// 1. Initialize the SafeCommand
	py := utils.NewSafeCommand(ctx, "python3", "-u", script,
		"--scale-factor", strconv.FormatFloat(opts.ScaleFactor, 'f', -1, 64),
		"--min-neighbors", strconv.Itoa(opts.MinNeighbors),
		"--min-size", strconv.Itoa(opts.MinSize),
	)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &PythonWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// Communicate sends one request and waits for its response.
func (w *PythonWorker) Communicate(data []byte) ([]byte, error) {
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // This is where we catch the "ModuleNotFoundError" crash
	}

	respLen := binary.BigEndian.Uint32(header)
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame sends an encoded image and decodes the detected boxes.
// Payload: [status byte] then a JSON list of FaceResult on success or an
// ErrorResult on failure. Errors name the task's frame index.
func (w *PythonWorker) ProcessFrame(task types.FrameTask) ([]types.Rect, error) {
	resp, err := w.Communicate(task.Data)
	if err != nil {
		return nil, fmt.Errorf("python worker %d: frame %d: %w", w.ID, task.Index, err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("python worker %d: frame %d: empty response", w.ID, task.Index)
	}

	switch resp[0] {
	case statusOK:
		var results []types.FaceResult
		if err := json.Unmarshal(resp[1:], &results); err != nil {
			return nil, fmt.Errorf("python worker %d: frame %d: bad result: %w", w.ID, task.Index, err)
		}
		faces := make([]types.Rect, 0, len(results))
		for _, r := range results {
			rect, ok := r.Rect()
			if !ok {
				return nil, fmt.Errorf("python worker %d: frame %d: malformed box %v", w.ID, task.Index, r.Box)
			}
			faces = append(faces, rect)
		}
		return faces, nil
	case statusError:
		var e types.ErrorResult
		if err := json.Unmarshal(resp[1:], &e); err != nil {
			return nil, fmt.Errorf("python worker %d: frame %d: bad error payload: %w", w.ID, task.Index, err)
		}
		return nil, fmt.Errorf("python worker error on frame %d: %s", task.Index, e.Error)
	default:
		return nil, fmt.Errorf("python worker %d: frame %d: unknown status %d", w.ID, task.Index, resp[0])
	}
}

// Detect JPEG-encodes img and runs it through the worker as the next
// numbered FrameTask, starting at 1. Calls are serialized; the protocol has
// one request in flight at a time.
func (w *PythonWorker) Detect(ctx context.Context, img image.Image) ([]types.Rect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Reset()
	if err := jpeg.Encode(&w.buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	w.frames++
	faces, err := w.ProcessFrame(types.FrameTask{Index: w.frames, Data: w.buf.Bytes()})
	if err != nil {
		return nil, err
	}
	origin := img.Bounds().Min
	for i := range faces {
		faces[i].X += origin.X
		faces[i].Y += origin.Y
	}
	return faces, nil
}

func (w *PythonWorker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd == nil {
		return nil
	}
	return w.Cmd.Wait()
}
