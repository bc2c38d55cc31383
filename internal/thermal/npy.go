package thermal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/sbinet/npyio"
)

// LoadNPY reads a 2-D float32 or float64 NumPy array of temperatures.
func LoadNPY(path string) (*Field, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadNPY(f)
}

// ReadNPY decodes a 2-D temperature array from r.
func ReadNPY(r io.Reader) (*Field, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("npy header: %w", err)
	}
	shape := nr.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("npy: want 2-D array, got shape %v", shape)
	}
	h, w := shape[0], shape[1]

	var vals []float64
	switch nr.Header.Descr.Type {
	case "<f8", "f8", "float64":
		if err := nr.Read(&vals); err != nil {
			return nil, fmt.Errorf("npy data: %w", err)
		}
	case "<f4", "f4", "float32":
		var f32 []float32
		if err := nr.Read(&f32); err != nil {
			return nil, fmt.Errorf("npy data: %w", err)
		}
		vals = make([]float64, len(f32))
		for i, v := range f32 {
			vals[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("npy: unsupported dtype %q", nr.Header.Descr.Type)
	}
	if len(vals) != w*h {
		return nil, fmt.Errorf("npy: %d values for shape %v", len(vals), shape)
	}

	field := NewField(w, h)
	if nr.Header.Descr.Fortran {
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				field.Pix[y*w+x] = vals[x*h+y]
			}
		}
		return field, nil
	}
	copy(field.Pix, vals)
	return field, nil
}

// WriteNPY encodes f as a C-ordered little-endian float64 .npy array
// (format version 1.0) of shape (height, width).
func WriteNPY(w io.Writer, f *Field) error {
	dict := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", f.Height(), f.Width())
	// magic(6) + version(2) + header length(2) + dict + newline, padded to 64.
	pad := (64 - (10+len(dict)+1)%64) % 64
	header := dict + string(bytes.Repeat([]byte{' '}, pad)) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, f.Values())
}

// IsNPY reports whether head starts with the NumPy array magic.
func IsNPY(head []byte) bool {
	return bytes.HasPrefix(head, []byte("\x93NUMPY"))
}
