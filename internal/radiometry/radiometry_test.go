package radiometry

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/andresmejia3/thermosentinel/internal/thermal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

// lossless has no atmosphere, window or reflection terms, so raw values
// map straight through the Planck curve.
func lossless() Params {
	p := DefaultParams()
	p.ObjectDistance = 0
	return p
}

func TestTemperatureInvertsRadiance(t *testing.T) {
	p := lossless()
	for _, want := range []float64{-10, 0, 20, 36.5, 42, 120} {
		t.Run(fmt.Sprint(want), func(t *testing.T) {
			assert.InDelta(t, want, p.Temperature(p.radiance(want)), 1e-6)
		})
	}
}

func TestTemperatureMonotonic(t *testing.T) {
	p := DefaultParams()
	p.Emissivity = 0.95
	p.ObjectDistance = 1.5
	prev := math.Inf(-1)
	for raw := 15000.0; raw <= 25000; raw += 250 {
		got := p.Temperature(raw)
		assert.Greater(t, got, prev, "raw %v", raw)
		prev = got
	}
}

func TestEmissivityRaisesReading(t *testing.T) {
	// A less emissive surface must be warmer to produce the same signal.
	black := lossless()
	grey := lossless()
	grey.Emissivity = 0.9
	raw := black.radiance(36.5)
	assert.Greater(t, grey.Temperature(raw), black.Temperature(raw))
}

func TestMetadataDefaults(t *testing.T) {
	rh := 0.42
	e := 0.0
	p := exifMeta{RelativeHumidity: &rh, Emissivity: &e}.params()
	assert.InDelta(t, 42, p.RelativeHumidity, 1e-9)
	assert.Equal(t, 1.0, p.Emissivity)
	assert.Equal(t, DefaultParams().PlanckR1, p.PlanckR1)
}

func gray16(vals ...uint16) *image.Gray16 {
	g := image.NewGray16(image.Rect(0, 0, len(vals), 1))
	for i, v := range vals {
		g.Pix[2*i] = byte(v >> 8)
		g.Pix[2*i+1] = byte(v)
	}
	return g
}

func TestDecodeRawPNGSwapsBytes(t *testing.T) {
	// FLIR stores little-endian samples in the PNG container.
	stored := gray16(0x3412, 0xcdab)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, stored))

	img, err := decodeRaw(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(0xabcd), img.Gray16At(1, 0).Y)
}

func TestDecodeRawTIFF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, gray16(0x1234, 0xabcd), nil))

	img, err := decodeRaw(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(0xabcd), img.Gray16At(1, 0).Y)
}

func TestDecodeRawUnknown(t *testing.T) {
	_, err := decodeRaw([]byte("GIF89a"))
	assert.Error(t, err)
}

// fakeExifTool writes a shell script that answers the two exiftool calls
// made by Decoder.
func fakeExifTool(t *testing.T, meta string, raw []byte) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "raw.bin")
	require.NoError(t, os.WriteFile(rawPath, raw, 0o644))
	metaPath := filepath.Join(dir, "meta.json")
	require.NoError(t, os.WriteFile(metaPath, []byte(meta), 0o644))

	script := fmt.Sprintf(`#!/bin/sh
case "$1" in
  -j) cat %q ;;
  -RawThermalImage) cat %q ;;
  *) echo "unexpected $1" >&2; exit 2 ;;
esac
`, metaPath, rawPath)
	tool := filepath.Join(dir, "exiftool")
	require.NoError(t, os.WriteFile(tool, []byte(script), 0o755))
	return tool
}

func TestDecodeRadiometricJPEG(t *testing.T) {
	p := lossless()
	warm := uint16(math.Round(p.radiance(36.5)))
	cool := uint16(math.Round(p.radiance(20)))

	var raw bytes.Buffer
	require.NoError(t, tiff.Encode(&raw, gray16(cool, warm, warm), nil))
	tool := fakeExifTool(t,
		`[{"SourceFile":"x.jpg","Emissivity":1,"ObjectDistance":0,"RelativeHumidity":0.5,"RawThermalImageType":"TIFF"}]`,
		raw.Bytes())

	img := filepath.Join(t.TempDir(), "thermal.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xff, 0xd8, 0xff, 0xe1}, 0o644))

	f, err := NewDecoder(tool).Decode(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Width())
	assert.Equal(t, 1, f.Height())
	assert.InDelta(t, 20, f.At(0, 0), 0.01)
	assert.InDelta(t, 36.5, f.At(1, 0), 0.01)
}

func TestDecodeToolFailure(t *testing.T) {
	tool := fakeExifTool(t, `not json`, nil)
	img := filepath.Join(t.TempDir(), "thermal.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xff, 0xd8}, 0o644))

	_, err := NewDecoder(tool).Decode(context.Background(), img)
	assert.ErrorContains(t, err, "exiftool json")
}

func TestDecodeNPYPassthrough(t *testing.T) {
	src := thermal.NewField(4, 2)
	src.Fill(36.5)
	path := filepath.Join(t.TempDir(), "thermal.jpg")
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, thermal.WriteNPY(out, src))
	require.NoError(t, out.Close())

	// exiftool is never invoked for NumPy files.
	f, err := NewDecoder("/nonexistent/exiftool").Decode(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, src.Values(), f.Values())
}

func TestDecodeMissingFile(t *testing.T) {
	_, err := NewDecoder("").Decode(context.Background(), filepath.Join(t.TempDir(), "none.jpg"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
