package radiometry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"github.com/andresmejia3/thermosentinel/internal/thermal"
	"github.com/andresmejia3/thermosentinel/internal/utils"
	"golang.org/x/image/tiff"
)

// DefaultExifTool is looked up on $PATH.
const DefaultExifTool = "exiftool"

var (
	pngMagic     = []byte("\x89PNG\r\n\x1a\n")
	tiffMagicLE  = []byte("II*\x00")
	tiffMagicBE  = []byte("MM\x00*")
	errNoRawData = errors.New("no RawThermalImage in file")
)

// metaTags are requested from exiftool in numeric (-n) form, so
// temperatures come back in °C and humidity as a fraction.
var metaTags = []string{
	"-Emissivity", "-ObjectDistance", "-ReflectedApparentTemperature",
	"-AtmosphericTemperature", "-IRWindowTemperature", "-IRWindowTransmission",
	"-RelativeHumidity", "-PlanckR1", "-PlanckB", "-PlanckF", "-PlanckO",
	"-PlanckR2", "-RawThermalImageType",
}

type exifMeta struct {
	Emissivity                   *float64
	ObjectDistance               *float64
	ReflectedApparentTemperature *float64
	AtmosphericTemperature       *float64
	IRWindowTemperature          *float64
	IRWindowTransmission         *float64
	RelativeHumidity             *float64
	PlanckR1                     *float64
	PlanckB                      *float64
	PlanckF                      *float64
	PlanckO                      *float64
	PlanckR2                     *float64
	RawThermalImageType          string
}

func (m exifMeta) params() Params {
	p := DefaultParams()
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Emissivity, m.Emissivity)
	set(&p.ObjectDistance, m.ObjectDistance)
	set(&p.ReflectedTemperature, m.ReflectedApparentTemperature)
	set(&p.AtmosphericTemp, m.AtmosphericTemperature)
	set(&p.WindowTemperature, m.IRWindowTemperature)
	set(&p.WindowTransmission, m.IRWindowTransmission)
	set(&p.PlanckR1, m.PlanckR1)
	set(&p.PlanckB, m.PlanckB)
	set(&p.PlanckF, m.PlanckF)
	set(&p.PlanckO, m.PlanckO)
	set(&p.PlanckR2, m.PlanckR2)
	if m.RelativeHumidity != nil {
		rh := *m.RelativeHumidity
		if rh <= 1 {
			rh *= 100
		}
		p.RelativeHumidity = rh
	}
	if p.Emissivity <= 0 {
		p.Emissivity = 1
	}
	if p.WindowTransmission <= 0 {
		p.WindowTransmission = 1
	}
	return p
}

// Decoder reads thermal snapshots. Files holding a NumPy array are loaded
// as-is; anything else is treated as a FLIR radiometric JPEG and decoded
// through exiftool.
type Decoder struct {
	ExifTool string
}

// NewDecoder returns a decoder using the given exiftool binary, or
// DefaultExifTool when empty.
func NewDecoder(exiftool string) *Decoder {
	if exiftool == "" {
		exiftool = DefaultExifTool
	}
	return &Decoder{ExifTool: exiftool}
}

// Decode returns the calibrated temperature field stored in path.
func (d *Decoder) Decode(ctx context.Context, path string) (*thermal.Field, error) {
	head, err := utils.ReadHead(path, 8)
	if err != nil {
		return nil, err
	}
	if thermal.IsNPY(head) {
		return thermal.LoadNPY(path)
	}

	params, kind, err := d.metadata(ctx, path)
	if err != nil {
		return nil, err
	}
	raw, err := d.rawImage(ctx, path)
	if err != nil {
		return nil, err
	}
	img, err := decodeRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: raw %s image: %w", path, kind, err)
	}
	slog.Debug("decoded radiometric image", "path", path, "type", kind,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy(), "emissivity", params.Emissivity)
	return params.Convert(img), nil
}

func (d *Decoder) metadata(ctx context.Context, path string) (Params, string, error) {
	args := append([]string{"-j", "-n"}, metaTags...)
	cmd := utils.NewSafeCommand(ctx, d.ExifTool, append(args, path)...)
	out, err := cmd.Output()
	if err != nil {
		return Params{}, "", err
	}
	var metas []exifMeta
	if err := json.Unmarshal(out, &metas); err != nil {
		return Params{}, "", fmt.Errorf("exiftool json: %w", err)
	}
	if len(metas) == 0 {
		return Params{}, "", fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	return metas[0].params(), metas[0].RawThermalImageType, nil
}

func (d *Decoder) rawImage(ctx context.Context, path string) ([]byte, error) {
	cmd := utils.NewSafeCommand(ctx, d.ExifTool, "-RawThermalImage", "-b", path)
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errNoRawData)
	}
	return out, nil
}

// decodeRaw decodes the embedded 16-bit sensor image. FLIR writes the PNG
// variant little-endian although PNG is big-endian, so its samples are
// byte-swapped back.
func decodeRaw(data []byte) (*image.Gray16, error) {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		g, err := asGray16(img)
		if err != nil {
			return nil, err
		}
		swapBytes(g)
		return g, nil
	case bytes.HasPrefix(data, tiffMagicLE), bytes.HasPrefix(data, tiffMagicBE):
		img, err := tiff.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return asGray16(img)
	default:
		return nil, errors.New("unknown raw image format")
	}
}

func asGray16(img image.Image) (*image.Gray16, error) {
	g, ok := img.(*image.Gray16)
	if !ok {
		return nil, fmt.Errorf("want 16-bit grayscale, got %T", img)
	}
	return g, nil
}

func swapBytes(g *image.Gray16) {
	for i := 0; i+1 < len(g.Pix); i += 2 {
		g.Pix[i], g.Pix[i+1] = g.Pix[i+1], g.Pix[i]
	}
}
