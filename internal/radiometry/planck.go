// Package radiometry turns FLIR radiometric JPEGs into calibrated
// temperature fields.
package radiometry

import (
	"image"
	"math"

	"github.com/andresmejia3/thermosentinel/internal/thermal"
)

// Atmospheric transmission constants of FLIR cameras.
const (
	ata1 = 0.006569
	ata2 = 0.01262
	atb1 = -0.002276
	atb2 = -0.00667
	atx  = 1.9

	zeroCelsius = 273.15
)

// Params are the per-image calibration and scene parameters stored by the
// camera in its FLIR metadata. Temperatures in °C, distance in metres,
// humidity in percent.
type Params struct {
	Emissivity           float64
	ObjectDistance       float64
	ReflectedTemperature float64
	AtmosphericTemp      float64
	WindowTemperature    float64
	WindowTransmission   float64
	RelativeHumidity     float64
	PlanckR1             float64
	PlanckB              float64
	PlanckF              float64
	PlanckO              float64
	PlanckR2             float64
}

// DefaultParams are used for any value missing from the metadata.
func DefaultParams() Params {
	return Params{
		Emissivity:           1,
		ObjectDistance:       1,
		ReflectedTemperature: 20,
		AtmosphericTemp:      20,
		WindowTemperature:    20,
		WindowTransmission:   1,
		RelativeHumidity:     50,
		PlanckR1:             21106.77,
		PlanckB:              1501,
		PlanckF:              1,
		PlanckO:              -7340,
		PlanckR2:             0.012545258,
	}
}

// converter holds the terms of the raw → °C conversion that do not depend
// on the pixel value.
type converter struct {
	p Params
	// divisor applied to a raw value before subtracting offset.
	divisor float64
	offset  float64
}

// radiance is the raw sensor value a blackbody at t °C would produce.
func (p Params) radiance(t float64) float64 {
	return p.PlanckR1/(p.PlanckR2*(math.Exp(p.PlanckB/(t+zeroCelsius))-p.PlanckF)) - p.PlanckO
}

func (p Params) transmission() float64 {
	t := p.AtmosphericTemp
	h2o := p.RelativeHumidity / 100 * math.Exp(1.5587+0.06939*t-0.00027816*t*t+0.00000068455*t*t*t)
	d := -math.Sqrt(p.ObjectDistance / 2)
	return atx*math.Exp(d*(ata1+atb1*math.Sqrt(h2o))) + (1-atx)*math.Exp(d*(ata2+atb2*math.Sqrt(h2o)))
}

func newConverter(p Params) converter {
	e, irt := p.Emissivity, p.WindowTransmission
	// The path is object → air → window → air → sensor, with the same
	// transmission on both air segments and no reflection off the window.
	tau1 := p.transmission()
	tau2 := tau1
	emissWind := 1 - irt

	rawRefl := p.radiance(p.ReflectedTemperature)
	rawAtm := p.radiance(p.AtmosphericTemp)
	rawWind := p.radiance(p.WindowTemperature)

	refl1 := (1 - e) / e * rawRefl
	atm1 := (1 - tau1) / e / tau1 * rawAtm
	wind := emissWind / e / tau1 / irt * rawWind
	atm2 := (1 - tau2) / e / tau1 / irt / tau2 * rawAtm

	return converter{
		p:       p,
		divisor: e * tau1 * irt * tau2,
		offset:  atm1 + atm2 + wind + refl1,
	}
}

func (c converter) celsius(raw float64) float64 {
	obj := raw/c.divisor - c.offset
	return c.p.PlanckB/math.Log(c.p.PlanckR1/(c.p.PlanckR2*(obj+c.p.PlanckO))+c.p.PlanckF) - zeroCelsius
}

// Temperature converts one raw sensor value to °C.
func (p Params) Temperature(raw float64) float64 {
	return newConverter(p).celsius(raw)
}

// Convert maps every pixel of a 16-bit raw thermal image to °C.
func (p Params) Convert(raw *image.Gray16) *thermal.Field {
	c := newConverter(p)
	b := raw.Bounds()
	f := thermal.NewField(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			f.Set(x-b.Min.X, y-b.Min.Y, c.celsius(float64(raw.Gray16At(x, y).Y)))
		}
	}
	return f
}
