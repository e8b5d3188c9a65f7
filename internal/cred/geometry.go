package cred

import (
	"fmt"
	"math"
)

// GeometryParams are the instrument and scan constants supplied by the
// acquisition layer.
type GeometryParams struct {
	Pixelsize         float64 // reciprocal-space pixel size, Å^-1 per pixel
	PhysicalPixelsize float64 // mm
	Wavelength        float64 // Å
	RotationAxis      float64 // radians
	OscAngle          float64 // degrees per frame
	StartAngle        float64 // degrees
	EndAngle          float64 // degrees
	StretchAmplitude  float64 // percent
	StretchAzimuth    float64 // degrees
	ExposureTime      float64 // seconds per frame
}

// Geometry is the immutable, validated scan geometry of one conversion job.
type Geometry struct {
	p        GeometryParams
	distance float64
}

// DistortionParams describe the elliptical detector distortion.
type DistortionParams struct {
	Azimuth float64 // radians
	Stretch float64 // fraction, 0.013 for 1.3 %
}

// NewGeometry validates params and derives the camera length
// distance = (1/wavelength) * (physical_pixelsize/pixelsize).
func NewGeometry(p GeometryParams) (Geometry, error) {
	if p.Wavelength == 0 || !isFinite(p.Wavelength) {
		return Geometry{}, fmt.Errorf("wavelength %v: %w", p.Wavelength, ErrUndefinedDistance)
	}
	if p.Pixelsize == 0 || !isFinite(p.Pixelsize) {
		return Geometry{}, fmt.Errorf("pixelsize %v: %w", p.Pixelsize, ErrUndefinedDistance)
	}
	d := (1 / p.Wavelength) * (p.PhysicalPixelsize / p.Pixelsize)
	if !isFinite(d) {
		return Geometry{}, fmt.Errorf("distance %v: %w", d, ErrUndefinedDistance)
	}
	for name, v := range map[string]float64{
		"rotation_axis": p.RotationAxis, "osc_angle": p.OscAngle,
		"start_angle": p.StartAngle, "end_angle": p.EndAngle,
		"stretch_amplitude": p.StretchAmplitude, "stretch_azimuth": p.StretchAzimuth,
	} {
		if !isFinite(v) {
			return Geometry{}, fmt.Errorf("%s is not finite: %v", name, v)
		}
	}
	return Geometry{p: p, distance: d}, nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Params returns a copy of the validated parameters.
func (g Geometry) Params() GeometryParams { return g.p }

func (g Geometry) Pixelsize() float64         { return g.p.Pixelsize }
func (g Geometry) PhysicalPixelsize() float64 { return g.p.PhysicalPixelsize }
func (g Geometry) Wavelength() float64        { return g.p.Wavelength }
func (g Geometry) RotationAxis() float64      { return g.p.RotationAxis }
func (g Geometry) OscAngle() float64          { return g.p.OscAngle }
func (g Geometry) StartAngle() float64        { return g.p.StartAngle }
func (g Geometry) EndAngle() float64          { return g.p.EndAngle }
func (g Geometry) ExposureTime() float64      { return g.p.ExposureTime }
func (g Geometry) StretchAmplitude() float64  { return g.p.StretchAmplitude }
func (g Geometry) StretchAzimuth() float64    { return g.p.StretchAzimuth }

// Distance is the derived camera length in mm.
func (g Geometry) Distance() float64 { return g.distance }

// RotationSign is -1 when the goniometer rotates towards lower angles.
func (g Geometry) RotationSign() float64 {
	if g.p.StartAngle > g.p.EndAngle {
		return -1
	}
	return 1
}

// OscillationRange is the unsigned rotation per frame in degrees.
func (g Geometry) OscillationRange() float64 { return math.Abs(g.p.OscAngle) }

// RotationAxisDegrees is the rotation axis in degrees wrapped to [-180, 180).
func (g Geometry) RotationAxisDegrees() float64 {
	deg := g.p.RotationAxis * 180 / math.Pi
	return math.Mod(math.Mod(deg+180, 360)+360, 360) - 180
}

// FrameAngle is the goniometer angle at the start of the frame acquired
// offset frames after the first one.
func (g Geometry) FrameAngle(offset int) float64 {
	return g.p.StartAngle + g.RotationSign()*g.OscillationRange()*float64(offset)
}

// DistortionParams converts the configured stretch to radians and a fraction.
func (g Geometry) DistortionParams() DistortionParams {
	return DistortionParams{
		Azimuth: g.p.StretchAzimuth * math.Pi / 180,
		Stretch: g.p.StretchAmplitude / 100,
	}
}
