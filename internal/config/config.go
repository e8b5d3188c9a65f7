package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/cred.convert/internal/correct"
	"github.com/banshee-data/cred.convert/internal/cred"
)

// DefaultConfigPath is the path to the canonical conversion defaults file.
const DefaultConfigPath = "config/convert.defaults.json"

// maxFileSize caps configuration files at 1MB.
const maxFileSize = 1 * 1024 * 1024

// Point is a detector position in pixels, x along columns.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// ConversionConfig holds the instrument constants and pipeline settings of
// a conversion. Fields omitted from a file are nil and the Get* methods
// return the built-in default for them, so partial configs are safe.
type ConversionConfig struct {
	// Instrument
	Wavelength              *float64            `json:"wavelength,omitempty" yaml:"wavelength,omitempty"`                 // Å
	PhysicalPixelsize       *float64            `json:"physical_pixelsize,omitempty" yaml:"physical_pixelsize,omitempty"` // mm
	Pixelsize               *float64            `json:"pixelsize,omitempty" yaml:"pixelsize,omitempty"`                   // Å^-1 per pixel
	PixelsizeByCameraLength map[int]float64     `json:"pixelsize_by_camera_length,omitempty" yaml:"pixelsize_by_camera_length,omitempty"`
	RotationAxis            *float64            `json:"rotation_axis,omitempty" yaml:"rotation_axis,omitempty"` // radians
	StretchAmplitude        *float64            `json:"stretch_amplitude,omitempty" yaml:"stretch_amplitude,omitempty"`
	StretchAzimuth          *float64            `json:"stretch_azimuth,omitempty" yaml:"stretch_azimuth,omitempty"`
	DeadPixels              []correct.DeadPixel `json:"dead_pixels,omitempty" yaml:"dead_pixels,omitempty"`
	DefaultExposure         *float64            `json:"default_exposure,omitempty" yaml:"default_exposure,omitempty"`

	// Writers
	PetsPrefix         *string  `json:"pets_prefix,omitempty" yaml:"pets_prefix,omitempty"`
	PetsSuffix         *string  `json:"pets_suffix,omitempty" yaml:"pets_suffix,omitempty"`
	Beamline           *string  `json:"beamline,omitempty" yaml:"beamline,omitempty"`
	ReferencePixelsize *float64 `json:"reference_pixelsize,omitempty" yaml:"reference_pixelsize,omitempty"`
	LowResolution      *float64 `json:"low_resolution,omitempty" yaml:"low_resolution,omitempty"`
	HighResolution     *float64 `json:"high_resolution,omitempty" yaml:"high_resolution,omitempty"`
	XDSTemplate        *string  `json:"xds_template,omitempty" yaml:"xds_template,omitempty"`
	SMVSubdir          *string  `json:"smv_subdir,omitempty" yaml:"smv_subdir,omitempty"`
	SensorLayout       *string  `json:"sensor_layout,omitempty" yaml:"sensor_layout,omitempty"`
	FillMissing        *bool    `json:"fill_missing,omitempty" yaml:"fill_missing,omitempty"`
	Outputs            []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// Beam center
	BeamThreshold      *float64 `json:"beam_threshold,omitempty" yaml:"beam_threshold,omitempty"`
	FallbackBeamCenter *Point   `json:"fallback_beam_center,omitempty" yaml:"fallback_beam_center,omitempty"`

	// Pipeline
	Workers *int    `json:"workers,omitempty" yaml:"workers,omitempty"`
	JobDB   *string `json:"job_db,omitempty" yaml:"job_db,omitempty"`
}

// EmptyConfig returns a ConversionConfig with all fields unset.
// Use LoadConfig to load actual values from a file.
func EmptyConfig() *ConversionConfig {
	return &ConversionConfig{}
}

// LoadConfig loads a ConversionConfig from a .json, .yaml or .yml file.
// The file must be under 1MB and is validated after parsing.
func LoadConfig(path string) (*ConversionConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repository
// root. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *ConversionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/formats/xdsinp/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func positive(name string, v *float64) error {
	if v != nil && (!(*v > 0) || math.IsInf(*v, 0)) {
		return fmt.Errorf("%s must be positive and finite, got %v", name, *v)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *ConversionConfig) Validate() error {
	for name, v := range map[string]*float64{
		"wavelength":         c.Wavelength,
		"physical_pixelsize": c.PhysicalPixelsize,
		"pixelsize":          c.Pixelsize,
		"beam_threshold":     c.BeamThreshold,
		"low_resolution":     c.LowResolution,
		"high_resolution":    c.HighResolution,
	} {
		if err := positive(name, v); err != nil {
			return err
		}
	}
	for cl, px := range c.PixelsizeByCameraLength {
		if err := positive(fmt.Sprintf("pixelsize_by_camera_length[%d]", cl), &px); err != nil {
			return err
		}
	}
	if c.GetLowResolution() <= c.GetHighResolution() {
		return fmt.Errorf("low_resolution (%v) must be larger than high_resolution (%v)", c.GetLowResolution(), c.GetHighResolution())
	}
	if c.StretchAmplitude != nil && (*c.StretchAmplitude <= -100 || *c.StretchAmplitude >= 100) {
		return fmt.Errorf("stretch_amplitude must be within (-100, 100) percent, got %v", *c.StretchAmplitude)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.SensorLayout != nil {
		if _, _, err := correct.ParseSensorLayout(*c.SensorLayout); err != nil {
			return fmt.Errorf("sensor_layout: %w", err)
		}
	}
	for _, dp := range c.DeadPixels {
		if dp.Row < 0 || dp.Col < 0 {
			return fmt.Errorf("dead pixel (%d, %d) has a negative coordinate", dp.Row, dp.Col)
		}
	}
	for _, o := range c.Outputs {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("outputs must not contain empty names")
		}
	}
	return nil
}

// Scan describes one acquisition: the values that change per dataset.
type Scan struct {
	OscAngle     float64 // degrees per frame
	StartAngle   float64 // degrees
	EndAngle     float64 // degrees
	CameraLength int     // mm, selects the pixelsize calibration; 0 uses pixelsize
	ExposureTime float64 // seconds; 0 uses default_exposure
}

// GeometryParams combines the instrument constants with a scan.
func (c *ConversionConfig) GeometryParams(s Scan) cred.GeometryParams {
	exposure := s.ExposureTime
	if exposure == 0 {
		exposure = c.GetDefaultExposure()
	}
	return cred.GeometryParams{
		Pixelsize:         c.GetPixelsize(s.CameraLength),
		PhysicalPixelsize: c.GetPhysicalPixelsize(),
		Wavelength:        c.GetWavelength(),
		RotationAxis:      c.GetRotationAxis(),
		OscAngle:          s.OscAngle,
		StartAngle:        s.StartAngle,
		EndAngle:          s.EndAngle,
		StretchAmplitude:  c.GetStretchAmplitude(),
		StretchAzimuth:    c.GetStretchAzimuth(),
		ExposureTime:      exposure,
	}
}

func getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func getString(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

// GetWavelength returns the wavelength value or the default (200 kV).
func (c *ConversionConfig) GetWavelength() float64 { return getFloat(c.Wavelength, 0.0251) }

// GetPhysicalPixelsize returns the physical_pixelsize value or the Timepix default.
func (c *ConversionConfig) GetPhysicalPixelsize() float64 {
	return getFloat(c.PhysicalPixelsize, 0.055)
}

// GetPixelsize returns the calibrated pixelsize for cameraLength, falling
// back to pixelsize and then to the default.
func (c *ConversionConfig) GetPixelsize(cameraLength int) float64 {
	if px, ok := c.PixelsizeByCameraLength[cameraLength]; ok {
		return px
	}
	return getFloat(c.Pixelsize, 0.00838)
}

// GetRotationAxis returns the rotation_axis value or the default.
func (c *ConversionConfig) GetRotationAxis() float64 { return getFloat(c.RotationAxis, -2.24) }

// GetStretchAmplitude returns the stretch_amplitude value or the default.
func (c *ConversionConfig) GetStretchAmplitude() float64 { return getFloat(c.StretchAmplitude, 0) }

// GetStretchAzimuth returns the stretch_azimuth value or the default.
func (c *ConversionConfig) GetStretchAzimuth() float64 { return getFloat(c.StretchAzimuth, 0) }

// GetDefaultExposure returns the default_exposure value or the default.
func (c *ConversionConfig) GetDefaultExposure() float64 { return getFloat(c.DefaultExposure, 0.5) }

// GetPetsPrefix returns the pets_prefix value or the default.
func (c *ConversionConfig) GetPetsPrefix() string { return getString(c.PetsPrefix, "") }

// GetPetsSuffix returns the pets_suffix value or the default.
func (c *ConversionConfig) GetPetsSuffix() string { return getString(c.PetsSuffix, "") }

// GetBeamline returns the beamline value or the default.
func (c *ConversionConfig) GetBeamline() string { return getString(c.Beamline, "TIMEPIX_SU") }

// GetReferencePixelsize returns the reference_pixelsize value or the default.
func (c *ConversionConfig) GetReferencePixelsize() float64 {
	return getFloat(c.ReferencePixelsize, 0.055)
}

// GetLowResolution returns the low_resolution value or the default.
func (c *ConversionConfig) GetLowResolution() float64 { return getFloat(c.LowResolution, 20) }

// GetHighResolution returns the high_resolution value or the default.
func (c *ConversionConfig) GetHighResolution() float64 { return getFloat(c.HighResolution, 0.8) }

// GetXDSTemplate returns the xds_template path, empty for the built-in one.
func (c *ConversionConfig) GetXDSTemplate() string { return getString(c.XDSTemplate, "") }

// GetSMVSubdir returns the smv_subdir value or the default.
func (c *ConversionConfig) GetSMVSubdir() string { return getString(c.SMVSubdir, "data") }

// GetSensorLayout returns the sensor_layout value or the default.
func (c *ConversionConfig) GetSensorLayout() string { return getString(c.SensorLayout, "auto") }

// GetFillMissing returns the fill_missing value or the default.
func (c *ConversionConfig) GetFillMissing() bool {
	if c.FillMissing == nil {
		return true
	}
	return *c.FillMissing
}

// GetOutputs returns the configured output names or nil for all outputs.
func (c *ConversionConfig) GetOutputs() []string {
	return append([]string(nil), c.Outputs...)
}

// GetBeamThreshold returns the beam_threshold value or the default.
func (c *ConversionConfig) GetBeamThreshold() float64 { return getFloat(c.BeamThreshold, 10000) }

// GetFallbackBeamCenter returns the configured fallback center, if any.
func (c *ConversionConfig) GetFallbackBeamCenter() (cred.Point, bool) {
	if c.FallbackBeamCenter == nil {
		return cred.Point{}, false
	}
	return cred.Point{X: c.FallbackBeamCenter.X, Y: c.FallbackBeamCenter.Y}, true
}

// GetWorkers returns the workers value or the default.
func (c *ConversionConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetJobDB returns the job_db path, empty when the job ledger is disabled.
func (c *ConversionConfig) GetJobDB() string { return getString(c.JobDB, "") }
