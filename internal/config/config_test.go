package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/cred.convert/internal/correct"
	"github.com/banshee-data/cred.convert/internal/cred"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "convert.json", `{
  "wavelength": 0.0197,
  "pixelsize_by_camera_length": {"250": 0.00512},
  "dead_pixels": [{"row": 3, "col": 4}],
  "fallback_beam_center": {"x": 255.5, "y": 256.5},
  "workers": 2,
  "outputs": ["smv", "xds"]
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetWavelength() != 0.0197 {
		t.Errorf("GetWavelength() = %v, want 0.0197", cfg.GetWavelength())
	}
	if cfg.GetPixelsize(250) != 0.00512 {
		t.Errorf("GetPixelsize(250) = %v, want 0.00512", cfg.GetPixelsize(250))
	}
	if cfg.GetPixelsize(300) != 0.00838 {
		t.Errorf("GetPixelsize(300) = %v, want default 0.00838", cfg.GetPixelsize(300))
	}
	if len(cfg.DeadPixels) != 1 || cfg.DeadPixels[0] != (correct.DeadPixel{Row: 3, Col: 4}) {
		t.Errorf("DeadPixels = %v", cfg.DeadPixels)
	}
	if p, ok := cfg.GetFallbackBeamCenter(); !ok || p != (cred.Point{X: 255.5, Y: 256.5}) {
		t.Errorf("GetFallbackBeamCenter() = %v, %v", p, ok)
	}
	if cfg.GetWorkers() != 2 {
		t.Errorf("GetWorkers() = %d, want 2", cfg.GetWorkers())
	}
	if got := strings.Join(cfg.GetOutputs(), ","); got != "smv,xds" {
		t.Errorf("GetOutputs() = %q", got)
	}
	// untouched fields fall back to defaults
	if cfg.GetBeamline() != "TIMEPIX_SU" {
		t.Errorf("GetBeamline() = %q, want TIMEPIX_SU", cfg.GetBeamline())
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "convert.yaml", `
wavelength: 0.0251
stretch_amplitude: 2.43
stretch_azimuth: 83.37
pixelsize_by_camera_length:
  150: 0.00838
sensor_layout: gapped
pets_prefix: |
  detector asi
  # camera {camera}
fill_missing: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetStretchAmplitude() != 2.43 || cfg.GetStretchAzimuth() != 83.37 {
		t.Errorf("stretch = %v/%v", cfg.GetStretchAmplitude(), cfg.GetStretchAzimuth())
	}
	if cfg.GetPixelsize(150) != 0.00838 {
		t.Errorf("GetPixelsize(150) = %v", cfg.GetPixelsize(150))
	}
	if cfg.GetSensorLayout() != "gapped" {
		t.Errorf("GetSensorLayout() = %q", cfg.GetSensorLayout())
	}
	if cfg.GetPetsPrefix() != "detector asi\n# camera {camera}\n" {
		t.Errorf("GetPetsPrefix() = %q", cfg.GetPetsPrefix())
	}
	if cfg.GetFillMissing() {
		t.Error("GetFillMissing() = true, want false")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "convert.toml", "wavelength = 1"},
		{"bad json", "convert.json", "{"},
		{"bad yaml", "convert.yml", "wavelength: [1"},
		{"invalid value", "convert.json", `{"wavelength": 0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.file, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigRejectsLargeFile(t *testing.T) {
	body := `{"beamline": "` + strings.Repeat("x", maxFileSize) + `"}`
	_, err := LoadConfig(writeConfig(t, "large.json", body))
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ConversionConfig
		wantErr bool
	}{
		{"empty", ConversionConfig{}, false},
		{"zero wavelength", ConversionConfig{Wavelength: ptrFloat64(0)}, true},
		{"nan pixelsize", ConversionConfig{Pixelsize: ptrFloat64(math.NaN())}, true},
		{"negative camera pixelsize", ConversionConfig{PixelsizeByCameraLength: map[int]float64{150: -1}}, true},
		{"inverted resolution", ConversionConfig{LowResolution: ptrFloat64(0.5), HighResolution: ptrFloat64(1)}, true},
		{"stretch out of range", ConversionConfig{StretchAmplitude: ptrFloat64(100)}, true},
		{"zero workers", ConversionConfig{Workers: ptrInt(0)}, true},
		{"unknown layout", ConversionConfig{SensorLayout: ptrString("hexagonal")}, true},
		{"auto layout", ConversionConfig{SensorLayout: ptrString("auto")}, false},
		{"negative dead pixel", ConversionConfig{DeadPixels: []correct.DeadPixel{{Row: -1}}}, true},
		{"blank output", ConversionConfig{Outputs: []string{"smv", " "}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	err := (&ConversionConfig{SensorLayout: ptrString("hexagonal")}).Validate()
	if !errors.Is(err, correct.ErrUnsupportedLayout) {
		t.Errorf("expected ErrUnsupportedLayout, got %v", err)
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := EmptyConfig()

	if cfg.GetWavelength() != 0.0251 {
		t.Errorf("GetWavelength() = %v", cfg.GetWavelength())
	}
	if cfg.GetPhysicalPixelsize() != 0.055 {
		t.Errorf("GetPhysicalPixelsize() = %v", cfg.GetPhysicalPixelsize())
	}
	if cfg.GetBeamThreshold() != 10000 {
		t.Errorf("GetBeamThreshold() = %v", cfg.GetBeamThreshold())
	}
	if cfg.GetLowResolution() != 20 || cfg.GetHighResolution() != 0.8 {
		t.Errorf("resolution = %v..%v", cfg.GetLowResolution(), cfg.GetHighResolution())
	}
	if cfg.GetSMVSubdir() != "data" {
		t.Errorf("GetSMVSubdir() = %q", cfg.GetSMVSubdir())
	}
	if cfg.GetSensorLayout() != "auto" {
		t.Errorf("GetSensorLayout() = %q", cfg.GetSensorLayout())
	}
	if !cfg.GetFillMissing() {
		t.Error("GetFillMissing() = false, want true")
	}
	if cfg.GetWorkers() != 4 {
		t.Errorf("GetWorkers() = %d", cfg.GetWorkers())
	}
	if cfg.GetOutputs() != nil {
		t.Errorf("GetOutputs() = %v, want nil", cfg.GetOutputs())
	}
	if cfg.GetJobDB() != "" || cfg.GetXDSTemplate() != "" {
		t.Error("job_db and xds_template should default to empty")
	}
	if _, ok := cfg.GetFallbackBeamCenter(); ok {
		t.Error("fallback beam center should be unset")
	}
}

func TestGeometryParams(t *testing.T) {
	cfg := &ConversionConfig{
		PixelsizeByCameraLength: map[int]float64{250: 0.00512},
		StretchAmplitude:        ptrFloat64(2.43),
	}
	p := cfg.GeometryParams(Scan{OscAngle: 0.45, StartAngle: -30, EndAngle: 30, CameraLength: 250})

	if p.Pixelsize != 0.00512 || p.Wavelength != 0.0251 || p.PhysicalPixelsize != 0.055 {
		t.Errorf("instrument constants = %+v", p)
	}
	if p.OscAngle != 0.45 || p.StartAngle != -30 || p.EndAngle != 30 {
		t.Errorf("scan values = %+v", p)
	}
	if p.ExposureTime != 0.5 || p.StretchAmplitude != 2.43 || p.RotationAxis != -2.24 {
		t.Errorf("defaults = %+v", p)
	}
	if _, err := cred.NewGeometry(p); err != nil {
		t.Errorf("NewGeometry: %v", err)
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.Wavelength == nil || *cfg.Wavelength != 0.0251 {
		t.Errorf("defaults wavelength = %v", cfg.Wavelength)
	}
	if len(cfg.GetOutputs()) != 9 {
		t.Errorf("defaults outputs = %v", cfg.GetOutputs())
	}
	if cfg.GetPixelsize(150) != 0.00838 {
		t.Errorf("defaults pixelsize(150) = %v", cfg.GetPixelsize(150))
	}
}
