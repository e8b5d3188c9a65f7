package convert

import (
	"fmt"

	"github.com/banshee-data/cred.convert/internal/config"
	"github.com/banshee-data/cred.convert/internal/correct"
	"github.com/banshee-data/cred.convert/internal/formats/pets"
	"github.com/banshee-data/cred.convert/internal/formats/smv"
	"github.com/banshee-data/cred.convert/internal/formats/xdsinp"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

// OptionsFromConfig builds converter options from cfg. flat is optional;
// its zero-valued pixels are added to the configured dead pixels, and the
// corrector gets a copy of flat with all of them repaired. A
// configured XDS template is read through fsys and checked before any
// frame is touched. FS, Clock, OutDir and Store are left for the caller.
func OptionsFromConfig(cfg *config.ConversionConfig, fsys fsutil.FileSystem, flat *correct.Flatfield) (Options, error) {
	opts := Options{
		SMVSubdir:     cfg.GetSMVSubdir(),
		Workers:       cfg.GetWorkers(),
		BeamThreshold: cfg.GetBeamThreshold(),
		SMV: smv.Options{
			Beamline:           cfg.GetBeamline(),
			ReferencePixelsize: cfg.GetReferencePixelsize(),
			FillMissing:        cfg.GetFillMissing(),
		},
		XDS: xdsinp.Options{
			LowRes:  cfg.GetLowResolution(),
			HighRes: cfg.GetHighResolution(),
		},
		PETS: pets.Options{
			Prefix: cfg.GetPetsPrefix(),
			Suffix: cfg.GetPetsSuffix(),
		},
	}

	if p, ok := cfg.GetFallbackBeamCenter(); ok {
		opts.FallbackBeam = &p
	}

	layout, ok, err := correct.ParseSensorLayout(cfg.GetSensorLayout())
	if err != nil {
		return Options{}, err
	}
	if ok {
		opts.SMV.Layout = &layout
	}

	if path := cfg.GetXDSTemplate(); path != "" {
		tmpl, err := fsys.ReadFile(path)
		if err != nil {
			return Options{}, fmt.Errorf("read xds template: %w", err)
		}
		if err := xdsinp.Check(tmpl); err != nil {
			return Options{}, fmt.Errorf("%s: %w", path, err)
		}
		opts.XDS.Template = tmpl
	}

	dead := append([]correct.DeadPixel(nil), cfg.DeadPixels...)
	if flat != nil {
		dead = append(dead, correct.DetectDeadPixels(flat.Flat)...)
		opts.Corrector.Flatfield = flat.Repaired(dead)
	}
	opts.Corrector.DeadPixels = dead
	return opts, nil
}
