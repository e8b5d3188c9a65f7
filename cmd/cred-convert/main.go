// Command cred-convert reprocesses a stored cRED frame series into the
// MRC, SMV, XDS, PETS, DIALS and REDp inputs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/banshee-data/cred.convert/internal/config"
	"github.com/banshee-data/cred.convert/internal/convert"
	"github.com/banshee-data/cred.convert/internal/fsutil"
	"github.com/banshee-data/cred.convert/internal/jobstore"
	"github.com/banshee-data/cred.convert/internal/monitoring"
	"github.com/banshee-data/cred.convert/internal/security"
	"github.com/banshee-data/cred.convert/internal/timeutil"
	"github.com/banshee-data/cred.convert/internal/version"
)

const program = "cred-convert"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitoring.SetLogger(log.Printf)
	if err := run(ctx, os.Args[1:], os.Stdout, fsutil.OSFileSystem{}); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("%s: %v", program, err)
	}
}

type convertFlags struct {
	configPath   string
	inDir        string
	outDir       string
	flatfield    string
	darkfield    string
	oscAngle     float64
	startAngle   float64
	endAngle     float64
	cameraLength int
	exposure     float64
	outputs      string
	jobDB        string
	showVersion  bool
}

func parseFlags(args []string, output io.Writer) (*convertFlags, error) {
	fs := flag.NewFlagSet(program, flag.ContinueOnError)
	fs.SetOutput(output)
	f := &convertFlags{}
	fs.StringVar(&f.configPath, "config", "", "Conversion config (.json/.yaml); defaults to "+config.DefaultConfigPath+" when present")
	fs.StringVar(&f.inDir, "in", "", "Directory of indexed *.tiff frames")
	fs.StringVar(&f.outDir, "out", ".", "Output directory")
	fs.StringVar(&f.flatfield, "flatfield", "", "Flatfield TIFF")
	fs.StringVar(&f.darkfield, "darkfield", "", "Darkfield TIFF (requires -flatfield)")
	fs.Float64Var(&f.oscAngle, "osc", 0, "Oscillation angle per frame in degrees")
	fs.Float64Var(&f.startAngle, "start", 0, "Start angle in degrees")
	fs.Float64Var(&f.endAngle, "end", 0, "End angle in degrees")
	fs.IntVar(&f.cameraLength, "camera-length", 0, "Camera length used to pick the calibrated pixel size")
	fs.Float64Var(&f.exposure, "exposure", 0, "Exposure time per frame in seconds (0 uses the config default)")
	fs.StringVar(&f.outputs, "outputs", "", "Comma-separated outputs (default: config outputs, or all)")
	fs.StringVar(&f.jobDB, "job-db", "", "SQLite job ledger (overrides job_db)")
	fs.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.showVersion {
		return f, nil
	}
	if f.inDir == "" {
		return nil, fmt.Errorf("-in is required")
	}
	if f.oscAngle == 0 {
		return nil, fmt.Errorf("-osc is required")
	}
	if f.darkfield != "" && f.flatfield == "" {
		return nil, fmt.Errorf("-darkfield requires -flatfield")
	}
	return f, nil
}

func loadConfig(path string) (*config.ConversionConfig, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadConfig(config.DefaultConfigPath)
	}
	return config.EmptyConfig(), nil
}

func splitOutputs(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func run(ctx context.Context, args []string, stdout io.Writer, fsys fsutil.FileSystem) error {
	if len(args) > 0 && args[0] == "jobs" {
		return runJobs(ctx, args[1:], stdout)
	}

	f, err := parseFlags(args, stdout)
	if err != nil {
		return err
	}
	if f.showVersion {
		fmt.Fprintln(stdout, version.String(program))
		return nil
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	names := cfg.GetOutputs()
	if f.outputs != "" {
		names = splitOutputs(f.outputs)
	}
	outputs, err := convert.ParseOutputs(names)
	if err != nil {
		return err
	}

	flat, err := readFlatfield(fsys, f.flatfield, f.darkfield)
	if err != nil {
		return err
	}
	opts, err := convert.OptionsFromConfig(cfg, fsys, flat)
	if err != nil {
		return err
	}
	opts.FS = fsys
	opts.Clock = timeutil.RealClock{}
	opts.OutDir = f.outDir
	if err := security.ValidateOutputLayout(f.outDir, filepath.Join(convert.SMVDir, opts.SMVSubdir)); err != nil {
		return err
	}

	dbPath := cfg.GetJobDB()
	if f.jobDB != "" {
		dbPath = f.jobDB
	}
	if dbPath != "" {
		store, err := jobstore.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Store = store
	}

	frames, err := readFrames(fsys, f.inDir)
	if err != nil {
		return err
	}
	params := cfg.GeometryParams(config.Scan{
		OscAngle:     f.oscAngle,
		StartAngle:   f.startAngle,
		EndAngle:     f.endAngle,
		CameraLength: f.cameraLength,
		ExposureTime: f.exposure,
	})

	c, err := convert.New(frames, params, opts)
	if err != nil {
		return err
	}
	monitoring.Logf("job %s: converting %d frames from %s", c.ID(), len(frames), f.inDir)
	paths, err := c.Run(ctx, outputs)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func runJobs(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(program+" jobs", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "Conversion config providing job_db")
	jobDB := fs.String("job-db", "", "SQLite job ledger")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *jobDB
	if path == "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		path = cfg.GetJobDB()
	}
	if path == "" {
		return fmt.Errorf("no job ledger configured: pass -job-db or set job_db")
	}

	store, err := jobstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return jobstore.NewJobsCLI(store, stdout).Run(ctx, fs.Args())
}
