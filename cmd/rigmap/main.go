// Command rigmap drives a constrained multi-rig reconstruction: it scans a
// scene root for rig folders exported from Blender, converts the camera
// poses into the reconstruction convention, builds per-rig rigidity
// constraints and runs the external SfM engine over the union of all rigs'
// images.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/rigmap/internal/config"
	"github.com/banshee-data/rigmap/internal/pipeline"
	"github.com/banshee-data/rigmap/internal/rig"
	"github.com/banshee-data/rigmap/internal/rundb"
	"github.com/banshee-data/rigmap/internal/security"
	"github.com/banshee-data/rigmap/internal/sfm"
	"github.com/banshee-data/rigmap/internal/version"
)

var (
	inputPath   = flag.String("input", "", "Scene root containing one folder per rig (required)")
	outputPath  = flag.String("output", "", "Output directory for reconstruction artifacts (required)")
	colmapBin   = flag.String("colmap-bin", "colmap", "COLMAP executable")
	poseFile    = flag.String("pose-file", "", "Pose file name within each rig folder (default cameras.json)")
	refCamera   = flag.String("ref-camera", "", "Reference camera name (default Camera0)")
	configPath  = flag.String("config", "", "Optional JSON run configuration file")
	seed        = flag.Int("seed", -1, "Engine random seed (negative keeps the configured value)")
	dbPath      = flag.String("db", "", "Optional SQLite run ledger path")
	noPlot      = flag.Bool("no-plot", false, "Skip the rig layout diagnostic plot")
	noReport    = flag.Bool("no-report", false, "Skip the HTML run report")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// Exit codes distinguish validation failures so operators can script on them.
const (
	exitOK             = 0
	exitFailure        = 1
	exitNoRigs         = 2
	exitMalformedPose  = 3
	exitFolderMismatch = 4
	exitEngine         = 5
)

// exitCode maps a run error to its exit status. The most specific kind wins:
// a scene that died of malformed pose files reports that, not the derived
// "no rigs found".
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, rig.ErrMalformedPoseFile), errors.Is(err, rig.ErrDuplicateCameraName):
		return exitMalformedPose
	case errors.Is(err, rig.ErrCameraFolderMismatch):
		return exitFolderMismatch
	case errors.Is(err, rig.ErrNoRigsFound):
		return exitNoRigs
	case errors.Is(err, sfm.ErrEngineFailure):
		return exitEngine
	default:
		return exitFailure
	}
}

func buildConfig() (config.Resolved, error) {
	resolved := config.Default()
	if *configPath != "" {
		fileCfg, err := config.Load(*configPath)
		if err != nil {
			return config.Resolved{}, err
		}
		resolved = fileCfg.Apply(resolved)
	}

	// Flags override the config file.
	if *poseFile != "" {
		resolved.PoseFileName = *poseFile
	}
	if *refCamera != "" {
		resolved.RefCamera = *refCamera
	}
	if *seed >= 0 {
		resolved.RandomSeed = *seed
	}
	if *noPlot {
		resolved.PlotRigLayout = false
	}
	if *noReport {
		resolved.WriteReport = false
	}
	return resolved, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("rigmap", version.String())
		return
	}
	if *inputPath == "" || *outputPath == "" {
		flag.Usage()
		log.Fatal("both -input and -output are required")
	}
	if err := security.ValidateOutputDir(*outputPath, *inputPath); err != nil {
		log.Fatalf("output: %v", err)
	}

	os.Exit(run())
}

// run executes the pipeline and returns the process exit code. Exiting via
// the return value rather than os.Exit keeps deferred cleanup (the run
// ledger in particular) running on failure paths.
func run() int {
	resolved, err := buildConfig()
	if err != nil {
		log.Printf("configuration: %v", err)
		return exitFailure
	}

	rt := pipeline.Runtime{
		InputRoot: *inputPath,
		OutputDir: *outputPath,
		Engine:    sfm.NewColmap(*colmapBin),
		Config:    resolved,
	}

	if *dbPath != "" {
		ledger, err := rundb.Open(*dbPath)
		if err != nil {
			log.Printf("opening run ledger: %v", err)
			return exitFailure
		}
		defer ledger.Close()
		rt.Ledger = ledger
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := pipeline.New(rt).Run(ctx)
	if err != nil {
		log.Printf("run failed: %v", err)
		return exitCode(err)
	}

	log.Printf("reconstruction complete: run=%s rigs=%d skipped=%d images=%d", sum.RunID, len(sum.RigsUsed), len(sum.Skipped), sum.Images)
	for _, s := range sum.Skipped {
		log.Printf("  skipped %s: %s", s.RigID, s.Reason)
	}
	log.Printf("sparse model written to %s", sum.SparseDir)
	return exitOK
}
