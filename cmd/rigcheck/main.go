// Command rigcheck validates a scene without running reconstruction: it
// scans the rig folders, builds constraint sets and prints each rig's
// geometry. Useful as a pre-flight check before committing hours to mapping.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/rigmap/internal/fsutil"
	"github.com/banshee-data/rigmap/internal/rig"
)

var (
	inputPath = flag.String("input", "", "Scene root containing one folder per rig (required)")
	poseFile  = flag.String("pose-file", rig.DefaultPoseFileName, "Pose file name within each rig folder")
	refCamera = flag.String("ref-camera", rig.DefaultRefCamera, "Reference camera name")
)

func main() {
	flag.Parse()
	if *inputPath == "" {
		flag.Usage()
		log.Fatal("-input is required")
	}

	scene, err := rig.ScanScene(fsutil.OSFileSystem{}, *inputPath, rig.ScanOptions{PoseFileName: *poseFile})
	if err != nil {
		log.Printf("scan failed: %v", err)
		os.Exit(1)
	}

	failed := false
	for _, r := range scene.Rigs {
		set, err := rig.BuildConstraintSet(r, *refCamera)
		if err != nil {
			log.Printf("rig %s: %v", r.ID, err)
			failed = true
			continue
		}
		fmt.Printf("rig %s: %d cameras, %d images, ref=%s\n", r.ID, len(r.Cameras), r.TotalImages(), set.RefCamera)
		for _, cam := range r.Cameras {
			rel := set.CamFromRef[cam.Name]
			if cam.Name == set.RefCamera {
				fmt.Printf("  %-12s reference\n", cam.Name)
				continue
			}
			fmt.Printf("  %-12s baseline=%.3fm rotation=%.1f°\n", cam.Name, rel.BaselineMeters(), rel.RotationDegrees())
		}
	}
	for _, s := range scene.Skipped {
		fmt.Printf("rig %s: SKIPPED (%s)\n", s.RigID, s.Reason)
	}

	if failed {
		os.Exit(1)
	}
}
