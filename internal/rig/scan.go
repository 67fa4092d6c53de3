package rig

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/banshee-data/rigmap/internal/fsutil"
	"github.com/banshee-data/rigmap/internal/monitoring"
)

// ScanOptions controls scene discovery.
type ScanOptions struct {
	// PoseFileName is the fixed pose file name expected in each rig folder.
	// Empty means DefaultPoseFileName.
	PoseFileName string
}

func (o ScanOptions) poseFileName() string {
	if o.PoseFileName == "" {
		return DefaultPoseFileName
	}
	return o.PoseFileName
}

// imageExtensions are the image file suffixes counted when deciding whether
// a camera folder actually holds images. Matched case-insensitively.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// ScanScene discovers rig folders under root and assembles the SceneSet for
// one run. Every immediate subdirectory of root is a candidate rig. A rig
// without a pose file is skipped with a recorded warning; a rig whose camera
// names and image folders disagree in either direction is skipped as
// ErrCameraFolderMismatch. Rigs are scanned concurrently (each rig's data is
// independent) and combined in sorted rig-id order once all complete.
//
// Zero surviving rigs is fatal: the returned error wraps ErrNoRigsFound and,
// when rig folders were present, every per-rig failure, so callers matching
// on a specific cause do not depend on which rig sorts first.
func ScanScene(fsys fsutil.FileSystem, root string, opts ScanOptions) (*SceneSet, error) {
	entries, err := fsys.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading scene root %s: %w", root, err)
	}

	var rigIDs []string
	for _, e := range entries {
		if e.IsDir() {
			rigIDs = append(rigIDs, e.Name())
		}
	}
	sort.Strings(rigIDs)

	type result struct {
		rig  Rig
		skip *SkippedRig
	}
	results := make([]result, len(rigIDs))

	var wg sync.WaitGroup
	for i, id := range rigIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			r, err := scanRig(fsys, root, id, opts)
			if err != nil {
				results[i] = result{skip: &SkippedRig{RigID: id, Reason: err.Error(), Err: err}}
				return
			}
			results[i] = result{rig: r}
		}(i, id)
	}
	wg.Wait()

	scene := &SceneSet{Root: root}
	for _, res := range results {
		if res.skip != nil {
			monitoring.Logf("skipping rig %s: %v", res.skip.RigID, res.skip.Err)
			scene.Skipped = append(scene.Skipped, *res.skip)
			continue
		}
		scene.Rigs = append(scene.Rigs, res.rig)
	}

	if len(scene.Rigs) == 0 {
		if len(scene.Skipped) > 0 {
			causes := make([]error, 0, len(scene.Skipped)+1)
			causes = append(causes, ErrNoRigsFound)
			for _, s := range scene.Skipped {
				causes = append(causes, s.Err)
			}
			return nil, fmt.Errorf("scene root %s: %w", root, errors.Join(causes...))
		}
		return nil, fmt.Errorf("scene root %s: %w", root, ErrNoRigsFound)
	}
	return scene, nil
}

// scanRig validates one rig folder: pose file present and parseable, and an
// exact two-way match between declared cameras and image folders.
func scanRig(fsys fsutil.FileSystem, root, id string, opts ScanOptions) (Rig, error) {
	dir := filepath.Join(root, id)

	posePath := filepath.Join(dir, opts.poseFileName())
	if !fsys.Exists(posePath) {
		return Rig{}, fmt.Errorf("%w: %s", ErrMissingPoseFile, posePath)
	}

	cameras, err := ParsePoseFile(fsys, posePath)
	if err != nil {
		return Rig{}, err
	}
	if len(cameras) == 0 {
		return Rig{}, fmt.Errorf("%s: %w", posePath, ErrEmptyRig)
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return Rig{}, fmt.Errorf("reading rig folder %s: %w", dir, err)
	}

	folders := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			folders[e.Name()] = true
		}
	}

	r := Rig{
		ID:         id,
		Dir:        dir,
		Cameras:    cameras,
		ImageDirs:  make(map[string]string, len(cameras)),
		ImageFiles: make(map[string][]string, len(cameras)),
	}

	// Cameras declared without a folder, or with a folder holding no images.
	for _, cam := range cameras {
		if !folders[cam.Name] {
			return Rig{}, fmt.Errorf("rig %s: camera %q has no image folder: %w", id, cam.Name, ErrCameraFolderMismatch)
		}
		camDir := filepath.Join(dir, cam.Name)
		images, err := listImages(fsys, camDir)
		if err != nil {
			return Rig{}, err
		}
		if len(images) == 0 {
			return Rig{}, fmt.Errorf("rig %s: camera %q folder has no images: %w", id, cam.Name, ErrCameraFolderMismatch)
		}
		r.ImageDirs[cam.Name] = camDir
		r.ImageFiles[cam.Name] = images
		delete(folders, cam.Name)
	}

	// Folders left over that declare no camera.
	if len(folders) > 0 {
		var extra []string
		for name := range folders {
			extra = append(extra, name)
		}
		sort.Strings(extra)
		return Rig{}, fmt.Errorf("rig %s: image folder %q has no camera in pose file: %w", id, extra[0], ErrCameraFolderMismatch)
	}

	return r, nil
}

func listImages(fsys fsutil.FileSystem, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading camera folder %s: %w", dir, err)
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			images = append(images, e.Name())
		}
	}
	sort.Strings(images)
	return images, nil
}
