package rig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/banshee-data/rigmap/internal/fsutil"
)

// DefaultPoseFileName is the fixed pose file name looked for in each rig
// folder, matching the Blender exporter's output.
const DefaultPoseFileName = "cameras.json"

// rawCamera mirrors one camera entry in the exported JSON document.
type rawCamera struct {
	MatrixWorld  [][]float64 `json:"matrix_world"`
	Location     []float64   `json:"location"`
	Lens         float64     `json:"lens"`
	SensorWidth  float64     `json:"sensor_width"`
	SensorHeight float64     `json:"sensor_height"`
}

// ParsePoseFile reads a per-rig pose file into camera pose records, sorted by
// camera name. It is a pure transform from bytes to records: image folder
// correspondence is the scanner's job.
//
// Fails with ErrMalformedPoseFile when required fields are missing or
// non-numeric, and ErrDuplicateCameraName when a camera name repeats. The
// decoder walks JSON tokens rather than unmarshalling into a map so repeated
// keys are detected instead of silently overwritten.
func ParsePoseFile(fsys fsutil.FileSystem, path string) ([]CameraPose, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pose file %s: %w", path, err)
	}
	return parsePoseBytes(path, data)
}

func parsePoseBytes(path string, data []byte) ([]CameraPose, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMalformedPoseFile, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%s: %w: top level is not an object", path, ErrMalformedPoseFile)
	}

	seen := make(map[string]bool)
	var cameras []CameraPose
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", path, ErrMalformedPoseFile, err)
		}
		name, ok := keyTok.(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("%s: %w: invalid camera name token", path, ErrMalformedPoseFile)
		}
		if seen[name] {
			return nil, fmt.Errorf("%s: %w: %q", path, ErrDuplicateCameraName, name)
		}
		seen[name] = true

		var raw rawCamera
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%s: camera %q: %w: %v", path, name, ErrMalformedPoseFile, err)
		}
		cam, err := buildCameraPose(name, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: camera %q: %w", path, name, err)
		}
		cameras = append(cameras, cam)
	}

	// Deterministic order regardless of document order.
	sort.Slice(cameras, func(i, j int) bool { return cameras[i].Name < cameras[j].Name })
	return cameras, nil
}

func buildCameraPose(name string, raw rawCamera) (CameraPose, error) {
	if len(raw.MatrixWorld) != 4 {
		return CameraPose{}, fmt.Errorf("%w: matrix_world must have 4 rows, got %d", ErrMalformedPoseFile, len(raw.MatrixWorld))
	}
	var m mgl64.Mat4
	for row, vals := range raw.MatrixWorld {
		if len(vals) != 4 {
			return CameraPose{}, fmt.Errorf("%w: matrix_world row %d has %d columns", ErrMalformedPoseFile, row, len(vals))
		}
		for col, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return CameraPose{}, fmt.Errorf("%w: non-finite matrix entry at [%d][%d]", ErrMalformedPoseFile, row, col)
			}
			m.Set(row, col, v)
		}
	}

	loc := mgl64.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
	if raw.Location != nil {
		if len(raw.Location) != 3 {
			return CameraPose{}, fmt.Errorf("%w: location must have 3 entries, got %d", ErrMalformedPoseFile, len(raw.Location))
		}
		loc = mgl64.Vec3{raw.Location[0], raw.Location[1], raw.Location[2]}
	}
	if raw.Lens < 0 || raw.SensorWidth < 0 || raw.SensorHeight < 0 {
		return CameraPose{}, fmt.Errorf("%w: negative intrinsics", ErrMalformedPoseFile)
	}

	return CameraPose{
		Name:           name,
		World:          m,
		Location:       loc,
		LensMM:         raw.Lens,
		SensorWidthMM:  raw.SensorWidth,
		SensorHeightMM: raw.SensorHeight,
	}, nil
}
