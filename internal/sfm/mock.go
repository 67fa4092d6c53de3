package sfm

import (
	"context"
	"fmt"
	"sync"

	"github.com/banshee-data/rigmap/internal/rig"
)

// MockEngine is an in-memory Engine for tests. It records the order of stage
// invocations and the constraints handed to mapping, and can be told to fail
// at a given stage.
type MockEngine struct {
	mu sync.Mutex

	// Calls holds stage names in invocation order.
	Calls []string

	// FailAt, when non-empty, makes that stage return an engine failure.
	FailAt string

	// Constraints holds the constraint sets passed to MapIncremental.
	Constraints []rig.ConstraintSet

	// LastWorkspace holds the workspace from the most recent call.
	LastWorkspace Workspace
}

// Name identifies the engine.
func (m *MockEngine) Name() string { return "mock" }

func (m *MockEngine) record(stage string, ws Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, stage)
	m.LastWorkspace = ws
	if m.FailAt == stage {
		return fmt.Errorf("%w: mock failure at %s", ErrEngineFailure, stage)
	}
	return nil
}

// ExtractFeatures records the extraction call.
func (m *MockEngine) ExtractFeatures(ctx context.Context, ws Workspace, scene *rig.SceneSet) error {
	return m.record("extract", ws)
}

// MatchExhaustive records the matching call.
func (m *MockEngine) MatchExhaustive(ctx context.Context, ws Workspace, opts MatchOptions) error {
	return m.record("match", ws)
}

// MapIncremental records the mapping call and the constraints it received.
func (m *MockEngine) MapIncremental(ctx context.Context, ws Workspace, constraints []rig.ConstraintSet) error {
	m.mu.Lock()
	m.Constraints = constraints
	m.mu.Unlock()
	return m.record("map", ws)
}
