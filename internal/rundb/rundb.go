// Package rundb records reconstruction runs in a SQLite ledger: which rigs
// were used or skipped and how long each pipeline stage took. Purely
// diagnostic; no pipeline state is read back between runs.
package rundb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// RunDB wraps the ledger database.
type RunDB struct {
	*sql.DB
}

//go:embed schema.sql
var schemaSQL string

// Open opens (creating if needed) the run ledger at path and applies the
// embedded schema.
func Open(path string) (*RunDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying run ledger schema: %w", err)
	}

	return &RunDB{db}, nil
}

// StartRun records the beginning of a run.
func (db *RunDB) StartRun(runID, inputRoot, outputDir, engine string) error {
	_, err := db.Exec(`
		INSERT INTO runs (run_id, input_root, output_dir, engine)
		VALUES (?, ?, ?, ?)
	`, runID, inputRoot, outputDir, engine)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RecordRig records one rig's participation in a run. reason is empty for
// used rigs and carries the skip cause otherwise.
func (db *RunDB) RecordRig(runID, rigID string, cameraCount, imageCount int, used bool, reason string) error {
	_, err := db.Exec(`
		INSERT INTO run_rigs (run_id, rig_id, camera_count, image_count, used, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, rigID, cameraCount, imageCount, boolInt(used), reason)
	if err != nil {
		return fmt.Errorf("failed to insert run rig: %w", err)
	}
	return nil
}

// RecordStage records one pipeline stage's duration and outcome.
func (db *RunDB) RecordStage(runID, stage string, d time.Duration, ok bool) error {
	_, err := db.Exec(`
		INSERT INTO run_stages (run_id, stage, duration_ms, ok)
		VALUES (?, ?, ?, ?)
	`, runID, stage, d.Milliseconds(), boolInt(ok))
	if err != nil {
		return fmt.Errorf("failed to insert run stage: %w", err)
	}
	return nil
}

// FinishRun records the run's terminal state.
func (db *RunDB) FinishRun(runID, state string) error {
	_, err := db.Exec(`
		UPDATE runs SET state = ?, finished_at = CURRENT_TIMESTAMP WHERE run_id = ?
	`, state, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
