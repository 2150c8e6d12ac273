package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// runMetadata records the provenance of one analysis run so output files can
// be traced back to their inputs and parameters.
type runMetadata struct {
	RunID          string    `json:"run_id"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	Command        string    `json:"command"`
	TrainingConfig string    `json:"training_config"`
	SampleFile     string    `json:"sample_file"`
	Significance   float64   `json:"significance,omitempty"`
	MinCoverage    []float64 `json:"min_coverage,omitempty"`
	W              float64   `json:"w,omitempty"`
	Output         string    `json:"output"`
}

func writeRunMetadata(outdir string, meta runMetadata) error {
	meta.RunID = uuid.NewString()
	meta.Timestamp = time.Now().UTC()
	meta.Version = version

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run metadata: %w", err)
	}
	path := filepath.Join(outdir, fmt.Sprintf("%s_metadata_%s.json", meta.Command, meta.RunID[:8]))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing run metadata: %w", err)
	}
	return nil
}
